package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"wu-obs-scraper/internal/version"
)

const (
	updateCheckEndpoint      = "https://api.github.com/repos/" + selfUpdateRepoOwner + "/" + selfUpdateRepoName + "/releases/latest"
	updateCheckDisableEnv    = "WUOS_DISABLE_UPDATE_CHECK"
	updateCheckInterval      = 24 * time.Hour
	updateNotificationWindow = 12 * time.Hour
)

type updateNoticeCache struct {
	LastChecked  string `json:"last_checked,omitempty"`
	LatestTag    string `json:"latest_tag,omitempty"`
	LastNotified string `json:"last_notified,omitempty"`
}

type latestReleaseResponse struct {
	TagName string `json:"tag_name"`
}

// maybePrintUpdateHint prints a one-line stderr notice when a newer release
// exists. The check is rate-limited through a small cache file so commands
// stay fast and the hint does not nag.
func maybePrintUpdateHint(args []string) {
	if shouldSkipUpdateHint(args) {
		return
	}

	currentTag := normalizeVersionTag(version.Value)
	if currentTag == "" {
		return
	}

	cachePath, err := updateNoticeCachePath()
	if err != nil {
		return
	}

	cache := loadUpdateNoticeCache(cachePath)
	now := time.Now().UTC()

	latestTag := strings.TrimSpace(cache.LatestTag)
	lastChecked, hasLastChecked := parseRFC3339(cache.LastChecked)
	if latestTag == "" || !hasLastChecked || now.Sub(lastChecked) >= updateCheckInterval {
		freshLatest, fetchErr := fetchLatestReleaseTag()
		if fetchErr == nil && freshLatest != "" {
			latestTag = freshLatest
			cache.LatestTag = latestTag
			cache.LastChecked = now.Format(time.RFC3339)
			saveUpdateNoticeCache(cachePath, cache)
		}
	}
	if latestTag == "" {
		return
	}

	isNewer, cmpErr := isNewerVersion(latestTag, currentTag)
	if cmpErr != nil || !isNewer {
		return
	}

	lastNotified, hasLastNotified := parseRFC3339(cache.LastNotified)
	if hasLastNotified && now.Sub(lastNotified) < updateNotificationWindow {
		return
	}

	fmt.Fprintf(
		os.Stderr,
		"update available: %s (current %s). Run: wu-obs-scraper self-update\n",
		latestTag,
		currentTag,
	)
	cache.LastNotified = now.Format(time.RFC3339)
	saveUpdateNoticeCache(cachePath, cache)
}

func shouldSkipUpdateHint(args []string) bool {
	if strings.EqualFold(strings.TrimSpace(os.Getenv(updateCheckDisableEnv)), "1") {
		return true
	}
	if len(args) == 0 {
		return true
	}
	if args[0] == "self-update" {
		return true
	}
	for _, arg := range args {
		trimmed := strings.TrimSpace(arg)
		if trimmed == "--json" || strings.HasPrefix(trimmed, "--json=") {
			return true
		}
	}
	return false
}

func updateNoticeCachePath() (string, error) {
	cacheRoot, err := os.UserCacheDir()
	if err != nil || strings.TrimSpace(cacheRoot) == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", homeErr
		}
		cacheRoot = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheRoot, "wu-obs-scraper", "update-check.json"), nil
}

func loadUpdateNoticeCache(cachePath string) updateNoticeCache {
	var cache updateNoticeCache
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return cache
	}
	_ = json.Unmarshal(data, &cache)
	return cache
}

func saveUpdateNoticeCache(cachePath string, cache updateNoticeCache) {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return
	}
	data, err := json.Marshal(cache)
	if err != nil {
		return
	}
	tmpPath := cachePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmpPath, cachePath)
}

func parseRFC3339(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func fetchLatestReleaseTag() (string, error) {
	req, err := http.NewRequest(http.MethodGet, updateCheckEndpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "wu-obs-scraper-update-check")

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d fetching latest release", resp.StatusCode)
	}

	var payload latestReleaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return normalizeVersionTag(payload.TagName), nil
}

func normalizeVersionTag(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "v") {
		raw = "v" + raw
	}
	return raw
}

func isNewerVersion(candidate, current string) (bool, error) {
	cmp, err := compareVersionTags(candidate, current)
	if err != nil {
		return false, err
	}
	return cmp > 0, nil
}

// compareVersionTags orders two vX.Y.Z[-pre] tags. A release outranks any
// prerelease of the same core; prereleases order lexically.
func compareVersionTags(a, b string) (int, error) {
	aCore, aPre, err := parseVersionTag(a)
	if err != nil {
		return 0, err
	}
	bCore, bPre, err := parseVersionTag(b)
	if err != nil {
		return 0, err
	}

	for i := 0; i < 3; i++ {
		if aCore[i] != bCore[i] {
			if aCore[i] > bCore[i] {
				return 1, nil
			}
			return -1, nil
		}
	}

	switch {
	case aPre == bPre:
		return 0, nil
	case aPre == "":
		return 1, nil
	case bPre == "":
		return -1, nil
	case aPre > bPre:
		return 1, nil
	default:
		return -1, nil
	}
}

func parseVersionTag(raw string) ([3]int, string, error) {
	tag := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	if tag == "" {
		return [3]int{}, "", fmt.Errorf("invalid version %q", raw)
	}

	core := tag
	pre := ""
	if idx := strings.Index(tag, "-"); idx >= 0 {
		core = tag[:idx]
		pre = tag[idx+1:]
	}

	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return [3]int{}, "", fmt.Errorf("invalid semver core %q", raw)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return [3]int{}, "", fmt.Errorf("invalid semver core %q", raw)
		}
		nums[i] = n
	}
	return nums, strings.TrimSpace(pre), nil
}
