package cli

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"wu-obs-scraper/internal/version"
)

const (
	selfUpdateRepoOwner = "wu-obs"
	selfUpdateRepoName  = "wu-obs-scraper"
	selfUpdateBinary    = "wu-obs-scraper"
)

type selfUpdateRelease struct {
	TagName string            `json:"tag_name"`
	Assets  []selfUpdateAsset `json:"assets"`
}

type selfUpdateAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

type selfUpdateReport struct {
	PreviousVersion  string `json:"previous_version"`
	InstalledVersion string `json:"installed_version"`
	Asset            string `json:"asset"`
	InstallPath      string `json:"install_path"`
}

func runSelfUpdate(args []string) error {
	fs := flag.NewFlagSet("self-update", flag.ContinueOnError)
	fs.SetOutput(flag.CommandLine.Output())
	requestedTag := fs.String("version", "", "release tag to install (default: latest release)")
	installDir := fs.String("install-dir", "", "install directory (default: user-local install path)")
	jsonOut := fs.Bool("json", false, "print a machine-readable JSON result")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	release, err := fetchSelfUpdateRelease(strings.TrimSpace(*requestedTag))
	if err != nil {
		return err
	}
	targetTag := normalizeVersionTag(release.TagName)
	if targetTag == "" {
		return fmt.Errorf("release has no tag name")
	}
	currentTag := normalizeVersionTag(version.Value)
	if strings.TrimSpace(*requestedTag) == "" && targetTag == currentTag {
		fmt.Printf("already up to date (%s)\n", currentTag)
		return nil
	}

	asset, err := releaseAssetForPlatform(release, runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}

	dir := strings.TrimSpace(*installDir)
	if dir == "" {
		dir, err = defaultInstallDir()
		if err != nil {
			return err
		}
	}
	installPath := filepath.Join(dir, selfUpdateBinaryFilename())

	// Windows cannot rename over the executable that is running.
	if runtime.GOOS == "windows" {
		if exe, exeErr := os.Executable(); exeErr == nil && samePath(exe, installPath) {
			return fmt.Errorf("cannot replace the running binary: pass --install-dir to install elsewhere, then swap manually")
		}
	}

	if err := performSelfUpdate(release, asset, installPath); err != nil {
		return err
	}

	report := selfUpdateReport{
		PreviousVersion:  currentTag,
		InstalledVersion: targetTag,
		Asset:            asset.Name,
		InstallPath:      installPath,
	}
	if *jsonOut {
		return printJSON(report)
	}
	fmt.Printf("updated %s: %s -> %s\n", selfUpdateBinary, currentTag, targetTag)
	fmt.Printf("  asset: %s\n", asset.Name)
	fmt.Printf("  installed: %s\n", installPath)
	return nil
}

func fetchSelfUpdateRelease(tag string) (selfUpdateRelease, error) {
	endpoint := "https://api.github.com/repos/" + selfUpdateRepoOwner + "/" + selfUpdateRepoName + "/releases/latest"
	if tag != "" {
		endpoint = "https://api.github.com/repos/" + selfUpdateRepoOwner + "/" + selfUpdateRepoName +
			"/releases/tags/" + url.PathEscape(normalizeVersionTag(tag))
	}

	var release selfUpdateRelease
	if err := getReleaseJSON(endpoint, &release); err != nil {
		return selfUpdateRelease{}, err
	}
	return release, nil
}

func getReleaseJSON(endpoint string, out any) error {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "wu-obs-scraper-self-update")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, endpoint, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func selfUpdateBinaryFilename() string {
	if runtime.GOOS == "windows" {
		return selfUpdateBinary + ".exe"
	}
	return selfUpdateBinary
}

// releaseAssetForPlatform finds the archive built for an OS/arch pair. Release
// assets follow {binary}_{tag}_{os}_{arch}.tar.gz, with .zip on windows.
func releaseAssetForPlatform(release selfUpdateRelease, goos, goarch string) (selfUpdateAsset, error) {
	ext := ""
	switch goos + "/" + goarch {
	case "linux/amd64", "linux/arm64", "darwin/amd64", "darwin/arm64":
		ext = "tar.gz"
	case "windows/amd64":
		ext = "zip"
	default:
		return selfUpdateAsset{}, fmt.Errorf("no release asset for %s/%s", goos, goarch)
	}

	want := fmt.Sprintf("%s_%s_%s_%s.%s", selfUpdateBinary, normalizeVersionTag(release.TagName), goos, goarch, ext)
	for _, asset := range release.Assets {
		if asset.Name == want {
			return asset, nil
		}
	}
	return selfUpdateAsset{}, fmt.Errorf("release %s has no asset named %s", release.TagName, want)
}

func releaseAssetURL(release selfUpdateRelease, name string) (string, error) {
	for _, asset := range release.Assets {
		if asset.Name == name {
			return asset.BrowserDownloadURL, nil
		}
	}
	return "", fmt.Errorf("release %s has no asset named %s", release.TagName, name)
}

func selfUpdateChecksumsName(tag string) string {
	return fmt.Sprintf("%s_%s_checksums.txt", selfUpdateBinary, normalizeVersionTag(tag))
}

func performSelfUpdate(release selfUpdateRelease, asset selfUpdateAsset, installPath string) error {
	tmpDir, err := os.MkdirTemp("", "wu-obs-scraper-self-update-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, asset.Name)
	if err := downloadFile(asset.BrowserDownloadURL, archivePath); err != nil {
		return fmt.Errorf("download %s: %w", asset.Name, err)
	}

	checksumsName := selfUpdateChecksumsName(release.TagName)
	checksumsURL, err := releaseAssetURL(release, checksumsName)
	if err != nil {
		return err
	}
	checksumsPath := filepath.Join(tmpDir, checksumsName)
	if err := downloadFile(checksumsURL, checksumsPath); err != nil {
		return fmt.Errorf("download %s: %w", checksumsName, err)
	}
	if err := verifyAssetChecksum(checksumsPath, asset.Name, archivePath); err != nil {
		return err
	}

	binaryPath, err := extractBinary(archivePath, tmpDir)
	if err != nil {
		return err
	}
	return installBinary(binaryPath, installPath)
}

func downloadFile(rawURL, destPath string) error {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "wu-obs-scraper-self-update")

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d downloading %s", resp.StatusCode, rawURL)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// verifyAssetChecksum checks the downloaded archive against the published
// checksums file. Lines look like "<sha256>  <name>", with an optional "*"
// binary-mode marker before the name.
func verifyAssetChecksum(checksumsPath, assetName, archivePath string) error {
	data, err := os.ReadFile(checksumsPath)
	if err != nil {
		return err
	}

	expected := ""
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimLeft(fields[len(fields)-1], "*")
		if name == assetName {
			expected = fields[0]
			break
		}
	}
	if expected == "" {
		return fmt.Errorf("no checksum entry for %s", assetName)
	}

	actual, err := sha256File(archivePath)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("checksum mismatch for %s: got %s want %s", assetName, actual, expected)
	}
	return nil
}

func sha256File(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func extractBinary(archivePath, destDir string) (string, error) {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return extractBinaryFromZip(archivePath, destDir)
	case strings.HasSuffix(archivePath, ".tar.gz"):
		return extractBinaryFromTarGz(archivePath, destDir)
	default:
		return "", fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
}

func extractBinaryFromZip(archivePath, destDir string) (string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	want := selfUpdateBinaryFilename()
	for _, file := range reader.File {
		if path.Base(file.Name) != want {
			continue
		}
		src, err := file.Open()
		if err != nil {
			return "", err
		}
		destPath := filepath.Join(destDir, want)
		err = writeExtractedFile(destPath, src)
		src.Close()
		if err != nil {
			return "", err
		}
		return destPath, nil
	}
	return "", fmt.Errorf("archive has no %s entry", want)
}

func extractBinaryFromTarGz(archivePath, destDir string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", err
	}
	defer gz.Close()

	want := selfUpdateBinaryFilename()
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if header.Typeflag != tar.TypeReg || path.Base(header.Name) != want {
			continue
		}
		destPath := filepath.Join(destDir, want)
		if err := writeExtractedFile(destPath, tr); err != nil {
			return "", err
		}
		return destPath, nil
	}
	return "", fmt.Errorf("archive has no %s entry", want)
}

func writeExtractedFile(destPath string, src io.Reader) error {
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// installBinary swaps the new binary into place through a rename so a failed
// download never leaves a half-written executable.
func installBinary(binaryPath, installPath string) error {
	if err := os.MkdirAll(filepath.Dir(installPath), 0o755); err != nil {
		return err
	}

	tmpPath := installPath + ".tmp"
	if err := copyFile(binaryPath, tmpPath); err != nil {
		return err
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0o755); err != nil {
			os.Remove(tmpPath)
			return err
		}
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(installPath)
	}
	if err := os.Rename(tmpPath, installPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func copyFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		return err
	}
	return dest.Close()
}

func defaultInstallDir() (string, error) {
	if runtime.GOOS == "windows" {
		base := strings.TrimSpace(os.Getenv("LOCALAPPDATA"))
		if base == "" {
			return "", fmt.Errorf("LOCALAPPDATA is not set")
		}
		return filepath.Join(base, "Programs", selfUpdateBinary), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "bin"), nil
}

func samePath(a, b string) bool {
	aAbs, errA := filepath.Abs(a)
	bAbs, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	if runtime.GOOS == "windows" {
		return strings.EqualFold(aAbs, bAbs)
	}
	return aAbs == bAbs
}
