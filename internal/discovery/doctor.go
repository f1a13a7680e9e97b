package discovery

import (
	"os"
	"path/filepath"
	"strings"

	"wu-obs-scraper/internal/cachestore"
	"wu-obs-scraper/internal/wuapi"
)

type DoctorOptions struct {
	ScrapeDir  string
	ConfigPath string
	APIKey     string
	APIKeyFile string
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type InitWorkspaceOptions struct {
	ScrapeDir  string
	ConfigPath string
}

type InitWorkspaceResult struct {
	ScrapeDir        string       `json:"scrape_dir"`
	ConfigPath       string       `json:"config_path"`
	CreatedScrapeDir bool         `json:"created_scrape_dir"`
	CreatedConfig    bool         `json:"created_config"`
	DoctorResult     DoctorResult `json:"doctor"`
}

func Doctor(opts DoctorOptions) (DoctorResult, error) {
	configPath := normalizeConfigPath(opts.ConfigPath)

	checks := make([]DoctorCheck, 0, 4)

	_, _, regErr := EnsureProjectRegistry(configPath)
	checks = append(checks, DoctorCheck{
		Name:    "config:registry",
		OK:      regErr == nil,
		Message: registryMessage(configPath, regErr),
	})

	scrapeDir := strings.TrimSpace(opts.ScrapeDir)
	if scrapeDir == "" {
		if global, err := ReadGlobalSettings(configPath); err == nil {
			scrapeDir = global.ScrapeDir
		} else {
			scrapeDir = DefaultScrapeDir
		}
	}
	scrapeDirOK, scrapeDirMessage := ensureWritableDir(scrapeDir)
	checks = append(checks, DoctorCheck{
		Name:    "directory:scrape",
		OK:      scrapeDirOK,
		Message: scrapeDirMessage,
	})

	cfgOK, cfgMessage := ensureWritableDir(filepath.Dir(configPath))
	checks = append(checks, DoctorCheck{
		Name:    "directory:config",
		OK:      cfgOK,
		Message: cfgMessage,
	})

	_, keySource, keyErr := wuapi.ResolveAPIKey(opts.APIKey, opts.APIKeyFile)
	keyMessage := "api key from " + keySource
	if keyErr != nil {
		keyMessage = keyErr.Error()
	}
	checks = append(checks, DoctorCheck{
		Name:    "api:key",
		OK:      keyErr == nil,
		Message: keyMessage,
	})

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}

	return DoctorResult{OK: ok, Checks: checks}, nil
}

func InitWorkspace(opts InitWorkspaceOptions) (InitWorkspaceResult, error) {
	configPath := normalizeConfigPath(opts.ConfigPath)

	_, createdConfig, err := EnsureProjectRegistry(configPath)
	if err != nil {
		return InitWorkspaceResult{}, err
	}

	scrapeDir := strings.TrimSpace(opts.ScrapeDir)
	if scrapeDir == "" {
		global, err := ReadGlobalSettings(configPath)
		if err != nil {
			return InitWorkspaceResult{}, err
		}
		scrapeDir = global.ScrapeDir
	}

	createdScrapeDir := false
	if _, err := os.Stat(scrapeDir); os.IsNotExist(err) {
		createdScrapeDir = true
	}
	if err := cachestore.Mkdir(scrapeDir); err != nil {
		return InitWorkspaceResult{}, err
	}

	doc, err := Doctor(DoctorOptions{ScrapeDir: scrapeDir, ConfigPath: configPath})
	if err != nil {
		return InitWorkspaceResult{}, err
	}

	return InitWorkspaceResult{
		ScrapeDir:        scrapeDir,
		ConfigPath:       configPath,
		CreatedScrapeDir: createdScrapeDir,
		CreatedConfig:    createdConfig,
		DoctorResult:     doc,
	}, nil
}

func registryMessage(path string, err error) string {
	if err != nil {
		return err.Error()
	}
	return "registry at " + path
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := cachestore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "wu-obs-scraper-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
