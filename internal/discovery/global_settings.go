package discovery

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"wu-obs-scraper/internal/wuapi"
)

type GlobalSettings struct {
	ScrapeDir     string   `json:"scrape_dir,omitempty"`
	Units         string   `json:"units,omitempty"`
	MaxAttempts   int      `json:"max_attempts,omitempty"`
	RetryStatuses []int    `json:"retry_statuses,omitempty"`
	ExportJobs    int      `json:"export_jobs,omitempty"`
	ProxyMode     string   `json:"proxy_mode,omitempty"`
	Proxies       []string `json:"proxies,omitempty"`
}

// RuntimeFetchSettings is the fully resolved fetch configuration for one
// scrape run, after flag > station set > global precedence.
type RuntimeFetchSettings struct {
	Units         string
	MaxAttempts   int
	RetryStatuses []int
	ProxyMode     string
	Proxies       []string
}

type UpdateGlobalSettingsOptions struct {
	ConfigPath string
	Global     GlobalSettings
}

type UpdateGlobalSettingsResult struct {
	ConfigPath string         `json:"config_path"`
	Global     GlobalSettings `json:"global"`
}

func defaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		ScrapeDir:     DefaultScrapeDir,
		Units:         wuapi.UnitsMetric,
		MaxAttempts:   DefaultMaxAttempts,
		RetryStatuses: wuapi.DefaultRetryStatuses(),
		ExportJobs:    DefaultExportJobs,
		ProxyMode:     wuapi.ProxyModeOff,
		Proxies:       []string{},
	}
}

func normalizeGlobalSettings(raw GlobalSettings) GlobalSettings {
	norm := raw
	norm.ScrapeDir = strings.TrimSpace(norm.ScrapeDir)
	if norm.ScrapeDir == "" {
		norm.ScrapeDir = DefaultScrapeDir
	}
	if units, err := wuapi.NormalizeUnits(norm.Units); err == nil {
		norm.Units = units
	} else {
		norm.Units = wuapi.UnitsMetric
	}
	if norm.MaxAttempts <= 0 {
		norm.MaxAttempts = DefaultMaxAttempts
	}
	norm.RetryStatuses = normalizeRetryStatuses(norm.RetryStatuses)
	if norm.ExportJobs <= 0 {
		norm.ExportJobs = DefaultExportJobs
	}
	norm.ProxyMode = wuapi.NormalizeProxyMode(norm.ProxyMode)
	norm.Proxies = wuapi.NormalizeProxyList(norm.Proxies)
	return norm
}

func normalizeRetryStatuses(raw []int) []int {
	out := make([]int, 0, len(raw))
	for _, s := range raw {
		if s < 100 || s > 599 {
			continue
		}
		out = append(out, s)
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return wuapi.DefaultRetryStatuses()
	}
	return out
}

// ParseRetryStatuses parses a comma-separated status list from a flag or
// form field. Unlike load-time normalization, bad input here is an error.
func ParseRetryStatuses(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t == "" {
			continue
		}
		n, err := strconv.Atoi(t)
		if err != nil {
			return nil, fmt.Errorf("invalid retry status %q", t)
		}
		if n < 100 || n > 599 {
			return nil, fmt.Errorf("invalid retry status %d (expected 100-599)", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one retry status is required")
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func ReadGlobalSettings(configPath string) (GlobalSettings, error) {
	path := normalizeConfigPath(configPath)
	reg, err := loadProjectRegistry(path)
	if err == nil {
		return reg.Global, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return defaultGlobalSettings(), nil
	}
	return GlobalSettings{}, err
}

func GetGlobalSettings(configPath string) (GlobalSettings, error) {
	reg, _, err := EnsureProjectRegistry(configPath)
	if err != nil {
		return GlobalSettings{}, err
	}
	return reg.Global, nil
}

func UpdateGlobalSettings(opts UpdateGlobalSettingsOptions) (UpdateGlobalSettingsResult, error) {
	configPath := normalizeConfigPath(opts.ConfigPath)
	reg, _, err := EnsureProjectRegistry(configPath)
	if err != nil {
		return UpdateGlobalSettingsResult{}, err
	}
	reg.Global = normalizeGlobalSettings(opts.Global)
	reg.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := saveProjectRegistry(configPath, reg); err != nil {
		return UpdateGlobalSettingsResult{}, err
	}
	return UpdateGlobalSettingsResult{
		ConfigPath: configPath,
		Global:     reg.Global,
	}, nil
}

// ResolveRuntimeFetchSettings merges the units/attempts overrides, the
// station set, and the global settings into the configuration handed to the
// fetch client.
func ResolveRuntimeFetchSettings(project Project, global GlobalSettings, unitsOverride string, attemptsOverride int) (RuntimeFetchSettings, error) {
	if attemptsOverride < 0 {
		return RuntimeFetchSettings{}, fmt.Errorf("max attempts must be >= 0")
	}

	normGlobal := normalizeGlobalSettings(global)

	units := strings.TrimSpace(unitsOverride)
	if units == "" {
		units = strings.TrimSpace(project.Units)
	}
	if units == "" {
		units = normGlobal.Units
	}
	normUnits, err := wuapi.NormalizeUnits(units)
	if err != nil {
		return RuntimeFetchSettings{}, err
	}

	attempts := firstPositive(attemptsOverride, normGlobal.MaxAttempts, DefaultMaxAttempts)

	mode := normGlobal.ProxyMode
	proxies := normGlobal.Proxies
	if mode == wuapi.ProxyModeRotate && len(proxies) == 0 {
		return RuntimeFetchSettings{}, fmt.Errorf("proxy mode %q requires at least one proxy", wuapi.ProxyModeRotate)
	}

	return RuntimeFetchSettings{
		Units:         normUnits,
		MaxAttempts:   attempts,
		RetryStatuses: normGlobal.RetryStatuses,
		ProxyMode:     mode,
		Proxies:       proxies,
	}, nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
