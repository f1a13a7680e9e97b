package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"wu-obs-scraper/internal/discovery"
	"wu-obs-scraper/internal/wuapi"
)

func newManageGlobalForm(global discovery.GlobalSettings, width int) *manageForm {
	f := &manageForm{
		Kind:  manageFormKindGlobal,
		Title: "Global Settings",
		Fields: []manageFormField{
			{Key: "scrape_dir", Label: "Scrape Directory", Help: "Cache root used by every command", Kind: manageFieldString, Value: global.ScrapeDir},
			{Key: "units", Label: "Units", Help: "m (metric) or e (english)", Kind: manageFieldSelect, Value: defaultIfEmpty(global.Units, wuapi.UnitsMetric), Options: []string{wuapi.UnitsMetric, wuapi.UnitsEnglish}},
			{Key: "max_attempts", Label: "Max Attempts", Help: "Fetch attempts per unit before it counts as failed", Kind: manageFieldInt, Value: strconv.Itoa(global.MaxAttempts)},
			{Key: "retry_statuses", Label: "Retry Statuses", Help: "Comma-separated HTTP statuses treated as transient", Kind: manageFieldString, Value: formatIntList(global.RetryStatuses)},
			{Key: "export_jobs", Label: "Export Jobs", Help: "Parallel parse workers for exports", Kind: manageFieldInt, Value: strconv.Itoa(global.ExportJobs)},
			{Key: "proxy_mode", Label: "Proxy Mode", Help: "off or rotate", Kind: manageFieldSelect, Value: defaultIfEmpty(global.ProxyMode, wuapi.ProxyModeOff), Options: []string{wuapi.ProxyModeOff, wuapi.ProxyModeRotate}},
			{Key: "proxies", Label: "Proxies", Help: "Comma-separated list. Requests round-robin when mode=rotate.", Kind: manageFieldString, Value: strings.Join(global.Proxies, ", ")},
		},
	}

	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 2048
	input.Width = clampInt(width-8, 20, 120)
	f.Input = input
	f.loadFieldIntoInput()
	f.Input.Focus()
	return f
}

func (f *manageForm) toGlobalSettings() (discovery.GlobalSettings, error) {
	if f == nil {
		return discovery.GlobalSettings{}, fmt.Errorf("internal form error")
	}
	vals := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		v := strings.TrimSpace(field.Value)
		switch field.Kind {
		case manageFieldInt:
			if v == "" {
				v = "0"
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return discovery.GlobalSettings{}, fmt.Errorf("%s must be an integer >= 0", strings.ToLower(field.Label))
			}
		case manageFieldSelect:
			matched := false
			for _, opt := range field.Options {
				if strings.EqualFold(opt, v) {
					v = opt
					matched = true
					break
				}
			}
			if !matched {
				return discovery.GlobalSettings{}, fmt.Errorf("%s has invalid value", strings.ToLower(field.Label))
			}
		}
		vals[field.Key] = v
	}

	maxAttempts, _ := strconv.Atoi(defaultIfEmpty(vals["max_attempts"], "0"))
	if maxAttempts <= 0 {
		return discovery.GlobalSettings{}, fmt.Errorf("max attempts must be >= 1")
	}
	exportJobs, _ := strconv.Atoi(defaultIfEmpty(vals["export_jobs"], "0"))
	if exportJobs <= 0 {
		return discovery.GlobalSettings{}, fmt.Errorf("export jobs must be >= 1")
	}
	retryStatuses, err := discovery.ParseRetryStatuses(defaultIfEmpty(vals["retry_statuses"], ""))
	if err != nil {
		return discovery.GlobalSettings{}, err
	}

	mode := strings.ToLower(strings.TrimSpace(vals["proxy_mode"]))
	proxies := parseProxyValueList(vals["proxies"])
	for _, p := range proxies {
		if err := wuapi.ValidateProxyURL(p); err != nil {
			return discovery.GlobalSettings{}, err
		}
	}
	if mode == wuapi.ProxyModeRotate && len(proxies) == 0 {
		return discovery.GlobalSettings{}, fmt.Errorf("proxy mode rotate requires at least one proxy")
	}

	return discovery.GlobalSettings{
		ScrapeDir:     strings.TrimSpace(vals["scrape_dir"]),
		Units:         strings.TrimSpace(vals["units"]),
		MaxAttempts:   maxAttempts,
		RetryStatuses: retryStatuses,
		ExportJobs:    exportJobs,
		ProxyMode:     mode,
		Proxies:       proxies,
	}, nil
}

func saveGlobalSettingsCmd(configPath string, global discovery.GlobalSettings) tea.Cmd {
	return func() tea.Msg {
		res, err := discovery.UpdateGlobalSettings(discovery.UpdateGlobalSettingsOptions{
			ConfigPath: configPath,
			Global:     global,
		})
		if err != nil {
			return manageSaveMsg{err: err}
		}
		return manageSaveMsg{
			message: fmt.Sprintf(
				"updated global settings: dir=%s units=%s attempts=%d jobs=%d proxy_mode=%s proxies=%d",
				res.Global.ScrapeDir,
				res.Global.Units,
				res.Global.MaxAttempts,
				res.Global.ExportJobs,
				res.Global.ProxyMode,
				len(res.Global.Proxies),
			),
		}
	}
}

func parseProxyValueList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, part := range parts {
		v := strings.TrimSpace(part)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
