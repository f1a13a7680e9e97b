package cli

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"wu-obs-scraper/internal/discovery"
	"wu-obs-scraper/internal/wuapi"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	case "proxy":
		return runSettingsProxy(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath := strings.TrimSpace(*config)
	global, err := discovery.GetGlobalSettings(configPath)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": configPath,
			"global":      global,
		})
	}

	fmt.Printf("config: %s\n", configPath)
	fmt.Printf("scrape_dir: %s\n", global.ScrapeDir)
	fmt.Printf("units: %s\n", global.Units)
	fmt.Printf("max_attempts: %d\n", global.MaxAttempts)
	fmt.Printf("retry_statuses: %s\n", formatIntList(global.RetryStatuses))
	fmt.Printf("export_jobs: %d\n", global.ExportJobs)
	fmt.Printf("proxy_mode: %s\n", global.ProxyMode)
	if len(global.Proxies) == 0 {
		fmt.Println("proxies: (none)")
		return nil
	}
	fmt.Println("proxies:")
	for i, p := range global.Proxies {
		fmt.Printf("  %d. %s\n", i+1, p)
	}
	return nil
}

func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	scrapeDir := fs.String("scrape-dir", "", "cache root for all commands (empty keeps current)")
	units := fs.String("units", "", "default units m|e (empty keeps current)")
	maxAttempts := fs.Int("max-attempts", -1, "fetch attempts per unit (>=1, -1 keeps current)")
	retryStatuses := fs.String("retry-statuses", "", "comma-separated retryable HTTP statuses (empty keeps current)")
	exportJobs := fs.Int("export-jobs", -1, "parallel export parse workers (>=1, -1 keeps current)")
	proxyMode := fs.String("proxy-mode", "", "proxy mode: off|rotate (empty keeps current)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath := strings.TrimSpace(*config)
	global, err := discovery.GetGlobalSettings(configPath)
	if err != nil {
		return err
	}

	if strings.TrimSpace(*scrapeDir) != "" {
		global.ScrapeDir = strings.TrimSpace(*scrapeDir)
	}
	if strings.TrimSpace(*units) != "" {
		u, err := wuapi.NormalizeUnits(strings.TrimSpace(*units))
		if err != nil {
			return err
		}
		global.Units = u
	}
	if *maxAttempts != -1 {
		if *maxAttempts <= 0 {
			return errors.New("--max-attempts must be >= 1")
		}
		global.MaxAttempts = *maxAttempts
	}
	if strings.TrimSpace(*retryStatuses) != "" {
		statuses, err := discovery.ParseRetryStatuses(*retryStatuses)
		if err != nil {
			return err
		}
		global.RetryStatuses = statuses
	}
	if *exportJobs != -1 {
		if *exportJobs <= 0 {
			return errors.New("--export-jobs must be >= 1")
		}
		global.ExportJobs = *exportJobs
	}
	if strings.TrimSpace(*proxyMode) != "" {
		mode := strings.ToLower(strings.TrimSpace(*proxyMode))
		if mode != wuapi.ProxyModeOff && mode != wuapi.ProxyModeRotate {
			return errors.New("--proxy-mode must be off or rotate")
		}
		global.ProxyMode = mode
	}

	res, err := discovery.UpdateGlobalSettings(discovery.UpdateGlobalSettingsOptions{
		ConfigPath: configPath,
		Global:     global,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}

	fmt.Printf("updated global settings in %s\n", res.ConfigPath)
	fmt.Printf("scrape_dir: %s\n", res.Global.ScrapeDir)
	fmt.Printf("units: %s\n", res.Global.Units)
	fmt.Printf("max_attempts: %d\n", res.Global.MaxAttempts)
	fmt.Printf("retry_statuses: %s\n", formatIntList(res.Global.RetryStatuses))
	fmt.Printf("export_jobs: %d\n", res.Global.ExportJobs)
	fmt.Printf("proxy_mode: %s\n", res.Global.ProxyMode)
	fmt.Printf("proxies: %d\n", len(res.Global.Proxies))
	return nil
}

func runSettingsProxy(args []string) error {
	if len(args) == 0 {
		printSettingsProxyUsage()
		return nil
	}
	switch args[0] {
	case "list":
		return runSettingsProxyList(args[1:])
	case "add":
		return runSettingsProxyAdd(args[1:])
	case "remove":
		return runSettingsProxyRemove(args[1:])
	case "help", "-h", "--help":
		printSettingsProxyUsage()
		return nil
	default:
		printSettingsProxyUsage()
		return fmt.Errorf("unknown settings proxy subcommand %q", args[0])
	}
}

func runSettingsProxyList(args []string) error {
	fs := flag.NewFlagSet("settings proxy list", flag.ContinueOnError)
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath := strings.TrimSpace(*config)
	global, err := discovery.GetGlobalSettings(configPath)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": configPath,
			"proxy_mode":  global.ProxyMode,
			"proxies":     global.Proxies,
		})
	}
	if len(global.Proxies) == 0 {
		fmt.Println("no proxies configured")
		return nil
	}
	for i, p := range global.Proxies {
		fmt.Printf("%d. %s\n", i+1, p)
	}
	return nil
}

func runSettingsProxyAdd(args []string) error {
	fs := flag.NewFlagSet("settings proxy add", flag.ContinueOnError)
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	value := fs.String("value", "", "proxy URL to add")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*value) == "" {
		return errors.New("--value is required")
	}
	if err := wuapi.ValidateProxyURL(*value); err != nil {
		return err
	}

	configPath := strings.TrimSpace(*config)
	global, err := discovery.GetGlobalSettings(configPath)
	if err != nil {
		return err
	}
	global.Proxies = append(global.Proxies, strings.TrimSpace(*value))

	res, err := discovery.UpdateGlobalSettings(discovery.UpdateGlobalSettingsOptions{
		ConfigPath: configPath,
		Global:     global,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}
	fmt.Printf("proxy added. total proxies: %d\n", len(res.Global.Proxies))
	return nil
}

func runSettingsProxyRemove(args []string) error {
	fs := flag.NewFlagSet("settings proxy remove", flag.ContinueOnError)
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	value := fs.String("value", "", "proxy URL to remove")
	index := fs.Int("index", 0, "1-based proxy index to remove")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*value) == "" && *index <= 0 {
		return errors.New("set --value or --index")
	}

	configPath := strings.TrimSpace(*config)
	global, err := discovery.GetGlobalSettings(configPath)
	if err != nil {
		return err
	}

	next := make([]string, 0, len(global.Proxies))
	removed := false
	if strings.TrimSpace(*value) != "" {
		target := strings.TrimSpace(*value)
		for _, p := range global.Proxies {
			if !removed && p == target {
				removed = true
				continue
			}
			next = append(next, p)
		}
	} else {
		targetIdx := *index - 1
		if targetIdx < 0 || targetIdx >= len(global.Proxies) {
			return fmt.Errorf("--index out of range (1..%d)", len(global.Proxies))
		}
		for i, p := range global.Proxies {
			if i == targetIdx {
				removed = true
				continue
			}
			next = append(next, p)
		}
	}
	if !removed {
		return errors.New("proxy not found")
	}

	global.Proxies = next
	res, err := discovery.UpdateGlobalSettings(discovery.UpdateGlobalSettingsOptions{
		ConfigPath: configPath,
		Global:     global,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}
	fmt.Printf("proxy removed. total proxies: %d\n", len(res.Global.Proxies))
	return nil
}

func printSettingsUsage() {
	fmt.Println("settings commands:")
	fmt.Println("  settings show")
	fmt.Println("  settings set [--scrape-dir <path>] [--units m|e] [--max-attempts N]")
	fmt.Println("               [--retry-statuses 429,500,...] [--export-jobs N] [--proxy-mode off|rotate]")
	fmt.Println("  settings proxy list")
	fmt.Println("  settings proxy add --value <proxy-url>")
	fmt.Println("  settings proxy remove --value <proxy-url> | --index <n>")
}

func printSettingsProxyUsage() {
	fmt.Println("settings proxy commands:")
	fmt.Println("  settings proxy list")
	fmt.Println("  settings proxy add --value <proxy-url>")
	fmt.Println("  settings proxy remove --value <proxy-url> | --index <n>")
}

func formatIntList(values []int) string {
	if len(values) == 0 {
		return "(none)"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
