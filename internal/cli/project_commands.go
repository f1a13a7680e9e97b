package cli

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"wu-obs-scraper/internal/discovery"
	"wu-obs-scraper/internal/model"
	"wu-obs-scraper/internal/scrape"
	"wu-obs-scraper/internal/wuapi"
)

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	var dir string
	fs.StringVar(&dir, "scrape-directory", "", "cache root (default: settings scrape_dir)")
	fs.StringVar(&dir, "d", "", "shorthand for --scrape-directory")
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := discovery.InitWorkspace(discovery.InitWorkspaceOptions{
		ScrapeDir:  strings.TrimSpace(dir),
		ConfigPath: strings.TrimSpace(*config),
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}

	fmt.Println("workspace initialized")
	fmt.Printf("scrape_dir: %s\n", res.ScrapeDir)
	fmt.Printf("config: %s\n", res.ConfigPath)
	fmt.Printf("created_scrape_dir: %t\n", res.CreatedScrapeDir)
	fmt.Printf("created_config: %t\n", res.CreatedConfig)
	fmt.Println("checks:")
	for _, c := range res.DoctorResult.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
		}
		fmt.Printf("  %s: %s (%s)\n", c.Name, status, c.Message)
	}
	if !res.DoctorResult.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("next: wu-obs-scraper add --stations <id,id,...>")
	return nil
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	var (
		dir    string
		apiKey string
	)
	fs.StringVar(&dir, "scrape-directory", "", "cache root (default: settings scrape_dir)")
	fs.StringVar(&dir, "d", "", "shorthand for --scrape-directory")
	fs.StringVar(&apiKey, "api-key", "", "weather.com API key (overrides "+wuapi.APIKeyEnv+" and the key file)")
	fs.StringVar(&apiKey, "a", "", "shorthand for --api-key")
	keyFile := fs.String("key-file", wuapi.DefaultAPIKeyFile, "API key file consulted after the flag and environment")
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := discovery.Doctor(discovery.DoctorOptions{
		ScrapeDir:  strings.TrimSpace(dir),
		ConfigPath: strings.TrimSpace(*config),
		APIKey:     strings.TrimSpace(apiKey),
		APIKeyFile: strings.TrimSpace(*keyFile),
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}

	for _, c := range res.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
		}
		fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("doctor: all checks passed")
	return nil
}

func runAddProject(args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "station set name (optional; auto-generated from the stations)")
	stations := fs.String("stations", "", "comma-separated station IDs")
	fromFeatures := fs.Bool("from-features", false, "seed the station list from cached feature tiles")
	var dir string
	fs.StringVar(&dir, "scrape-directory", "", "cache root probed by --from-features (default: settings scrape_dir)")
	fs.StringVar(&dir, "d", "", "shorthand for --scrape-directory")
	kind := fs.String("kind", model.KindDaily, "default scrape kind for this set: daily|historical|features")
	units := fs.String("units", "", "units m|e (empty = inherit global settings)")
	var (
		startDate string
		endDate   string
	)
	fs.StringVar(&startDate, "start-date", "", "default range start YYYY-MM-DD")
	fs.StringVar(&startDate, "s", "", "shorthand for --start-date")
	fs.StringVar(&endDate, "end-date", "", "default range end YYYY-MM-DD")
	fs.StringVar(&endDate, "e", "", "shorthand for --end-date")
	zooms := fs.String("zooms", "", "comma-separated zoom levels for features sets")
	notes := fs.String("notes", "", "free-form notes")
	active := fs.Bool("active", true, "include the set in sync --all-projects sweeps")
	replace := fs.Bool("replace", false, "replace the set if the name already exists")
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath := strings.TrimSpace(*config)
	stationIDs := splitCommaList(*stations)
	if *fromFeatures {
		global, err := discovery.ReadGlobalSettings(configPath)
		if err != nil {
			return err
		}
		idx, err := discovery.BuildStationIndex(discovery.StationIndexOptions{
			ScrapeDir: firstNonEmpty(dir, global.ScrapeDir),
		})
		if err != nil {
			return err
		}
		for _, rec := range idx.Stations {
			stationIDs = append(stationIDs, rec.ID)
		}
	}
	kindValue := strings.TrimSpace(*kind)
	if len(stationIDs) == 0 && kindValue != model.KindFeatures {
		raw, err := promptRequired("station IDs (comma separated)")
		if err != nil {
			return err
		}
		stationIDs = splitCommaList(raw)
	}

	var zoomList []int
	for _, z := range splitCommaList(*zooms) {
		n, err := strconv.Atoi(z)
		if err != nil {
			return fmt.Errorf("invalid zoom level %q", z)
		}
		zoomList = append(zoomList, n)
	}

	res, err := discovery.AddProject(discovery.AddProjectOptions{
		ConfigPath:          configPath,
		Name:                strings.TrimSpace(*name),
		Stations:            stationIDs,
		Kind:                kindValue,
		Units:               strings.TrimSpace(*units),
		StartDate:           strings.TrimSpace(startDate),
		EndDate:             strings.TrimSpace(endDate),
		Zooms:               zoomList,
		Notes:               strings.TrimSpace(*notes),
		Active:              boolPtr(*active),
		ReplaceIfNameExists: *replace,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(res)
	}

	action := "added"
	if !res.Created {
		action = "updated"
	}
	fmt.Printf("station set %s: %s\n", action, res.Project.Name)
	fmt.Printf("kind: %s\n", res.Project.Kind)
	fmt.Printf("stations: %d\n", len(res.Project.Stations))
	fmt.Printf("next: wu-obs-scraper sync --project %s\n", res.Project.Name)
	return nil
}

func runListProjects(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := discovery.ListProjects(discovery.ListProjectsOptions{ConfigPath: strings.TrimSpace(*config)})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}

	fmt.Printf("config: %s\n", res.ConfigPath)
	if len(res.Projects) == 0 {
		fmt.Println("no station sets configured")
		fmt.Println("next: wu-obs-scraper add --stations <id,id,...>")
		return nil
	}
	for _, p := range res.Projects {
		mark := " "
		if isProjectActive(p) {
			mark = "x"
		}
		fmt.Printf("- [%s] %s | %s | %s\n", mark, p.Name, p.Kind, describeProjectScope(p))
	}
	return nil
}

// describeProjectScope summarizes what a set covers for list output.
func describeProjectScope(p discovery.Project) string {
	if p.Kind == model.KindFeatures {
		if len(p.Zooms) == 0 {
			return "all zooms"
		}
		parts := make([]string, 0, len(p.Zooms))
		for _, z := range p.Zooms {
			parts = append(parts, strconv.Itoa(z))
		}
		return "zooms " + strings.Join(parts, ",")
	}
	switch n := len(p.Stations); n {
	case 0:
		return "no stations"
	case 1:
		return p.Stations[0]
	default:
		return fmt.Sprintf("%s +%d more", p.Stations[0], n-1)
	}
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	project := fs.String("project", "", "station set name or comma-separated names")
	all := fs.Bool("all", true, "show all configured station sets")
	var dir string
	fs.StringVar(&dir, "scrape-directory", "", "cache root (default: settings scrape_dir)")
	fs.StringVar(&dir, "d", "", "shorthand for --scrape-directory")
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*project) != "" {
		*all = false
	}

	res, err := discovery.ProjectStatus(discovery.ProjectStatusOptions{
		ConfigPath: strings.TrimSpace(*config),
		Project:    strings.TrimSpace(*project),
		All:        *all,
		ScrapeDir:  strings.TrimSpace(dir),
	})
	if err != nil {
		if errors.Is(err, discovery.ErrNoProjectsConfigured) {
			fmt.Println("no station sets configured")
			fmt.Println("start here:")
			fmt.Println("  wu-obs-scraper init")
			fmt.Println("  wu-obs-scraper add --stations <id,id,...> [--name <set>]")
			fmt.Println("then sync:")
			fmt.Println("  wu-obs-scraper sync --all-projects")
			return nil
		}
		return err
	}

	usages, usageErr := scrape.MeasureAll(res.ScrapeDir)

	if *jsonOut {
		type statusReport struct {
			discovery.ProjectStatusResult
			Usage []scrape.KindUsage `json:"usage,omitempty"`
		}
		return printJSON(statusReport{ProjectStatusResult: res, Usage: usages})
	}

	for _, row := range res.Rows {
		fmt.Printf("%s [%s]\n", row.Project, row.State)
		fmt.Printf("  kind: %s  stations: %d\n", row.Kind, row.Stations)
		if row.StartDate != "" || row.EndDate != "" {
			fmt.Printf("  range: %s .. %s\n", row.StartDate, row.EndDate)
		}
		fmt.Printf("  cached/missing/total: %d/%d/%d\n", row.Cached, row.Missing, row.Total)
		if row.CompleteStations > 0 {
			fmt.Printf("  complete_stations: %d\n", row.CompleteStations)
		}
	}
	fmt.Println("totals")
	fmt.Printf("  station_sets: %d\n", res.Totals.Projects)
	fmt.Printf("  complete: %d\n", res.Totals.Complete)
	fmt.Printf("  partial: %d\n", res.Totals.Partial)
	fmt.Printf("  never_scraped: %d\n", res.Totals.NeverScraped)
	fmt.Printf("  cached/missing: %d/%d\n", res.Totals.Cached, res.Totals.Missing)
	if usageErr == nil {
		fmt.Println("cache usage")
		for _, u := range usages {
			if u.Entries == 0 {
				continue
			}
			fmt.Printf("  %s: %d entries, %s\n", u.Kind, u.Entries, formatBytesIEC(u.Bytes))
		}
	}
	return nil
}

func runRemoveProject(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	name := fs.String("name", "", "station set name")
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	yes := fs.Bool("yes", false, "skip confirmation")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	target := strings.TrimSpace(*name)
	if target == "" && len(fs.Args()) == 1 {
		target = strings.TrimSpace(fs.Args()[0])
	}
	if target == "" {
		return errors.New("--name is required")
	}
	if !*yes {
		ok, err := promptConfirm(fmt.Sprintf("remove station set %q? [y/N] ", target))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}
	}

	res, err := discovery.RemoveProject(discovery.RemoveProjectOptions{
		ConfigPath: strings.TrimSpace(*config),
		Name:       target,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}
	fmt.Printf("removed station set: %s (%d stations)\n", res.Project.Name, len(res.Project.Stations))
	return nil
}
