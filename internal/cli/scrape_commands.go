package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wu-obs-scraper/internal/discovery"
	"wu-obs-scraper/internal/export"
	"wu-obs-scraper/internal/model"
	"wu-obs-scraper/internal/scrape"
	"wu-obs-scraper/internal/wuapi"
)

type scrapeReport struct {
	Kind             string              `json:"kind"`
	ScrapeDir        string              `json:"scrape_dir"`
	Total            int                 `json:"total"`
	Fetched          int                 `json:"fetched"`
	Skipped          int                 `json:"skipped"`
	Failed           int                 `json:"failed"`
	StationsComplete int                 `json:"stations_complete,omitempty"`
	Failures         []model.UnitFailure `json:"failures,omitempty"`
	Export           *exportReport       `json:"export,omitempty"`
}

func runDaily(args []string) error      { return runScrape(model.KindDaily, args) }
func runHistorical(args []string) error { return runScrape(model.KindHistorical, args) }
func runFeatures(args []string) error   { return runScrape(model.KindFeatures, args) }

// runScrape is the shared implementation behind daily/historical/features.
// Positional arguments are station IDs for the observation kinds and zoom
// levels for features.
func runScrape(kind string, args []string) error {
	fs := flag.NewFlagSet(kind, flag.ContinueOnError)
	var (
		apiKey    string
		dir       string
		output    string
		startDate string
		endDate   string
		units     string
		progress  bool
		verbose   bool
	)
	fs.StringVar(&apiKey, "api-key", "", "weather.com API key (overrides "+wuapi.APIKeyEnv+" and the key file)")
	fs.StringVar(&apiKey, "a", "", "shorthand for --api-key")
	fs.StringVar(&dir, "scrape-directory", "", "cache root (default: settings scrape_dir)")
	fs.StringVar(&dir, "d", "", "shorthand for --scrape-directory")
	fs.StringVar(&output, "output-file", "", "export the scraped kind to this file after the run")
	fs.StringVar(&output, "o", "", "shorthand for --output-file")
	fs.StringVar(&startDate, "start-date", "", "range start YYYY-MM-DD (default 1980-01-01)")
	fs.StringVar(&startDate, "s", "", "shorthand for --start-date")
	fs.StringVar(&endDate, "end-date", "", "range end YYYY-MM-DD (default: now)")
	fs.StringVar(&endDate, "e", "", "shorthand for --end-date")
	fs.StringVar(&units, "units", "", "units m|e (default: station set, then settings)")
	fs.StringVar(&units, "u", "", "shorthand for --units")
	fs.BoolVar(&progress, "progress", false, "show a live progress line")
	fs.BoolVar(&progress, "p", false, "shorthand for --progress")
	fs.BoolVar(&verbose, "verbose", false, "print one line per processed unit")
	fs.BoolVar(&verbose, "v", false, "shorthand for --verbose")
	keyFile := fs.String("key-file", wuapi.DefaultAPIKeyFile, "API key file consulted after the flag and environment")
	overwrite := fs.Bool("overwrite", false, "refetch units that are already cached")
	project := fs.String("project", "", "take stations and range defaults from a registered station set")
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	maxAttempts := fs.Int("max-attempts", 0, "fetch attempts per unit (0 = settings default)")
	var tilesPath string
	if kind == model.KindFeatures {
		fs.StringVar(&tilesPath, "tiles", "", "CSV tile list with x,y,z columns; limits the sweep to listed tiles")
	}
	jsonOut := fs.Bool("json", false, "print JSON output")

	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath := strings.TrimSpace(*config)
	positional := fs.Args()

	proj := discovery.Project{}
	if strings.TrimSpace(*project) != "" {
		if len(positional) > 0 {
			return errors.New("positional arguments and --project are mutually exclusive")
		}
		p, err := discovery.FindProjectByName(configPath, strings.TrimSpace(*project))
		if err != nil {
			return err
		}
		proj = p
	}

	var stations []string
	var zooms []int
	var tiles []model.TileUnit
	if kind == model.KindFeatures {
		for _, arg := range positional {
			z, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("invalid zoom level %q", arg)
			}
			zooms = append(zooms, z)
		}
		if len(zooms) == 0 {
			zooms = proj.Zooms
		}
		if len(zooms) == 0 {
			zooms = scrape.DefaultZooms()
		}
		if strings.TrimSpace(tilesPath) != "" {
			list, err := scrape.ReadTileList(strings.TrimSpace(tilesPath))
			if err != nil {
				return err
			}
			tiles = list
		}
	} else {
		stations = positional
		if len(stations) == 0 {
			stations = proj.Stations
		}
		if len(stations) == 0 {
			fs.Usage()
			return errors.New("station IDs required: pass them as arguments or via --project")
		}
	}

	start, err := resolveScrapeDate(startDate, proj.StartDate, time.Time{})
	if err != nil {
		return err
	}
	end, err := resolveScrapeDate(endDate, proj.EndDate, scrape.DefaultEnd(kind))
	if err != nil {
		return err
	}

	global, err := discovery.ReadGlobalSettings(configPath)
	if err != nil {
		return err
	}
	fetch, err := discovery.ResolveRuntimeFetchSettings(proj, global, strings.TrimSpace(units), *maxAttempts)
	if err != nil {
		return err
	}
	client, err := buildFetchClient(apiKey, strings.TrimSpace(*keyFile), fetch)
	if err != nil {
		return err
	}
	scrapeDir := firstNonEmpty(dir, global.ScrapeDir)

	showProgress := progress && !verbose && !*jsonOut
	prog := scrape.NewProgress(showProgress, kind)
	observer := func(ev scrape.Event) {
		prog.Observe(ev)
		if verbose && !*jsonOut {
			printScrapeEvent(ev)
		}
	}

	prog.Start()
	result, runErr := scrape.Run(context.Background(), scrape.RunOptions{
		Client:    client,
		Dir:       scrapeDir,
		Kind:      kind,
		Stations:  stations,
		Zooms:     zooms,
		Tiles:     tiles,
		Start:     start,
		End:       end,
		Overwrite: *overwrite,
		Observer:  observer,
	})
	prog.Stop(fmt.Sprintf("%s finished  fetched:%d skipped:%d failed:%d",
		kind, result.Fetched, result.Skipped, result.Failed))
	if runErr != nil {
		return runErr
	}

	report := scrapeReport{
		Kind:      result.Kind,
		ScrapeDir: scrapeDir,
		Total:     result.Total,
		Fetched:   result.Fetched,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
		Failures:  result.Failures,
	}
	if kind != model.KindFeatures {
		report.StationsComplete = result.MarkedComplete
	}

	if strings.TrimSpace(output) != "" {
		expRes, err := export.Run(export.RunOptions{
			Dir:        scrapeDir,
			Kind:       kind,
			OutputPath: strings.TrimSpace(output),
			Jobs:       global.ExportJobs,
			Progress:   showProgress,
		})
		if err != nil {
			return err
		}
		er := newExportReport(expRes)
		report.Export = &er
	}

	if *jsonOut {
		return printJSON(report)
	}

	fmt.Println("scrape summary")
	fmt.Printf("kind: %s\n", report.Kind)
	fmt.Printf("scrape_dir: %s\n", report.ScrapeDir)
	fmt.Printf("total: %d\n", report.Total)
	fmt.Printf("fetched: %d\n", report.Fetched)
	fmt.Printf("skipped: %d\n", report.Skipped)
	fmt.Printf("failed: %d\n", report.Failed)
	if kind != model.KindFeatures {
		fmt.Printf("stations_complete: %d\n", report.StationsComplete)
	}
	for _, f := range report.Failures {
		fmt.Printf("  failed %s: %s\n", f.UnitID, f.Reason)
	}
	if report.Export != nil {
		fmt.Printf("exported: %s (%d rows)\n", report.Export.OutputPath, report.Export.Rows)
	}
	return nil
}

// resolveScrapeDate applies flag > station set > fallback precedence to one
// date field.
func resolveScrapeDate(flagValue, projectValue string, fallback time.Time) (time.Time, error) {
	for _, raw := range []string{flagValue, projectValue} {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", v)
		}
		return t.UTC(), nil
	}
	return fallback, nil
}

func buildFetchClient(apiKeyFlag, keyFile string, fetch discovery.RuntimeFetchSettings) (*wuapi.Client, error) {
	key, _, err := wuapi.ResolveAPIKey(apiKeyFlag, keyFile)
	if err != nil {
		return nil, err
	}
	return wuapi.New(wuapi.Options{
		APIKey:        key,
		BaseURL:       os.Getenv(wuapi.BaseURLEnv),
		Units:         fetch.Units,
		MaxAttempts:   fetch.MaxAttempts,
		RetryStatuses: fetch.RetryStatuses,
		ProxyMode:     fetch.ProxyMode,
		Proxies:       fetch.Proxies,
	})
}

func printScrapeEvent(ev scrape.Event) {
	switch {
	case ev.Unit == nil && ev.Status == model.StatusCached:
		fmt.Printf("[%d/%d] %s complete, skipping %d unit(s)\n", ev.Done, ev.Total, ev.Group, ev.Units)
	case ev.Unit == nil:
		return
	case ev.Status == model.StatusFetching:
		fmt.Printf("[%d/%d] fetching %s\n", ev.Done, ev.Total, ev.Unit.UnitID())
	case ev.Status == model.StatusFailed:
		fmt.Printf("[%d/%d] failed %s: %s\n", ev.Done, ev.Total, ev.Unit.UnitID(), ev.Reason)
	case ev.Status == model.StatusCached:
		fmt.Printf("[%d/%d] cached %s\n", ev.Done, ev.Total, ev.Unit.UnitID())
	case ev.Status == model.StatusFetched:
		fmt.Printf("[%d/%d] fetched %s\n", ev.Done, ev.Total, ev.Unit.UnitID())
	}
}
