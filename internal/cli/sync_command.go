package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"wu-obs-scraper/internal/discovery"
	"wu-obs-scraper/internal/model"
	"wu-obs-scraper/internal/scrape"
	"wu-obs-scraper/internal/wuapi"
)

type syncSetReport struct {
	Project          string `json:"project"`
	Kind             string `json:"kind"`
	Stations         int    `json:"stations,omitempty"`
	Total            int    `json:"total"`
	Fetched          int    `json:"fetched"`
	Skipped          int    `json:"skipped"`
	Failed           int    `json:"failed"`
	StationsComplete int    `json:"stations_complete,omitempty"`
	Error            string `json:"error,omitempty"`
}

type syncResult struct {
	RunID   string          `json:"run_id"`
	Sets    int             `json:"station_sets"`
	Total   int             `json:"total"`
	Fetched int             `json:"fetched"`
	Skipped int             `json:"skipped"`
	Failed  int             `json:"failed"`
	Errors  int             `json:"errors"`
	Reports []syncSetReport `json:"reports"`
}

type syncOptions struct {
	ConfigPath      string
	ScrapeDir       string
	APIKey          string
	KeyFile         string
	Project         string
	AllProjects     bool
	ActiveOnly      bool
	Units           string
	MaxAttempts     int
	Overwrite       bool
	ContinueOnError bool
	Progress        bool
	Verbose         bool
	JSON            bool
}

func runSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	var (
		apiKey   string
		dir      string
		units    string
		progress bool
		verbose  bool
	)
	project := fs.String("project", "", "station set name or comma-separated names")
	allProjects := fs.Bool("all-projects", false, "sync all configured station sets")
	activeOnly := fs.Bool("active-only", false, "only sync sets marked active")
	fs.StringVar(&apiKey, "api-key", "", "weather.com API key (overrides "+wuapi.APIKeyEnv+" and the key file)")
	fs.StringVar(&apiKey, "a", "", "shorthand for --api-key")
	keyFile := fs.String("key-file", wuapi.DefaultAPIKeyFile, "API key file consulted after the flag and environment")
	fs.StringVar(&dir, "scrape-directory", "", "cache root (default: settings scrape_dir)")
	fs.StringVar(&dir, "d", "", "shorthand for --scrape-directory")
	fs.StringVar(&units, "units", "", "units override m|e applied to every set")
	fs.StringVar(&units, "u", "", "shorthand for --units")
	maxAttempts := fs.Int("max-attempts", 0, "fetch attempts per unit (0 = settings default)")
	overwrite := fs.Bool("overwrite", false, "refetch units that are already cached")
	every := fs.Int("every", 0, "repeat the sweep every N minutes (0 = run once)")
	continueOnError := fs.Bool("continue-on-error", true, "continue with the next set if one fails")
	fs.BoolVar(&progress, "progress", false, "show a live progress line per set")
	fs.BoolVar(&progress, "p", false, "shorthand for --progress")
	fs.BoolVar(&verbose, "verbose", false, "print one line per processed unit")
	fs.BoolVar(&verbose, "v", false, "shorthand for --verbose")
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")

	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := syncOptions{
		ConfigPath:      strings.TrimSpace(*config),
		ScrapeDir:       strings.TrimSpace(dir),
		APIKey:          strings.TrimSpace(apiKey),
		KeyFile:         strings.TrimSpace(*keyFile),
		Project:         strings.TrimSpace(*project),
		AllProjects:     *allProjects,
		ActiveOnly:      *activeOnly,
		Units:           strings.TrimSpace(units),
		MaxAttempts:     *maxAttempts,
		Overwrite:       *overwrite,
		ContinueOnError: *continueOnError,
		Progress:        progress,
		Verbose:         verbose,
		JSON:            *jsonOut,
	}

	if opts.ActiveOnly && opts.Project == "" && !opts.AllProjects {
		return errors.New("--active-only requires --project or --all-projects")
	}
	if opts.Project == "" && !opts.AllProjects {
		return errors.New("sync requires --project or --all-projects")
	}
	if *every < 0 {
		return errors.New("--every must be >= 0")
	}
	if *every > 0 && opts.JSON {
		return errors.New("--every and --json are mutually exclusive")
	}

	if *every == 0 {
		return syncOnce(opts)
	}

	// Scheduled mode. The set selection is re-resolved inside each sweep
	// so registry edits take effect without a restart. gocron fires the
	// first run immediately.
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(*every).Minutes().Do(func() {
		if err := syncOnce(opts); err != nil {
			fmt.Fprintf(os.Stderr, "sync sweep: %v\n", err)
		}
		fmt.Printf("next sweep in %d minute(s)\n", *every)
	})
	if err != nil {
		return err
	}
	s.StartBlocking()
	return nil
}

// syncOnce performs one sweep over the selected station sets, continuing
// past per-set errors when configured to.
func syncOnce(opts syncOptions) error {
	projects, err := discovery.ResolveProjectSelectionFiltered(opts.ConfigPath, opts.Project, opts.AllProjects, opts.ActiveOnly)
	if err != nil {
		return err
	}
	global, err := discovery.ReadGlobalSettings(opts.ConfigPath)
	if err != nil {
		return err
	}
	scrapeDir := firstNonEmpty(opts.ScrapeDir, global.ScrapeDir)

	runID := uuid.NewString()
	if !opts.JSON {
		fmt.Printf("sync run %s: %d station set(s)\n", runID, len(projects))
	}

	result := syncResult{
		RunID:   runID,
		Sets:    len(projects),
		Reports: make([]syncSetReport, 0, len(projects)),
	}

	for idx, p := range projects {
		report := syncSetReport{
			Project:  p.Name,
			Kind:     p.Kind,
			Stations: len(p.Stations),
		}
		if !opts.JSON {
			fmt.Printf("[%d/%d] scraping %s (%s)\n", idx+1, len(projects), p.Name, p.Kind)
		}
		setStart := time.Now()
		res, setErr := scrapeSet(opts, global, scrapeDir, p)
		if setErr != nil {
			result.Errors++
			report.Error = setErr.Error()
			result.Reports = append(result.Reports, report)
			fmt.Fprintf(os.Stderr, "sync failed for %s: %v\n", p.Name, setErr)
			if !opts.ContinueOnError {
				if opts.JSON {
					_ = printJSON(result)
				}
				return setErr
			}
			continue
		}

		report.Total = res.Total
		report.Fetched = res.Fetched
		report.Skipped = res.Skipped
		report.Failed = res.Failed
		if p.Kind != model.KindFeatures {
			report.StationsComplete = res.MarkedComplete
		}
		result.Total += res.Total
		result.Fetched += res.Fetched
		result.Skipped += res.Skipped
		result.Failed += res.Failed
		result.Reports = append(result.Reports, report)
		if !opts.JSON {
			fmt.Printf("[%d/%d] done in %s (fetched %d, skipped %d, failed %d)\n",
				idx+1,
				len(projects),
				time.Since(setStart).Round(time.Millisecond),
				res.Fetched,
				res.Skipped,
				res.Failed,
			)
		}
	}

	if opts.JSON {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		fmt.Println("sync summary")
		fmt.Printf("run_id: %s\n", result.RunID)
		fmt.Printf("station_sets: %d\n", result.Sets)
		fmt.Printf("total: %d\n", result.Total)
		fmt.Printf("fetched: %d\n", result.Fetched)
		fmt.Printf("skipped: %d\n", result.Skipped)
		fmt.Printf("failed: %d\n", result.Failed)
		fmt.Printf("errors: %d\n", result.Errors)
	}

	if result.Errors > 0 {
		return fmt.Errorf("sync finished with %d error(s)", result.Errors)
	}
	return nil
}

// scrapeSet runs the scrape engine over one station set with its own
// resolved units and date range.
func scrapeSet(opts syncOptions, global discovery.GlobalSettings, scrapeDir string, p discovery.Project) (scrape.RunResult, error) {
	fetch, err := discovery.ResolveRuntimeFetchSettings(p, global, opts.Units, opts.MaxAttempts)
	if err != nil {
		return scrape.RunResult{}, err
	}
	client, err := buildFetchClient(opts.APIKey, opts.KeyFile, fetch)
	if err != nil {
		return scrape.RunResult{}, err
	}

	start, end, err := discovery.ProjectDateRange(p)
	if err != nil {
		return scrape.RunResult{}, err
	}

	zooms := p.Zooms
	if p.Kind == model.KindFeatures && len(zooms) == 0 {
		zooms = scrape.DefaultZooms()
	}

	showProgress := opts.Progress && !opts.Verbose && !opts.JSON
	prog := scrape.NewProgress(showProgress, p.Kind)
	observer := func(ev scrape.Event) {
		prog.Observe(ev)
		if opts.Verbose && !opts.JSON {
			printScrapeEvent(ev)
		}
	}

	prog.Start()
	res, runErr := scrape.Run(context.Background(), scrape.RunOptions{
		Client:    client,
		Dir:       scrapeDir,
		Kind:      p.Kind,
		Stations:  p.Stations,
		Zooms:     zooms,
		Start:     start,
		End:       end,
		Overwrite: opts.Overwrite,
		Observer:  observer,
	})
	prog.Stop(fmt.Sprintf("%s finished  fetched:%d skipped:%d failed:%d",
		p.Kind, res.Fetched, res.Skipped, res.Failed))
	return res, runErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

