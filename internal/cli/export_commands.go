package cli

import (
	"flag"
	"fmt"
	"strings"

	"wu-obs-scraper/internal/discovery"
	"wu-obs-scraper/internal/export"
	"wu-obs-scraper/internal/model"
)

type exportReport struct {
	Kind       string              `json:"kind"`
	OutputPath string              `json:"output_path"`
	Files      int                 `json:"files"`
	Parsed     int                 `json:"parsed"`
	Skipped    int                 `json:"skipped"`
	Rows       int                 `json:"rows"`
	Failures   []model.UnitFailure `json:"failures,omitempty"`
}

func newExportReport(res export.RunResult) exportReport {
	return exportReport{
		Kind:       res.Kind,
		OutputPath: res.OutputPath,
		Files:      res.Files,
		Parsed:     res.Parsed,
		Skipped:    res.Skipped,
		Rows:       res.Rows,
		Failures:   res.Failures,
	}
}

func runExportDaily(args []string) error      { return runExport(model.KindDaily, args) }
func runExportHistorical(args []string) error { return runExport(model.KindHistorical, args) }
func runExportFeatures(args []string) error   { return runExport(model.KindFeatures, args) }

func runExport(kind string, args []string) error {
	fs := flag.NewFlagSet("export-"+kind, flag.ContinueOnError)
	var (
		dir    string
		output string
		jobs   int
	)
	fs.StringVar(&dir, "scrape-directory", "", "cache root to read (default: settings scrape_dir)")
	fs.StringVar(&dir, "d", "", "shorthand for --scrape-directory")
	fs.StringVar(&output, "output-file", "", "destination file (CSV, or GeoJSON for features)")
	fs.StringVar(&output, "o", "", "shorthand for --output-file")
	fs.IntVar(&jobs, "jobs", 0, "parallel parse workers (0 = settings export_jobs)")
	fs.IntVar(&jobs, "j", 0, "shorthand for --jobs")
	var progress, verbose bool
	fs.BoolVar(&progress, "progress", false, "show a live worker dashboard")
	fs.BoolVar(&progress, "p", false, "shorthand for --progress")
	fs.BoolVar(&verbose, "verbose", false, "enumerate unreadable cache entries in the summary")
	fs.BoolVar(&verbose, "v", false, "shorthand for --verbose")
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")

	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(fs.Args()) > 0 {
		fs.Usage()
		return fmt.Errorf("unexpected argument %q", fs.Args()[0])
	}

	global, err := discovery.ReadGlobalSettings(strings.TrimSpace(*config))
	if err != nil {
		return err
	}
	if jobs <= 0 {
		jobs = global.ExportJobs
	}

	res, err := export.Run(export.RunOptions{
		Dir:        firstNonEmpty(dir, global.ScrapeDir),
		Kind:       kind,
		OutputPath: strings.TrimSpace(output),
		Jobs:       jobs,
		Progress:   progress && !*jsonOut,
	})
	if err != nil {
		return err
	}
	report := newExportReport(res)

	if *jsonOut {
		return printJSON(report)
	}
	fmt.Println("export summary")
	fmt.Printf("kind: %s\n", report.Kind)
	fmt.Printf("output: %s\n", report.OutputPath)
	fmt.Printf("files: %d\n", report.Files)
	fmt.Printf("parsed: %d\n", report.Parsed)
	fmt.Printf("skipped: %d\n", report.Skipped)
	fmt.Printf("rows: %d\n", report.Rows)
	if verbose {
		for _, f := range report.Failures {
			fmt.Printf("  unreadable %s: %s\n", f.UnitID, f.Reason)
		}
	}
	return nil
}
