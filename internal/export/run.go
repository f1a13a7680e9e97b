package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"wu-obs-scraper/internal/cachestore"
	"wu-obs-scraper/internal/model"
)

type RunOptions struct {
	Dir        string
	Kind       string
	OutputPath string
	Jobs       int
	Progress   bool
}

type RunResult struct {
	Kind       string
	OutputPath string
	Files      int
	Parsed     int
	Skipped    int
	Rows       int
	Failures   []model.UnitFailure
}

type parseResult struct {
	path string
	rows []observationRow
	feat []featureEntry
	err  error
}

// Run exports every cache entry of one scrape kind into a single output
// file: a flat CSV of observations, or a merged GeoJSON feature collection
// for discovery data. Parsing is spread across a worker pool; malformed
// entries are skipped and reported, never fatal.
func Run(opts RunOptions) (RunResult, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return RunResult{}, fmt.Errorf("scrape directory not specified")
	}
	if !model.IsKnownKind(opts.Kind) {
		return RunResult{}, fmt.Errorf("unknown scrape kind %q", opts.Kind)
	}
	outputPath := strings.TrimSpace(opts.OutputPath)
	if outputPath == "" {
		return RunResult{}, fmt.Errorf("output file not specified")
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = 1
	}

	lock, err := cachestore.AcquireOutputLock(outputPath)
	if err != nil {
		return RunResult{}, err
	}
	defer func() {
		_ = lock.Release()
	}()

	paths, err := cachestore.WalkKind(dir, opts.Kind)
	if err != nil {
		return RunResult{}, err
	}

	var dash *exportDashboard
	if opts.Progress {
		dash = newExportDashboard(jobs, len(paths))
		dash.Start()
		defer dash.Stop()
	}

	results := parseAll(paths, opts.Kind, jobs, dash)

	res := RunResult{Kind: opts.Kind, OutputPath: outputPath, Files: len(paths)}
	rows := make([]observationRow, 0, len(paths))
	feats := make([]featureEntry, 0, len(paths))
	for _, pr := range results {
		if pr.err != nil {
			res.Skipped++
			res.Failures = append(res.Failures, model.UnitFailure{
				UnitID: relativeTo(dir, pr.path),
				Reason: pr.err.Error(),
			})
			continue
		}
		res.Parsed++
		rows = append(rows, pr.rows...)
		feats = append(feats, pr.feat...)
	}

	var data []byte
	switch opts.Kind {
	case model.KindFeatures:
		merged, n, err := mergeFeatures(feats)
		if err != nil {
			return RunResult{}, err
		}
		res.Rows = n
		data = merged
	default:
		res.Rows = len(rows)
		data, err = observationsCSV(rows)
		if err != nil {
			return RunResult{}, err
		}
	}

	if err := cachestore.WriteBytes(outputPath, data); err != nil {
		return RunResult{}, err
	}
	return res, nil
}

// parseAll fans the cache entries out over a worker pool. Workers write
// disjoint slots of the results slice, so collection needs no locking and
// the output order matches the sorted path order regardless of scheduling.
func parseAll(paths []string, kind string, jobs int, dash *exportDashboard) []parseResult {
	results := make([]parseResult, len(paths))
	jobCh := make(chan int)
	var wg sync.WaitGroup

	workerFn := func(workerID int) {
		defer wg.Done()
		for i := range jobCh {
			path := paths[i]
			if dash != nil {
				dash.SetWorker(workerID, relativeToRoot(path, kind))
			}
			results[i] = parseEntry(path, kind)
			if dash != nil {
				dash.FileDone(workerID, relativeToRoot(path, kind), results[i].err)
			}
		}
	}

	for w := 1; w <= jobs; w++ {
		wg.Add(1)
		go workerFn(w)
	}
	for i := range paths {
		jobCh <- i
	}
	close(jobCh)
	wg.Wait()
	return results
}

func parseEntry(path, kind string) parseResult {
	data, err := cachestore.ReadCompressed(path)
	if err != nil {
		return parseResult{path: path, err: err}
	}
	if kind == model.KindFeatures {
		feat, err := parseFeatureEntry(path, data)
		return parseResult{path: path, feat: feat, err: err}
	}
	rows, err := parseObservationEntry(path, data)
	return parseResult{path: path, rows: rows, err: err}
}

func relativeTo(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return path
	}
	return rel
}

// relativeToRoot trims everything before the kind directory for display.
func relativeToRoot(path, kind string) string {
	sep := string(filepath.Separator)
	marker := sep + kind + sep
	if i := strings.LastIndex(path, marker); i >= 0 {
		return path[i+1:]
	}
	return filepath.Base(path)
}
