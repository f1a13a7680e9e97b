package discovery

import (
	"sort"
	"strings"
	"time"

	"wu-obs-scraper/internal/cachestore"
	"wu-obs-scraper/internal/model"
	"wu-obs-scraper/internal/scrape"
)

type ProjectStatusOptions struct {
	ConfigPath string
	Project    string
	All        bool
	ScrapeDir  string
}

type ProjectStatusResult struct {
	ConfigPath string              `json:"config_path"`
	ScrapeDir  string              `json:"scrape_dir"`
	Rows       []ProjectStatusItem `json:"projects"`
	Totals     ProjectStatusTotals `json:"totals"`
}

type ProjectStatusItem struct {
	Project          string `json:"project"`
	Kind             string `json:"kind"`
	Stations         int    `json:"stations"`
	StartDate        string `json:"start_date,omitempty"`
	EndDate          string `json:"end_date,omitempty"`
	Total            int    `json:"total_units"`
	Cached           int    `json:"cached_units"`
	Missing          int    `json:"missing_units"`
	CompleteStations int    `json:"complete_stations"`
	State            string `json:"state"`
}

type ProjectStatusTotals struct {
	Projects     int `json:"projects"`
	Complete     int `json:"complete"`
	Partial      int `json:"partial"`
	NeverScraped int `json:"never_scraped"`
	TotalUnits   int `json:"total_units"`
	Cached       int `json:"cached_units"`
	Missing      int `json:"missing_units"`
}

// ProjectStatus reports per-set cache completeness by re-enumerating each
// set's units and probing the cache, so the numbers always reflect the
// current requested range rather than whatever a past run recorded.
func ProjectStatus(opts ProjectStatusOptions) (ProjectStatusResult, error) {
	configPath := normalizeConfigPath(opts.ConfigPath)

	projects, err := ResolveProjectSelection(configPath, opts.Project, opts.All)
	if err != nil {
		return ProjectStatusResult{}, err
	}

	dir := strings.TrimSpace(opts.ScrapeDir)
	if dir == "" {
		global, err := ReadGlobalSettings(configPath)
		if err != nil {
			return ProjectStatusResult{}, err
		}
		dir = global.ScrapeDir
	}

	rows := make([]ProjectStatusItem, 0, len(projects))
	totals := ProjectStatusTotals{}

	for _, p := range projects {
		row, err := buildProjectStatusRow(dir, p)
		if err != nil {
			return ProjectStatusResult{}, err
		}
		rows = append(rows, row)
		totals.Projects++
		totals.TotalUnits += row.Total
		totals.Cached += row.Cached
		totals.Missing += row.Missing
		switch row.State {
		case "complete", "cached_only":
			totals.Complete++
		case "never_scraped":
			totals.NeverScraped++
		default:
			totals.Partial++
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Project < rows[j].Project
	})

	return ProjectStatusResult{
		ConfigPath: configPath,
		ScrapeDir:  dir,
		Rows:       rows,
		Totals:     totals,
	}, nil
}

func buildProjectStatusRow(dir string, p Project) (ProjectStatusItem, error) {
	row := ProjectStatusItem{
		Project:  p.Name,
		Kind:     p.Kind,
		Stations: len(p.Stations),
	}

	if p.Kind == model.KindFeatures {
		paths, err := cachestore.WalkKind(dir, model.KindFeatures)
		if err != nil {
			return ProjectStatusItem{}, err
		}
		row.Total = len(paths)
		row.Cached = len(paths)
		if len(paths) == 0 {
			row.State = "never_scraped"
		} else {
			row.State = "cached_only"
		}
		return row, nil
	}

	start, end, err := ProjectDateRange(p)
	if err != nil {
		return ProjectStatusItem{}, err
	}
	row.StartDate = start.Format(projectDateLayout)
	row.EndDate = end.Format(projectDateLayout)

	for _, station := range p.Stations {
		units := stationUnits(p.Kind, station, start, end)
		row.Total += len(units)
		for _, unit := range units {
			if cachestore.Exists(dir, unit) {
				row.Cached++
			}
		}
		if cachestore.IsGroupComplete(dir, p.Kind, station) {
			row.CompleteStations++
		}
	}
	row.Missing = row.Total - row.Cached

	switch {
	case row.Cached == 0:
		row.State = "never_scraped"
	case row.Missing == 0:
		row.State = "complete"
	default:
		row.State = "partial"
	}
	return row, nil
}

// ProjectDateRange resolves a set's date range, applying the package-wide
// defaults for empty fields.
func ProjectDateRange(p Project) (time.Time, time.Time, error) {
	start := scrape.DefaultStart
	if strings.TrimSpace(p.StartDate) != "" {
		parsed, err := time.Parse(projectDateLayout, p.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = parsed
	}
	end := scrape.DefaultEnd(p.Kind)
	if strings.TrimSpace(p.EndDate) != "" {
		parsed, err := time.Parse(projectDateLayout, p.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = parsed
	}
	return start, end, nil
}

func stationUnits(kind, station string, start, end time.Time) []model.WorkUnit {
	if kind == model.KindHistorical {
		days := scrape.DayUnits(station, start, end)
		units := make([]model.WorkUnit, len(days))
		for i, u := range days {
			units[i] = u
		}
		return units
	}
	months := scrape.MonthUnits(station, start, end)
	units := make([]model.WorkUnit, len(months))
	for i, u := range months {
		units[i] = u
	}
	return units
}
