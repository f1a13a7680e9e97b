package discovery

import (
	"path/filepath"
	"testing"

	"wu-obs-scraper/internal/cachestore"
	"wu-obs-scraper/internal/model"
)

func TestProjectStatusCountsCachedUnits(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "registry.json")
	dir := t.TempDir()

	if _, err := AddProject(AddProjectOptions{
		ConfigPath: cfg,
		Name:       "winter",
		Stations:   []string{"KMAA1"},
		StartDate:  "2023-01-01",
		EndDate:    "2023-03-31",
	}); err != nil {
		t.Fatalf("add station set failed: %v", err)
	}

	for _, month := range []int{1, 3} {
		unit := model.StationMonthUnit{StationID: "KMAA1", Year: 2023, Month: month}
		if err := cachestore.Write(dir, unit, []byte(`{"observations":[{}]}`)); err != nil {
			t.Fatalf("seed cache entry: %v", err)
		}
	}

	res, err := ProjectStatus(ProjectStatusOptions{ConfigPath: cfg, All: true, ScrapeDir: dir})
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	row := res.Rows[0]
	if row.Total != 3 || row.Cached != 2 || row.Missing != 1 {
		t.Fatalf("got total=%d cached=%d missing=%d, expected 3/2/1", row.Total, row.Cached, row.Missing)
	}
	if row.State != "partial" {
		t.Fatalf("got state %q, expected partial", row.State)
	}
	if row.CompleteStations != 0 {
		t.Fatalf("got %d complete stations with no marker, expected 0", row.CompleteStations)
	}
	if res.Totals.Partial != 1 || res.Totals.Projects != 1 {
		t.Fatalf("totals mismatch: %+v", res.Totals)
	}
}

func TestProjectStatusReportsCompleteWithMarker(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "registry.json")
	dir := t.TempDir()

	if _, err := AddProject(AddProjectOptions{
		ConfigPath: cfg,
		Name:       "pair",
		Stations:   []string{"KMAB2"},
		StartDate:  "2023-01-01",
		EndDate:    "2023-02-28",
	}); err != nil {
		t.Fatalf("add station set failed: %v", err)
	}

	for _, month := range []int{1, 2} {
		unit := model.StationMonthUnit{StationID: "KMAB2", Year: 2023, Month: month}
		if err := cachestore.Write(dir, unit, []byte(`{"observations":[{}]}`)); err != nil {
			t.Fatalf("seed cache entry: %v", err)
		}
	}
	if err := cachestore.MarkGroupComplete(dir, model.KindDaily, "KMAB2"); err != nil {
		t.Fatalf("mark complete: %v", err)
	}

	res, err := ProjectStatus(ProjectStatusOptions{ConfigPath: cfg, Project: "pair", ScrapeDir: dir})
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	row := res.Rows[0]
	if row.State != "complete" {
		t.Fatalf("got state %q, expected complete", row.State)
	}
	if row.CompleteStations != 1 {
		t.Fatalf("got %d complete stations, expected 1", row.CompleteStations)
	}
}

func TestProjectStatusFeaturesKindNeverClaimsCompleteness(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "registry.json")
	dir := t.TempDir()

	if _, err := AddProject(AddProjectOptions{
		ConfigPath: cfg,
		Name:       "tiles",
		Kind:       model.KindFeatures,
		Zooms:      []int{2},
	}); err != nil {
		t.Fatalf("add station set failed: %v", err)
	}

	res, err := ProjectStatus(ProjectStatusOptions{ConfigPath: cfg, Project: "tiles", ScrapeDir: dir})
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if res.Rows[0].State != "never_scraped" {
		t.Fatalf("got state %q, expected never_scraped on an empty cache", res.Rows[0].State)
	}

	unit := model.TileUnit{X: 0, Y: 0, Zoom: 2}
	if err := cachestore.Write(dir, unit, []byte(`{"type":"FeatureCollection","features":[]}`)); err != nil {
		t.Fatalf("seed tile: %v", err)
	}

	res, err = ProjectStatus(ProjectStatusOptions{ConfigPath: cfg, Project: "tiles", ScrapeDir: dir})
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	row := res.Rows[0]
	if row.State != "cached_only" {
		t.Fatalf("got state %q, expected cached_only", row.State)
	}
	if row.Cached != 1 {
		t.Fatalf("got %d cached tiles, expected 1", row.Cached)
	}
}
