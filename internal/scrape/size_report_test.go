package scrape

import (
	"testing"

	"wu-obs-scraper/internal/cachestore"
	"wu-obs-scraper/internal/model"
)

func TestMeasureKind(t *testing.T) {
	dir := t.TempDir()
	payload := []byte(`{"observations":[{"epoch":1}]}`)

	entries := []model.WorkUnit{
		model.StationMonthUnit{StationID: "KMAA", Year: 2023, Month: 1},
		model.StationMonthUnit{StationID: "KMAA", Year: 2023, Month: 2},
		model.StationMonthUnit{StationID: "KMAB", Year: 2023, Month: 1},
		model.TileUnit{X: 0, Y: 0, Zoom: 2},
	}
	for _, unit := range entries {
		if err := cachestore.Write(dir, unit, payload); err != nil {
			t.Fatal(err)
		}
	}
	if err := cachestore.MarkGroupComplete(dir, model.KindDaily, "KMAA"); err != nil {
		t.Fatal(err)
	}

	daily, err := MeasureKind(dir, model.KindDaily)
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if daily.Entries != 3 || daily.Stations != 2 || daily.Complete != 1 {
		t.Fatalf("unexpected daily usage: %+v", daily)
	}
	if daily.Bytes <= 0 {
		t.Fatal("expected nonzero cache size")
	}

	features, err := MeasureKind(dir, model.KindFeatures)
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if features.Entries != 1 || features.Stations != 0 {
		t.Fatalf("unexpected features usage: %+v", features)
	}
}

func TestMeasureAllOnEmptyDirectory(t *testing.T) {
	usages, err := MeasureAll(t.TempDir())
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if len(usages) != 3 {
		t.Fatalf("expected one usage per scrape kind, got %d", len(usages))
	}
	for _, u := range usages {
		if u.Entries != 0 || u.Bytes != 0 {
			t.Fatalf("expected empty usage for %s: %+v", u.Kind, u)
		}
	}
}
