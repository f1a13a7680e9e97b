package scrape

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"wu-obs-scraper/internal/model"
)

func TestMonthUnitsNewestFirstInclusive(t *testing.T) {
	start := time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.March, 20, 12, 30, 0, 0, time.UTC)

	units := MonthUnits("KMATEST1", start, end)
	want := []model.StationMonthUnit{
		{StationID: "KMATEST1", Year: 2023, Month: 3},
		{StationID: "KMATEST1", Year: 2023, Month: 2},
		{StationID: "KMATEST1", Year: 2023, Month: 1},
	}
	if !slices.Equal(units, want) {
		t.Fatalf("unexpected month units: %v", units)
	}

	again := MonthUnits("KMATEST1", start, end)
	if !slices.Equal(units, again) {
		t.Fatalf("enumeration is not repeatable: %v vs %v", units, again)
	}
}

func TestMonthUnitsCrossYearBoundary(t *testing.T) {
	start := time.Date(2022, time.November, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC)

	units := MonthUnits("STN", start, end)
	if len(units) != 4 {
		t.Fatalf("expected 4 months, got %d", len(units))
	}
	if units[0].Year != 2023 || units[0].Month != 2 {
		t.Fatalf("expected newest month first, got %04d-%02d", units[0].Year, units[0].Month)
	}
	if units[3].Year != 2022 || units[3].Month != 11 {
		t.Fatalf("expected oldest month last, got %04d-%02d", units[3].Year, units[3].Month)
	}
}

func TestMonthUnitsEmptyWhenEndBeforeStart(t *testing.T) {
	start := time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC)
	if units := MonthUnits("STN", start, end); len(units) != 0 {
		t.Fatalf("expected no units, got %v", units)
	}
}

func TestDayUnitsNewestFirstAcrossMonthRollover(t *testing.T) {
	start := time.Date(2023, time.February, 27, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.March, 2, 0, 0, 0, 0, time.UTC)

	units := DayUnits("KBOS", start, end)
	want := []model.StationDayUnit{
		{StationID: "KBOS", Year: 2023, Month: 3, Day: 2},
		{StationID: "KBOS", Year: 2023, Month: 3, Day: 1},
		{StationID: "KBOS", Year: 2023, Month: 2, Day: 28},
		{StationID: "KBOS", Year: 2023, Month: 2, Day: 27},
	}
	if !slices.Equal(units, want) {
		t.Fatalf("unexpected day units: %v", units)
	}
}

func TestDayUnitsSingleDay(t *testing.T) {
	day := time.Date(2023, time.June, 10, 9, 0, 0, 0, time.UTC)
	units := DayUnits("KBOS", day, day)
	if len(units) != 1 || units[0].Day != 10 {
		t.Fatalf("unexpected units: %v", units)
	}
}

func TestNormalizeStationsSortsAndDedupes(t *testing.T) {
	got := NormalizeStations([]string{" KMAB ", "KMAA", "KMAB", "", "  "})
	want := []string{"KMAA", "KMAB"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNormalizeZooms(t *testing.T) {
	got, err := NormalizeZooms([]int{5, 3, 5, 4})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if !slices.Equal(got, []int{3, 4, 5}) {
		t.Fatalf("expected sorted deduped zooms, got %v", got)
	}

	if _, err := NormalizeZooms(nil); err == nil {
		t.Fatal("expected error for empty zoom list")
	}
	if _, err := NormalizeZooms([]int{-1}); err == nil {
		t.Fatal("expected error for negative zoom")
	}
	if _, err := NormalizeZooms([]int{13}); err == nil {
		t.Fatal("expected error for zoom beyond upstream range")
	}
}

func TestDefaultZooms(t *testing.T) {
	zooms := DefaultZooms()
	if len(zooms) != 11 || zooms[0] != 1 || zooms[10] != 11 {
		t.Fatalf("unexpected default zooms: %v", zooms)
	}
}

func TestSweepTilesCoversGrid(t *testing.T) {
	if units := SweepTiles(0); len(units) != 1 || units[0] != (model.TileUnit{X: 0, Y: 0, Zoom: 0}) {
		t.Fatalf("unexpected zoom 0 sweep: %v", units)
	}

	units := SweepTiles(1)
	want := []model.TileUnit{
		{X: 0, Y: 0, Zoom: 1},
		{X: 1, Y: 0, Zoom: 1},
		{X: 0, Y: 1, Zoom: 1},
		{X: 1, Y: 1, Zoom: 1},
	}
	if !slices.Equal(units, want) {
		t.Fatalf("unexpected zoom 1 sweep: %v", units)
	}
}

func TestFilterTilesKeepsOrderAndDropsDuplicates(t *testing.T) {
	tiles := []model.TileUnit{
		{X: 3, Y: 2, Zoom: 4},
		{X: 1, Y: 1, Zoom: 3},
		{X: 3, Y: 2, Zoom: 4},
		{X: 0, Y: 0, Zoom: 4},
	}
	got := FilterTiles(tiles, 4)
	want := []model.TileUnit{
		{X: 3, Y: 2, Zoom: 4},
		{X: 0, Y: 0, Zoom: 4},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := FilterTiles(tiles, 9); len(got) != 0 {
		t.Fatalf("expected no tiles at zoom 9, got %v", got)
	}
}

func TestReadTileListSkipsHeaderRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.csv")
	data := "x,y,z\n0,1,2\n3,2,3\n9,12,4\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	tiles, err := ReadTileList(path)
	if err != nil {
		t.Fatalf("read tile list failed: %v", err)
	}
	want := []model.TileUnit{
		{X: 0, Y: 1, Zoom: 2},
		{X: 3, Y: 2, Zoom: 3},
		{X: 9, Y: 12, Zoom: 4},
	}
	if !slices.Equal(tiles, want) {
		t.Fatalf("expected %v, got %v", want, tiles)
	}
}

func TestReadTileListRejectsBadRows(t *testing.T) {
	dir := t.TempDir()

	badValue := filepath.Join(dir, "bad_value.csv")
	if err := os.WriteFile(badValue, []byte("0,1,2\n3,oops,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadTileList(badValue); err == nil {
		t.Fatal("expected error for non-numeric tile row")
	}

	negative := filepath.Join(dir, "negative.csv")
	if err := os.WriteFile(negative, []byte("0,1,2\n-1,0,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadTileList(negative); err == nil {
		t.Fatal("expected error for negative tile coordinate")
	}

	if _, err := ReadTileList(filepath.Join(dir, "missing.csv")); err == nil {
		t.Fatal("expected error for missing tile list")
	}
}
