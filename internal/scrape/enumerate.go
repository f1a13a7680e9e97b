package scrape

import (
	"encoding/csv"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"wu-obs-scraper/internal/model"
)

const (
	MinZoom = 0
	MaxZoom = 12
)

// DefaultStart is the earliest plausible record for any station.
var DefaultStart = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

func DefaultZooms() []int {
	zooms := make([]int, 0, 11)
	for z := 1; z <= 11; z++ {
		zooms = append(zooms, z)
	}
	return zooms
}

// DefaultEnd is the end of the default date range for one scrape kind. The
// hourly feed lags, so historical ranges stop at yesterday; daily ranges run
// through the current month.
func DefaultEnd(kind string) time.Time {
	now := time.Now().UTC()
	if kind == model.KindHistorical {
		return now.AddDate(0, 0, -1)
	}
	return now
}

func NormalizeStations(stations []string) []string {
	cleaned := make([]string, 0, len(stations))
	for _, s := range stations {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		cleaned = append(cleaned, s)
	}
	slices.Sort(cleaned)
	return slices.Compact(cleaned)
}

func NormalizeZooms(zooms []int) ([]int, error) {
	if len(zooms) == 0 {
		return nil, fmt.Errorf("no zoom levels specified")
	}
	cleaned := slices.Clone(zooms)
	slices.Sort(cleaned)
	cleaned = slices.Compact(cleaned)
	for _, z := range cleaned {
		if z < MinZoom || z > MaxZoom {
			return nil, fmt.Errorf("invalid zoom level %d (expected %d-%d)", z, MinZoom, MaxZoom)
		}
	}
	return cleaned, nil
}

// SweepTiles enumerates the full tile grid at one zoom level in row-major
// order.
func SweepTiles(zoom int) []model.TileUnit {
	n := 1 << zoom
	units := make([]model.TileUnit, 0, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			units = append(units, model.TileUnit{X: x, Y: y, Zoom: zoom})
		}
	}
	return units
}

// FilterTiles keeps the tiles at one zoom level, preserving input order and
// dropping duplicates.
func FilterTiles(tiles []model.TileUnit, zoom int) []model.TileUnit {
	units := make([]model.TileUnit, 0, len(tiles))
	seen := make(map[model.TileUnit]bool, len(tiles))
	for _, t := range tiles {
		if t.Zoom != zoom || seen[t] {
			continue
		}
		seen[t] = true
		units = append(units, t)
	}
	return units
}

// ReadTileList parses a tile list file with one x,y,zoom row per tile. A
// leading header row is tolerated.
func ReadTileList(path string) ([]model.TileUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tile list: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse tile list %s: %w", path, err)
	}

	tiles := make([]model.TileUnit, 0, len(records))
	for i, rec := range records {
		if len(rec) != 3 {
			return nil, fmt.Errorf("tile list %s row %d: want 3 columns, got %d", path, i+1, len(rec))
		}
		unit, err := parseTileRow(rec)
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("tile list %s row %d: %w", path, i+1, err)
		}
		tiles = append(tiles, unit)
	}
	return tiles, nil
}

func parseTileRow(rec []string) (model.TileUnit, error) {
	vals := make([]int, 3)
	for i, field := range rec {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return model.TileUnit{}, fmt.Errorf("parse %q: %w", field, err)
		}
		if v < 0 {
			return model.TileUnit{}, fmt.Errorf("negative tile coordinate %d", v)
		}
		vals[i] = v
	}
	return model.TileUnit{X: vals[0], Y: vals[1], Zoom: vals[2]}, nil
}

// MonthUnits enumerates the calendar months between start and end inclusive,
// newest first. Dates are truncated to month granularity.
func MonthUnits(stationID string, start, end time.Time) []model.StationMonthUnit {
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)

	units := []model.StationMonthUnit{}
	for m := last; !m.Before(first); m = m.AddDate(0, -1, 0) {
		units = append(units, model.StationMonthUnit{
			StationID: stationID,
			Year:      m.Year(),
			Month:     int(m.Month()),
		})
	}
	return units
}

// DayUnits enumerates the days between start and end inclusive, newest first.
func DayUnits(stationID string, start, end time.Time) []model.StationDayUnit {
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	units := []model.StationDayUnit{}
	for d := last; !d.Before(first); d = d.AddDate(0, 0, -1) {
		units = append(units, model.StationDayUnit{
			StationID: stationID,
			Year:      d.Year(),
			Month:     int(d.Month()),
			Day:       d.Day(),
		})
	}
	return units
}
