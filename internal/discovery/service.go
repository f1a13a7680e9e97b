package discovery

import (
	"sort"
	"strings"

	geojson "github.com/paulmach/go.geojson"

	"wu-obs-scraper/internal/cachestore"
	"wu-obs-scraper/internal/model"
)

// StationRecord is one personal weather station extracted from cached
// discovery tiles. The index never claims to be a complete census; it holds
// exactly what the cached tiles contain.
type StationRecord struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	SeenInTiles int     `json:"seen_in_tiles"`
}

type StationIndexOptions struct {
	ScrapeDir string
}

type StationIndexResult struct {
	ScrapeDir    string          `json:"scrape_dir"`
	Tiles        int             `json:"tiles"`
	SkippedTiles int             `json:"skipped_tiles"`
	Stations     []StationRecord `json:"stations"`
}

// BuildStationIndex walks the cached feature tiles and merges every station
// they mention into one deduplicated, ID-sorted list. Works offline; tiles
// that fail to parse are counted and skipped.
func BuildStationIndex(opts StationIndexOptions) (StationIndexResult, error) {
	dir := strings.TrimSpace(opts.ScrapeDir)
	if dir == "" {
		dir = DefaultScrapeDir
	}

	paths, err := cachestore.WalkKind(dir, model.KindFeatures)
	if err != nil {
		return StationIndexResult{}, err
	}

	res := StationIndexResult{ScrapeDir: dir}
	byID := make(map[string]*StationRecord)
	for _, path := range paths {
		data, err := cachestore.ReadCompressed(path)
		if err != nil {
			res.SkippedTiles++
			continue
		}
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil || fc.Type != "FeatureCollection" {
			res.SkippedTiles++
			continue
		}
		res.Tiles++
		for _, f := range fc.Features {
			rec, ok := stationFromFeature(f)
			if !ok {
				continue
			}
			mergeStation(byID, rec)
		}
	}

	res.Stations = make([]StationRecord, 0, len(byID))
	for _, rec := range byID {
		res.Stations = append(res.Stations, *rec)
	}
	sort.Slice(res.Stations, func(i, j int) bool {
		return res.Stations[i].ID < res.Stations[j].ID
	})
	return res, nil
}

func stationFromFeature(f *geojson.Feature) (StationRecord, bool) {
	if f == nil {
		return StationRecord{}, false
	}
	id := stringProperty(f, "stationId", "stationID", "id")
	if id == "" {
		return StationRecord{}, false
	}
	rec := StationRecord{
		ID:   id,
		Name: stringProperty(f, "stationName", "name"),
	}
	if f.Geometry != nil && f.Geometry.IsPoint() && len(f.Geometry.Point) >= 2 {
		rec.Longitude = f.Geometry.Point[0]
		rec.Latitude = f.Geometry.Point[1]
	}
	return rec, true
}

func stringProperty(f *geojson.Feature, names ...string) string {
	for _, name := range names {
		v, ok := f.Properties[name]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// mergeStation folds one sighting into the index. Adjacent tiles overlap, so
// the same station routinely arrives from several tiles and zoom levels.
func mergeStation(byID map[string]*StationRecord, rec StationRecord) {
	existing, ok := byID[rec.ID]
	if !ok {
		rec.SeenInTiles = 1
		byID[rec.ID] = &rec
		return
	}
	existing.SeenInTiles++
	if existing.Name == "" {
		existing.Name = rec.Name
	}
	if existing.Latitude == 0 && existing.Longitude == 0 {
		existing.Latitude = rec.Latitude
		existing.Longitude = rec.Longitude
	}
}
