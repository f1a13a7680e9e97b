package export

import (
	"encoding/json"
	"fmt"

	geojson "github.com/paulmach/go.geojson"
)

type featureEntry struct {
	key     string
	feature *geojson.Feature
}

func parseFeatureEntry(path string, data []byte) ([]featureEntry, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("parse %s: not a feature collection", path)
	}

	entries := make([]featureEntry, 0, len(fc.Features))
	for _, f := range fc.Features {
		key, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		entries = append(entries, featureEntry{key: string(key), feature: f})
	}
	return entries, nil
}

// mergeFeatures drops features that appear in more than one tile and renders
// a single combined collection. Adjacent tiles overlap at their borders, so
// duplicates are the norm rather than the exception.
func mergeFeatures(entries []featureEntry) ([]byte, int, error) {
	fc := geojson.NewFeatureCollection()
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.key] {
			continue
		}
		seen[e.key] = true
		fc.AddFeature(e.feature)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("encode feature collection: %w", err)
	}
	data = append(data, '\n')
	return data, len(fc.Features), nil
}
