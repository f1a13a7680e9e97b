package scrape

import (
	"os"

	"wu-obs-scraper/internal/cachestore"
	"wu-obs-scraper/internal/model"
)

// KindUsage summarizes the on-disk cache for one scrape kind.
type KindUsage struct {
	Kind     string `json:"kind"`
	Entries  int    `json:"entries"`
	Bytes    int64  `json:"bytes"`
	Stations int    `json:"stations"`
	Complete int    `json:"complete"`
}

func MeasureKind(dir, kind string) (KindUsage, error) {
	usage := KindUsage{Kind: kind}

	paths, err := cachestore.WalkKind(dir, kind)
	if err != nil {
		return KindUsage{}, err
	}
	usage.Entries = len(paths)
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return KindUsage{}, err
		}
		usage.Bytes += info.Size()
	}

	stations, err := cachestore.ListStationDirs(dir, kind)
	if err != nil {
		return KindUsage{}, err
	}
	usage.Stations = len(stations)
	for _, station := range stations {
		if cachestore.IsGroupComplete(dir, kind, station) {
			usage.Complete++
		}
	}
	return usage, nil
}

func MeasureAll(dir string) ([]KindUsage, error) {
	kinds := []string{model.KindFeatures, model.KindDaily, model.KindHistorical}
	usages := make([]KindUsage, 0, len(kinds))
	for _, kind := range kinds {
		usage, err := MeasureKind(dir, kind)
		if err != nil {
			return nil, err
		}
		usages = append(usages, usage)
	}
	return usages, nil
}
