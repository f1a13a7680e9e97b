package cachestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"wu-obs-scraper/internal/model"
)

const completeMarkerName = "complete"

var ErrNotFound = errors.New("cache entry not found")

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeStationID strips characters that are unsafe in path components.
// Upstream station IDs are plain alphanumerics; this guards against operator
// typos leaking separators into the cache layout.
func SanitizeStationID(id string) string {
	cleaned := unsafeIDChars.ReplaceAllString(strings.TrimSpace(id), "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return "unknown"
	}
	return cleaned
}

// PathFor maps a work unit to its cache file. Pure and stable across runs;
// distinct units never share a path. Tile paths carry the upstream lod value
// (zoom + 1), matching the request parameter.
func PathFor(root string, unit model.WorkUnit) string {
	switch u := unit.(type) {
	case model.TileUnit:
		return filepath.Join(root, model.KindFeatures, fmt.Sprintf("%d_%d_%d.json.gz", u.X, u.Y, u.Zoom+1))
	case model.StationMonthUnit:
		return filepath.Join(root, model.KindDaily, SanitizeStationID(u.StationID), fmt.Sprintf("%04d%02d.json.gz", u.Year, u.Month))
	case model.StationDayUnit:
		start := time.Date(u.Year, time.Month(u.Month), u.Day, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 0, 1)
		return filepath.Join(root, model.KindHistorical, SanitizeStationID(u.StationID),
			fmt.Sprintf("%s_to_%s.json.gz", start.Format("20060102"), end.Format("20060102")))
	default:
		panic(fmt.Sprintf("cachestore: unknown work unit type %T", unit))
	}
}

func Exists(root string, unit model.WorkUnit) bool {
	info, err := os.Stat(PathFor(root, unit))
	return err == nil && info.Mode().IsRegular()
}

func Read(root string, unit model.WorkUnit) ([]byte, error) {
	return ReadCompressed(PathFor(root, unit))
}

// ReadCompressed returns the decompressed contents of one cache file.
func ReadCompressed(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open cache file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress cache file %s: %w", path, err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompress cache file %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("decompress cache file %s: %w", path, err)
	}
	return data, nil
}

// Write compresses and persists one cache entry. The write is atomic: a
// concurrent reader sees either the previous file or the new one, never a
// partial write.
func Write(root string, unit model.WorkUnit, data []byte) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("compress cache entry for %s: %w", unit.UnitID(), err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compress cache entry for %s: %w", unit.UnitID(), err)
	}
	return WriteBytes(PathFor(root, unit), buf.Bytes())
}

func GroupDir(root, kind, stationID string) string {
	return filepath.Join(root, kind, SanitizeStationID(stationID))
}

func MarkGroupComplete(root, kind, stationID string) error {
	return WriteBytes(filepath.Join(GroupDir(root, kind, stationID), completeMarkerName), nil)
}

func IsGroupComplete(root, kind, stationID string) bool {
	info, err := os.Stat(filepath.Join(GroupDir(root, kind, stationID), completeMarkerName))
	return err == nil && info.Mode().IsRegular()
}

func ClearGroupComplete(root, kind, stationID string) error {
	err := os.Remove(filepath.Join(GroupDir(root, kind, stationID), completeMarkerName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear completion marker for %s: %w", stationID, err)
	}
	return nil
}

// WalkKind lists every cache entry beneath one scrape kind, sorted for
// deterministic processing order.
func WalkKind(root, kind string) ([]string, error) {
	base := filepath.Join(root, kind)
	paths := []string{}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".json.gz") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("walk cache subtree %s: %w", base, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ListStationDirs lists the station directories beneath one scrape kind.
func ListStationDirs(root, kind string) ([]string, error) {
	base := filepath.Join(root, kind)
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read cache subtree %s: %w", base, err)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".wuos-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("write file %s: %w", path, err)
	}
	return nil
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteBytes(path, data)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}
