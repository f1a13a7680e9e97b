package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wu-obs-scraper/internal/cachestore"
	"wu-obs-scraper/internal/discovery"
)

// nwsStationIndexURL is the National Weather Service station index. It is a
// separate public dataset; the IDs overlap with what the tile endpoint
// reports for airport stations.
const nwsStationIndexURL = "https://w1.weather.gov/xml/current_obs/index.xml"

type nwsStationIndex struct {
	Stations []nwsStation `xml:"station"`
}

// nwsStation keeps coordinates as the raw text from the feed. The CSV is a
// passthrough; parsing floats would only reformat values we do not compute
// with.
type nwsStation struct {
	ID        string `xml:"station_id"`
	State     string `xml:"state"`
	Name      string `xml:"station_name"`
	Latitude  string `xml:"latitude"`
	Longitude string `xml:"longitude"`
}

func runStations(args []string) error {
	fs := flag.NewFlagSet("stations", flag.ContinueOnError)
	var output string
	fs.StringVar(&output, "output-file", "stations.csv", "destination CSV path")
	fs.StringVar(&output, "o", "stations.csv", "shorthand for --output-file")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	stations, err := fetchNWSStationIndex()
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(map[string]any{
			"source":   nwsStationIndexURL,
			"stations": stations,
		})
	}

	outPath := strings.TrimSpace(output)
	if err := cachestore.WriteBytes(outPath, formatNWSStationCSV(stations)); err != nil {
		return err
	}
	fmt.Printf("wrote %d station(s) to %s\n", len(stations), outPath)
	return nil
}

func fetchNWSStationIndex() ([]nwsStation, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequest(http.MethodGet, nwsStationIndexURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "wu-obs-scraper-station-index")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch station index: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch station index: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseNWSStationIndex(data)
}

func parseNWSStationIndex(data []byte) ([]nwsStation, error) {
	var index nwsStationIndex
	if err := xml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse station index: %w", err)
	}
	return index.Stations, nil
}

func formatNWSStationCSV(stations []nwsStation) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ID", "STATE", "NAME", "LONGITUDE", "LATITUDE"})
	for _, s := range stations {
		_ = w.Write([]string{
			strings.TrimSpace(s.ID),
			strings.TrimSpace(s.State),
			strings.TrimSpace(s.Name),
			strings.TrimSpace(s.Longitude),
			strings.TrimSpace(s.Latitude),
		})
	}
	w.Flush()
	return buf.Bytes()
}

func runDiscover(args []string) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	var (
		dir    string
		output string
	)
	fs.StringVar(&dir, "scrape-directory", "", "cache root (default: settings scrape_dir)")
	fs.StringVar(&dir, "d", "", "shorthand for --scrape-directory")
	fs.StringVar(&output, "output-file", "", "write the station index as CSV to this path")
	fs.StringVar(&output, "o", "", "shorthand for --output-file")
	config := fs.String("config", "", "registry path (default: "+discovery.ConfigPathEnv+" or the user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	global, err := discovery.ReadGlobalSettings(strings.TrimSpace(*config))
	if err != nil {
		return err
	}
	res, err := discovery.BuildStationIndex(discovery.StationIndexOptions{
		ScrapeDir: firstNonEmpty(dir, global.ScrapeDir),
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(res)
	}

	if strings.TrimSpace(output) != "" {
		outPath := strings.TrimSpace(output)
		if err := cachestore.WriteBytes(outPath, formatStationIndexCSV(res.Stations)); err != nil {
			return err
		}
		fmt.Printf("wrote %d station(s) to %s\n", len(res.Stations), outPath)
		return nil
	}

	fmt.Printf("scrape_dir: %s\n", res.ScrapeDir)
	fmt.Printf("tiles: %d (skipped %d)\n", res.Tiles, res.SkippedTiles)
	for _, s := range res.Stations {
		name := s.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("- %s %s (%.4f, %.4f)\n", s.ID, name, s.Latitude, s.Longitude)
	}
	fmt.Printf("stations: %d\n", len(res.Stations))
	return nil
}

func formatStationIndexCSV(stations []discovery.StationRecord) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ID", "NAME", "LATITUDE", "LONGITUDE", "SEEN_IN_TILES"})
	for _, s := range stations {
		_ = w.Write([]string{
			s.ID,
			s.Name,
			strconv.FormatFloat(s.Latitude, 'f', -1, 64),
			strconv.FormatFloat(s.Longitude, 'f', -1, 64),
			strconv.Itoa(s.SeenInTiles),
		})
	}
	w.Flush()
	return buf.Bytes()
}
