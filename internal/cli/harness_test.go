package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"wu-obs-scraper/internal/wuapi"
)

// setupScrapeTestEnv points the fetch client at a local stand-in for the
// weather.com API and silences the release-check hint. The returned counter
// tracks upstream hits so tests can assert cache behavior.
func setupScrapeTestEnv(t *testing.T) *atomic.Int64 {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/v2/pws/history/daily"):
			fmt.Fprintf(w, `{"observations":[{"stationID":%q,"obsTimeUtc":"2023-01-15T12:00:00Z","metric":{"tempAvg":4}}]}`,
				r.URL.Query().Get("stationId"))
		case strings.HasPrefix(r.URL.Path, "/v1/location/"):
			fmt.Fprint(w, `{"observations":[{"valid_time_gmt":1673784000,"temp":39}]}`)
		case strings.HasPrefix(r.URL.Path, "/v2/vector-api/"):
			fmt.Fprint(w, `{"type":"FeatureCollection","features":[]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	t.Setenv(wuapi.BaseURLEnv, srv.URL)
	t.Setenv(updateCheckDisableEnv, "1")
	return &hits
}

func TestHarnessDailyScrapeIdempotent(t *testing.T) {
	hits := setupScrapeTestEnv(t)
	tmp := t.TempDir()
	scrapeDir := filepath.Join(tmp, "output")

	args := []string{
		"daily", "KMABOSTO42",
		"--api-key", "test-key",
		"--scrape-directory", scrapeDir,
		"--start-date", "2023-01-01",
		"--end-date", "2023-02-15",
		"--config", filepath.Join(tmp, "registry.json"),
	}
	if err := Run(args); err != nil {
		t.Fatalf("first daily scrape failed: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 upstream fetches for two station-months, got %d", got)
	}

	if err := Run(args); err != nil {
		t.Fatalf("second daily scrape failed: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected the rerun to be served from cache, got %d extra fetches", got-2)
	}
}

func TestHarnessFeaturesScrapeJSONReport(t *testing.T) {
	hits := setupScrapeTestEnv(t)
	tmp := t.TempDir()
	scrapeDir := filepath.Join(tmp, "output")

	output := captureStdout(t, func() {
		err := Run([]string{
			"features", "0", "1",
			"--api-key", "test-key",
			"--scrape-directory", scrapeDir,
			"--config", filepath.Join(tmp, "registry.json"),
			"--json",
		})
		if err != nil {
			t.Fatalf("features scrape failed: %v", err)
		}
	})

	var report struct {
		Kind    string `json:"kind"`
		Total   int    `json:"total"`
		Fetched int    `json:"fetched"`
		Skipped int    `json:"skipped"`
		Failed  int    `json:"failed"`
	}
	if err := json.Unmarshal([]byte(output), &report); err != nil {
		t.Fatalf("expected valid JSON report, got error: %v\noutput:\n%s", err, output)
	}
	if report.Kind != "features" {
		t.Fatalf("expected kind features, got %q", report.Kind)
	}
	// Zoom 0 is one tile, zoom 1 is a 2x2 grid.
	if report.Total != 5 || report.Fetched != 5 {
		t.Fatalf("unexpected report totals: total=%d fetched=%d", report.Total, report.Fetched)
	}
	if hits.Load() != 5 {
		t.Fatalf("expected 5 tile fetches, got %d", hits.Load())
	}
}

func TestHarnessScrapeFailuresAreReportedNotFatal(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// A well-formed response with no observations is terminal for the
		// unit but must not abort the run.
		fmt.Fprint(w, `{"observations":[]}`)
	}))
	t.Cleanup(srv.Close)
	t.Setenv(wuapi.BaseURLEnv, srv.URL)
	t.Setenv(updateCheckDisableEnv, "1")

	tmp := t.TempDir()
	output := captureStdout(t, func() {
		err := Run([]string{
			"daily", "KMABOSTO42",
			"--api-key", "test-key",
			"--scrape-directory", filepath.Join(tmp, "output"),
			"--start-date", "2023-01-01",
			"--end-date", "2023-01-31",
			"--config", filepath.Join(tmp, "registry.json"),
			"--json",
		})
		if err != nil {
			t.Fatalf("scrape should report unit failures without failing: %v", err)
		}
	})

	var report struct {
		Fetched  int `json:"fetched"`
		Failed   int `json:"failed"`
		Failures []struct {
			UnitID string `json:"unit_id"`
			Reason string `json:"reason"`
		} `json:"failures"`
	}
	if err := json.Unmarshal([]byte(output), &report); err != nil {
		t.Fatalf("expected valid JSON report, got error: %v\noutput:\n%s", err, output)
	}
	if report.Fetched != 0 || report.Failed != 1 {
		t.Fatalf("unexpected report totals: fetched=%d failed=%d", report.Fetched, report.Failed)
	}
	if len(report.Failures) != 1 || !strings.Contains(report.Failures[0].Reason, "no observations") {
		t.Fatalf("expected a no-observations failure entry, got %+v", report.Failures)
	}
}
