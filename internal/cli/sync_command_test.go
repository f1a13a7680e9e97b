package cli

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wu-obs-scraper/internal/discovery"
)

func TestRunSyncRequiresSelection(t *testing.T) {
	err := runSync([]string{"--api-key", "test-key"})
	if err == nil {
		t.Fatal("expected sync to require a station set selection")
	}
	if !strings.Contains(err.Error(), "sync requires --project or --all-projects") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunSyncActiveOnlyRequiresSelection(t *testing.T) {
	err := runSync([]string{"--active-only"})
	if err == nil {
		t.Fatal("expected active-only without a selection to be rejected")
	}
	if !strings.Contains(err.Error(), "--active-only requires") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunSyncEveryRejectsJSON(t *testing.T) {
	err := runSync([]string{"--all-projects", "--every", "5", "--json"})
	if err == nil {
		t.Fatal("expected --every with --json to be rejected")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSyncActiveOnlySkipsInactiveSets(t *testing.T) {
	hits := setupScrapeTestEnv(t)
	tmp := t.TempDir()
	cfg := filepath.Join(tmp, "registry.json")

	_, err := discovery.AddProject(discovery.AddProjectOptions{
		ConfigPath: cfg,
		Name:       "active-one",
		Stations:   []string{"KMABOSTO42"},
		StartDate:  "2023-01-01",
		EndDate:    "2023-01-31",
		Active:     boolPtr(true),
	})
	if err != nil {
		t.Fatalf("add active set failed: %v", err)
	}
	_, err = discovery.AddProject(discovery.AddProjectOptions{
		ConfigPath: cfg,
		Name:       "inactive-one",
		Stations:   []string{"KMACAMBR7"},
		StartDate:  "2023-01-01",
		EndDate:    "2023-01-31",
		Active:     boolPtr(false),
	})
	if err != nil {
		t.Fatalf("add inactive set failed: %v", err)
	}

	if err := runSync([]string{
		"--all-projects",
		"--active-only",
		"--api-key", "test-key",
		"--scrape-directory", filepath.Join(tmp, "output"),
		"--config", cfg,
	}); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	// Only the active set's single station-month should have been fetched.
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected 1 upstream fetch for the active set, got %d", got)
	}
}

func TestRunSyncJSONRemainsMachineReadable(t *testing.T) {
	_ = setupScrapeTestEnv(t)
	tmp := t.TempDir()
	cfg := filepath.Join(tmp, "registry.json")

	_, err := discovery.AddProject(discovery.AddProjectOptions{
		ConfigPath: cfg,
		Name:       "boston",
		Stations:   []string{"KMABOSTO42"},
		StartDate:  "2023-01-01",
		EndDate:    "2023-01-31",
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	output := captureStdout(t, func() {
		err := runSync([]string{
			"--project", "boston",
			"--api-key", "test-key",
			"--scrape-directory", filepath.Join(tmp, "output"),
			"--config", cfg,
			"--json",
		})
		if err != nil {
			t.Fatalf("runSync failed: %v", err)
		}
	})

	if strings.Contains(output, "sync run ") {
		t.Fatalf("expected no human status lines in JSON mode, got:\n%s", output)
	}
	if strings.Contains(output, "[1/1] scraping") {
		t.Fatalf("expected no per-set status lines in JSON mode, got:\n%s", output)
	}
	var parsed struct {
		RunID   string `json:"run_id"`
		Sets    int    `json:"station_sets"`
		Fetched int    `json:"fetched"`
		Reports []struct {
			Project string `json:"project"`
		} `json:"reports"`
	}
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v\noutput:\n%s", err, output)
	}
	if parsed.RunID == "" {
		t.Fatal("expected a run_id in JSON output")
	}
	if parsed.Sets != 1 || parsed.Fetched != 1 {
		t.Fatalf("unexpected totals: sets=%d fetched=%d", parsed.Sets, parsed.Fetched)
	}
	if len(parsed.Reports) != 1 || parsed.Reports[0].Project != "boston" {
		t.Fatalf("unexpected reports: %+v", parsed.Reports)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
	}()
	defer r.Close()

	fn()

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
