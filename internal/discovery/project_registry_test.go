package discovery

import (
	"path/filepath"
	"testing"

	"wu-obs-scraper/internal/model"
)

func TestAddProjectNormalizesAndDefaults(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "registry.json")

	res, err := AddProject(AddProjectOptions{
		ConfigPath: cfg,
		Name:       "Boston PWS",
		Stations:   []string{" KMABOSTO42 ", "KMACAMBR7", "KMABOSTO42", ""},
	})
	if err != nil {
		t.Fatalf("add station set failed: %v", err)
	}
	if !res.Created {
		t.Fatalf("expected a new station set")
	}

	reg, err := LoadProjects(cfg)
	if err != nil {
		t.Fatalf("load station sets failed: %v", err)
	}
	if len(reg.Projects) != 1 {
		t.Fatalf("expected 1 station set, got %d", len(reg.Projects))
	}
	p := reg.Projects[0]
	if p.Name != "boston-pws" {
		t.Fatalf("name mismatch: got %q want %q", p.Name, "boston-pws")
	}
	if len(p.Stations) != 2 || p.Stations[0] != "KMABOSTO42" || p.Stations[1] != "KMACAMBR7" {
		t.Fatalf("stations mismatch: got %v, expected sorted deduplicated IDs", p.Stations)
	}
	if p.Kind != model.KindDaily {
		t.Fatalf("kind default mismatch: got %q want %q", p.Kind, model.KindDaily)
	}
	if !isProjectActive(p) {
		t.Fatalf("active default mismatch: got inactive, want active")
	}
	if p.CreatedAt == "" || p.UpdatedAt == "" {
		t.Fatalf("expected timestamps, got created=%q updated=%q", p.CreatedAt, p.UpdatedAt)
	}
}

func TestAddProjectRejectsDuplicateStationSet(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "registry.json")

	if _, err := AddProject(AddProjectOptions{
		ConfigPath: cfg,
		Name:       "one",
		Stations:   []string{"KMAB1", "KMAA1"},
	}); err != nil {
		t.Fatalf("add first set failed: %v", err)
	}

	_, err := AddProject(AddProjectOptions{
		ConfigPath: cfg,
		Name:       "two",
		Stations:   []string{"KMAA1", "KMAB1"},
	})
	if err == nil {
		t.Fatal("expected error for a second set tracking the same stations")
	}
}

func TestAddProjectValidatesInput(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "registry.json")

	if _, err := AddProject(AddProjectOptions{ConfigPath: cfg, Name: "x"}); err == nil {
		t.Fatal("expected error for a daily set without stations")
	}
	if _, err := AddProject(AddProjectOptions{
		ConfigPath: cfg, Name: "x", Stations: []string{"KMAA1"}, Kind: "weekly",
	}); err == nil {
		t.Fatal("expected error for an unknown kind")
	}
	if _, err := AddProject(AddProjectOptions{
		ConfigPath: cfg, Name: "x", Stations: []string{"KMAA1"}, StartDate: "01/02/2023",
	}); err == nil {
		t.Fatal("expected error for a malformed start date")
	}
	if _, err := AddProject(AddProjectOptions{
		ConfigPath: cfg, Name: "x", Stations: []string{"KMAA1"},
		StartDate: "2023-05-01", EndDate: "2023-01-01",
	}); err == nil {
		t.Fatal("expected error for end before start")
	}
}

func TestAddProjectReplaceKeepsCreatedAt(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "registry.json")

	first, err := AddProject(AddProjectOptions{
		ConfigPath: cfg,
		Name:       "set",
		Stations:   []string{"KMAA1"},
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	second, err := AddProject(AddProjectOptions{
		ConfigPath:          cfg,
		Name:                "set",
		Stations:            []string{"KMAA1", "KMAB2"},
		ReplaceIfNameExists: true,
	})
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if second.Created {
		t.Fatalf("expected a replacement, not a new set")
	}
	if second.Project.CreatedAt != first.Project.CreatedAt {
		t.Fatalf("created_at changed on replace: got %q want %q",
			second.Project.CreatedAt, first.Project.CreatedAt)
	}
	if len(second.Project.Stations) != 2 {
		t.Fatalf("stations not replaced: got %v", second.Project.Stations)
	}
}

func TestFeaturesProjectNeedsNoStations(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "registry.json")

	res, err := AddProject(AddProjectOptions{
		ConfigPath: cfg,
		Kind:       model.KindFeatures,
		Zooms:      []int{4, 2, 4},
	})
	if err != nil {
		t.Fatalf("add features set failed: %v", err)
	}
	if res.Project.Name != "features" {
		t.Fatalf("suggested name mismatch: got %q want %q", res.Project.Name, "features")
	}
	if len(res.Project.Zooms) != 2 || res.Project.Zooms[0] != 2 || res.Project.Zooms[1] != 4 {
		t.Fatalf("zooms mismatch: got %v, expected sorted deduplicated zooms", res.Project.Zooms)
	}
}

func TestResolveProjectSelectionFilteredActiveOnly(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "registry.json")

	if _, err := AddProject(AddProjectOptions{
		ConfigPath: cfg,
		Name:       "active-one",
		Stations:   []string{"KMAA1"},
		Active:     boolPtr(true),
	}); err != nil {
		t.Fatalf("add active set failed: %v", err)
	}
	if _, err := AddProject(AddProjectOptions{
		ConfigPath: cfg,
		Name:       "inactive-one",
		Stations:   []string{"KMAB2"},
		Active:     boolPtr(false),
	}); err != nil {
		t.Fatalf("add inactive set failed: %v", err)
	}

	selected, err := ResolveProjectSelectionFiltered(cfg, "", true, true)
	if err != nil {
		t.Fatalf("resolve active-only selection failed: %v", err)
	}
	if len(selected) != 1 {
		t.Fatalf("expected 1 active station set, got %d", len(selected))
	}
	if selected[0].Name != "active-one" {
		t.Fatalf("expected active-one, got %q", selected[0].Name)
	}
}

func TestRemoveProject(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "registry.json")

	if _, err := AddProject(AddProjectOptions{
		ConfigPath: cfg,
		Name:       "doomed",
		Stations:   []string{"KMAA1"},
	}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	res, err := RemoveProject(RemoveProjectOptions{ConfigPath: cfg, Name: "Doomed"})
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if !res.Removed || res.Project.Name != "doomed" {
		t.Fatalf("remove result mismatch: %+v", res)
	}

	if _, err := RemoveProject(RemoveProjectOptions{ConfigPath: cfg, Name: "doomed"}); err == nil {
		t.Fatal("expected error removing a missing station set")
	}
}
