package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"wu-obs-scraper/internal/cachestore"
	"wu-obs-scraper/internal/model"
	"wu-obs-scraper/internal/scrape"
	"wu-obs-scraper/internal/wuapi"
)

const (
	ConfigPathEnv         = "WUOS_CONFIG"
	registrySchemaVersion = 2
	projectDateLayout     = "2006-01-02"
)

var (
	ErrNoProjectsConfigured  = errors.New("no station sets configured")
	ErrProjectSelectRequired = errors.New("station set selection required")
)

// Project is a named station set with per-set scrape defaults. Empty fields
// inherit from the global settings at run time.
type Project struct {
	Name      string   `json:"name"`
	Stations  []string `json:"stations"`
	Active    *bool    `json:"active,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Units     string   `json:"units,omitempty"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
	Zooms     []int    `json:"zooms,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

type ProjectRegistry struct {
	SchemaVersion int            `json:"schema_version"`
	UpdatedAt     string         `json:"updated_at"`
	Global        GlobalSettings `json:"global,omitempty"`
	Projects      []Project      `json:"projects"`
}

type AddProjectOptions struct {
	ConfigPath          string
	Name                string
	Stations            []string
	Kind                string
	Units               string
	StartDate           string
	EndDate             string
	Zooms               []int
	Notes               string
	Active              *bool
	ReplaceIfNameExists bool
}

type AddProjectResult struct {
	Project Project
	Created bool
}

type RemoveProjectOptions struct {
	ConfigPath string
	Name       string
}

type RemoveProjectResult struct {
	Project Project
	Removed bool
}

type ListProjectsOptions struct {
	ConfigPath string
}

type ListProjectsResult struct {
	ConfigPath string
	Projects   []Project
}

// DefaultConfigPath is where the registry lives unless WUOS_CONFIG or an
// explicit --config points elsewhere.
func DefaultConfigPath() string {
	if env := strings.TrimSpace(os.Getenv(ConfigPathEnv)); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return filepath.Join("config", "registry.json")
	}
	return filepath.Join(home, ".config", "wu-obs-scraper", "registry.json")
}

func normalizeConfigPath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return DefaultConfigPath()
	}
	return p
}

func EnsureProjectRegistry(configPath string) (ProjectRegistry, bool, error) {
	path := normalizeConfigPath(configPath)
	reg, err := loadProjectRegistry(path)
	if err == nil {
		return reg, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return ProjectRegistry{}, false, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	reg = ProjectRegistry{
		SchemaVersion: registrySchemaVersion,
		UpdatedAt:     now,
		Global:        defaultGlobalSettings(),
		Projects:      []Project{},
	}
	if err := saveProjectRegistry(path, reg); err != nil {
		return ProjectRegistry{}, false, err
	}
	return reg, true, nil
}

func AddProject(opts AddProjectOptions) (AddProjectResult, error) {
	configPath := normalizeConfigPath(opts.ConfigPath)
	reg, _, err := EnsureProjectRegistry(configPath)
	if err != nil {
		return AddProjectResult{}, err
	}

	kind, err := parseProjectKind(opts.Kind)
	if err != nil {
		return AddProjectResult{}, err
	}
	stations := scrape.NormalizeStations(opts.Stations)
	if kind != model.KindFeatures && len(stations) == 0 {
		return AddProjectResult{}, fmt.Errorf("at least one station is required for a %s station set", kind)
	}

	units := strings.TrimSpace(opts.Units)
	if units != "" {
		if units, err = wuapi.NormalizeUnits(units); err != nil {
			return AddProjectResult{}, err
		}
	}
	startDate, err := parseProjectDateField(opts.StartDate)
	if err != nil {
		return AddProjectResult{}, err
	}
	endDate, err := parseProjectDateField(opts.EndDate)
	if err != nil {
		return AddProjectResult{}, err
	}
	if startDate != "" && endDate != "" && endDate < startDate {
		return AddProjectResult{}, fmt.Errorf("end date %s is before start date %s", endDate, startDate)
	}
	var zooms []int
	if len(opts.Zooms) > 0 {
		if zooms, err = scrape.NormalizeZooms(opts.Zooms); err != nil {
			return AddProjectResult{}, err
		}
	}

	if len(stations) > 0 {
		key := stationsKey(stations)
		for _, p := range reg.Projects {
			if p.Kind == kind && stationsKey(p.Stations) == key && !equalsFoldAndTrim(p.Name, opts.Name) {
				return AddProjectResult{}, fmt.Errorf("stations already tracked by station set %q", p.Name)
			}
		}
	}

	explicitName := canonicalProjectName(opts.Name)
	name := explicitName
	if name == "" {
		name = suggestProjectName(kind, stations)
	}
	if explicitName == "" {
		name = ensureUniqueProjectName(name, reg.Projects, opts.ReplaceIfNameExists)
	}
	if name == "" {
		return AddProjectResult{}, fmt.Errorf("station set name is required")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	project := Project{
		Name:      name,
		Stations:  stations,
		Active:    opts.Active,
		Kind:      kind,
		Units:     units,
		StartDate: startDate,
		EndDate:   endDate,
		Zooms:     zooms,
		Notes:     strings.TrimSpace(opts.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if project.Active == nil {
		project.Active = boolPtr(true)
	}

	created := true
	replaced := false
	for i := range reg.Projects {
		if strings.EqualFold(reg.Projects[i].Name, name) {
			if !opts.ReplaceIfNameExists {
				return AddProjectResult{}, fmt.Errorf("station set %q already exists (use --replace)", name)
			}
			if strings.TrimSpace(reg.Projects[i].CreatedAt) != "" {
				project.CreatedAt = reg.Projects[i].CreatedAt
			}
			reg.Projects[i] = project
			created = false
			replaced = true
			break
		}
	}
	if !replaced {
		reg.Projects = append(reg.Projects, project)
	}

	sort.Slice(reg.Projects, func(i, j int) bool {
		return reg.Projects[i].Name < reg.Projects[j].Name
	})
	reg.UpdatedAt = now
	if err := saveProjectRegistry(configPath, reg); err != nil {
		return AddProjectResult{}, err
	}

	return AddProjectResult{
		Project: project,
		Created: created,
	}, nil
}

func RemoveProject(opts RemoveProjectOptions) (RemoveProjectResult, error) {
	configPath := normalizeConfigPath(opts.ConfigPath)
	reg, _, err := EnsureProjectRegistry(configPath)
	if err != nil {
		return RemoveProjectResult{}, err
	}

	name := canonicalProjectName(opts.Name)
	if name == "" {
		return RemoveProjectResult{}, fmt.Errorf("station set name is required")
	}

	for i := range reg.Projects {
		if strings.EqualFold(reg.Projects[i].Name, name) {
			removed := reg.Projects[i]
			reg.Projects = append(reg.Projects[:i], reg.Projects[i+1:]...)
			reg.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
			if err := saveProjectRegistry(configPath, reg); err != nil {
				return RemoveProjectResult{}, err
			}
			return RemoveProjectResult{Project: removed, Removed: true}, nil
		}
	}

	return RemoveProjectResult{}, fmt.Errorf("station set %q not found", name)
}

func ListProjects(opts ListProjectsOptions) (ListProjectsResult, error) {
	configPath := normalizeConfigPath(opts.ConfigPath)
	reg, _, err := EnsureProjectRegistry(configPath)
	if err != nil {
		return ListProjectsResult{}, err
	}

	projects := append([]Project(nil), reg.Projects...)
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Name < projects[j].Name
	})

	return ListProjectsResult{
		ConfigPath: configPath,
		Projects:   projects,
	}, nil
}

func LoadProjects(configPath string) (ProjectRegistry, error) {
	reg, _, err := EnsureProjectRegistry(configPath)
	if err != nil {
		return ProjectRegistry{}, err
	}
	return reg, nil
}

func FindProjectByName(configPath, name string) (Project, error) {
	reg, _, err := EnsureProjectRegistry(configPath)
	if err != nil {
		return Project{}, err
	}
	target := canonicalProjectName(name)
	if target == "" {
		return Project{}, fmt.Errorf("station set name is required")
	}

	for _, p := range reg.Projects {
		if strings.EqualFold(p.Name, target) {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("station set %q not found", target)
}

func ResolveProjectSelection(configPath string, projectName string, all bool) ([]Project, error) {
	return ResolveProjectSelectionFiltered(configPath, projectName, all, false)
}

func ResolveProjectSelectionFiltered(configPath string, projectName string, all bool, activeOnly bool) ([]Project, error) {
	reg, _, err := EnsureProjectRegistry(configPath)
	if err != nil {
		return nil, err
	}
	if len(reg.Projects) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoProjectsConfigured, normalizeConfigPath(configPath))
	}

	if all {
		projects := make([]Project, 0, len(reg.Projects))
		for _, p := range reg.Projects {
			if activeOnly && !isProjectActive(p) {
				continue
			}
			projects = append(projects, p)
		}
		if len(projects) == 0 {
			if activeOnly {
				return nil, fmt.Errorf("no active station sets selected")
			}
			return nil, fmt.Errorf("no station sets selected")
		}
		sort.Slice(projects, func(i, j int) bool {
			return projects[i].Name < projects[j].Name
		})
		return projects, nil
	}

	names := splitAndClean(projectName)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w (--project <name> or --all-projects)", ErrProjectSelectRequired)
	}

	index := make(map[string]Project, len(reg.Projects))
	for _, p := range reg.Projects {
		index[strings.ToLower(strings.TrimSpace(p.Name))] = p
	}
	selected := make([]Project, 0, len(names))
	seen := make(map[string]bool)
	for _, n := range names {
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		p, ok := index[key]
		if !ok {
			return nil, fmt.Errorf("station set %q not found", n)
		}
		if activeOnly && !isProjectActive(p) {
			continue
		}
		selected = append(selected, p)
		seen[key] = true
	}
	if len(selected) == 0 {
		if activeOnly {
			return nil, fmt.Errorf("no active station sets selected")
		}
		return nil, fmt.Errorf("no station sets selected")
	}
	return selected, nil
}

func loadProjectRegistry(path string) (ProjectRegistry, error) {
	var reg ProjectRegistry
	if err := cachestore.ReadJSON(path, &reg); err != nil {
		return ProjectRegistry{}, err
	}
	if reg.SchemaVersion == 0 {
		reg.SchemaVersion = registrySchemaVersion
	}
	reg.Global = normalizeGlobalSettings(reg.Global)
	if reg.Projects == nil {
		reg.Projects = []Project{}
	}
	normalized := make([]Project, 0, len(reg.Projects))
	for _, p := range reg.Projects {
		p.Name = canonicalProjectName(p.Name)
		p.Stations = scrape.NormalizeStations(p.Stations)
		if kind, err := parseProjectKind(p.Kind); err == nil {
			p.Kind = kind
		} else {
			p.Kind = model.KindDaily
		}
		if units, err := wuapi.NormalizeUnits(p.Units); err == nil && strings.TrimSpace(p.Units) != "" {
			p.Units = units
		} else {
			p.Units = ""
		}
		if date, err := parseProjectDateField(p.StartDate); err == nil {
			p.StartDate = date
		} else {
			p.StartDate = ""
		}
		if date, err := parseProjectDateField(p.EndDate); err == nil {
			p.EndDate = date
		} else {
			p.EndDate = ""
		}
		if zooms, err := scrape.NormalizeZooms(p.Zooms); err == nil {
			p.Zooms = zooms
		} else {
			p.Zooms = nil
		}
		p.Notes = strings.TrimSpace(p.Notes)
		if p.Active == nil {
			p.Active = boolPtr(true)
		}
		if p.Name == "" {
			continue
		}
		if p.Kind != model.KindFeatures && len(p.Stations) == 0 {
			continue
		}
		normalized = append(normalized, p)
	}
	reg.Projects = normalized
	return reg, nil
}

func isProjectActive(p Project) bool {
	if p.Active == nil {
		return true
	}
	return *p.Active
}

func boolPtr(v bool) *bool {
	b := v
	return &b
}

func saveProjectRegistry(path string, reg ProjectRegistry) error {
	reg.SchemaVersion = registrySchemaVersion
	if strings.TrimSpace(reg.UpdatedAt) == "" {
		reg.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	reg.Global = normalizeGlobalSettings(reg.Global)
	if reg.Projects == nil {
		reg.Projects = []Project{}
	}
	if err := cachestore.Mkdir(filepath.Dir(path)); err != nil {
		return err
	}
	return cachestore.WriteJSON(path, reg)
}

func splitAndClean(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := canonicalProjectName(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseProjectKind(raw string) (string, error) {
	kind := strings.ToLower(strings.TrimSpace(raw))
	if kind == "" {
		return model.KindDaily, nil
	}
	if !model.IsKnownKind(kind) {
		return "", fmt.Errorf("invalid scrape kind %q (expected daily, historical, or features)", strings.TrimSpace(raw))
	}
	return kind, nil
}

func parseProjectDateField(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	t, err := time.Parse(projectDateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return t.Format(projectDateLayout), nil
}

func stationsKey(stations []string) string {
	norm := scrape.NormalizeStations(stations)
	upper := make([]string, len(norm))
	for i, s := range norm {
		upper[i] = strings.ToUpper(s)
	}
	sort.Strings(upper)
	return strings.Join(upper, ",")
}

func suggestProjectName(kind string, stations []string) string {
	if len(stations) > 0 {
		if name := canonicalProjectName(stations[0]); name != "" {
			return name
		}
	}
	return kind
}

func canonicalProjectName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}
	var b strings.Builder
	prevDash := false
	for _, r := range s {
		isAlphaNum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlphaNum {
			b.WriteRune(r)
			prevDash = false
			continue
		}
		if !prevDash {
			b.WriteRune('-')
			prevDash = true
		}
	}
	clean := strings.Trim(b.String(), "-")
	if clean == "" {
		return ""
	}
	return clean
}

func ensureUniqueProjectName(base string, existing []Project, allowExisting bool) string {
	name := canonicalProjectName(base)
	if name == "" {
		return ""
	}
	if allowExisting {
		return name
	}
	set := make(map[string]bool, len(existing))
	for _, p := range existing {
		set[strings.ToLower(strings.TrimSpace(p.Name))] = true
	}
	if !set[name] {
		return name
	}
	for i := 2; i < 10000; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if !set[candidate] {
			return candidate
		}
	}
	return ""
}

func equalsFoldAndTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
