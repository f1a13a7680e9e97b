package cli

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"wu-obs-scraper/internal/discovery"
	"wu-obs-scraper/internal/model"
)

func TestManageBoolFieldSupportsYN(t *testing.T) {
	m := manageModel{
		mode: manageModeForm,
		form: newManageForm(nil, 80),
	}
	if m.form == nil {
		t.Fatal("expected form")
	}
	m.form.Index = findFieldIndexByKey(m.form, "active")
	if m.form.Index < 0 {
		t.Fatal("active field not found")
	}

	model, _ := m.updateForm(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	m2 := model.(manageModel)
	if got := m2.form.currentField().Value; got != "n" {
		t.Fatalf("expected active value n after 'n', got %q", got)
	}

	model, _ = m2.updateForm(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	m3 := model.(manageModel)
	if got := m3.form.currentField().Value; got != "y" {
		t.Fatalf("expected active value y after 'y', got %q", got)
	}
}

func TestManageBoolFieldSupportsArrowAndSpace(t *testing.T) {
	m := manageModel{
		mode: manageModeForm,
		form: newManageForm(nil, 80),
	}
	if m.form == nil {
		t.Fatal("expected form")
	}
	m.form.Index = findFieldIndexByKey(m.form, "active")
	if m.form.Index < 0 {
		t.Fatal("active field not found")
	}

	model, _ := m.updateForm(tea.KeyMsg{Type: tea.KeyLeft})
	m2 := model.(manageModel)
	if got := m2.form.currentField().Value; got != "n" {
		t.Fatalf("expected active value n after left, got %q", got)
	}

	model, _ = m2.updateForm(tea.KeyMsg{Type: tea.KeyRight})
	m3 := model.(manageModel)
	if got := m3.form.currentField().Value; got != "y" {
		t.Fatalf("expected active value y after right, got %q", got)
	}

	model, _ = m3.updateForm(tea.KeyMsg{Type: tea.KeySpace})
	m4 := model.(manageModel)
	if got := m4.form.currentField().Value; got != "n" {
		t.Fatalf("expected active value n after space, got %q", got)
	}
}

func TestManageKindFieldCyclesOptions(t *testing.T) {
	m := manageModel{
		mode: manageModeForm,
		form: newManageForm(nil, 80),
	}
	m.form.Index = findFieldIndexByKey(m.form, "kind")
	if m.form.Index < 0 {
		t.Fatal("kind field not found")
	}
	if got := m.form.currentField().Value; got != model.KindDaily {
		t.Fatalf("expected kind to default to daily, got %q", got)
	}

	model, _ := m.updateForm(tea.KeyMsg{Type: tea.KeySpace})
	m2 := model.(manageModel)
	if got := m2.form.currentField().Value; got != model.KindHistorical {
		t.Fatalf("expected kind historical after space, got %q", got)
	}

	model, _ = m2.updateForm(tea.KeyMsg{Type: tea.KeyLeft})
	m3 := model.(manageModel)
	if got := m3.form.currentField().Value; got != model.KindDaily {
		t.Fatalf("expected kind daily after left, got %q", got)
	}
}

func TestManageBrowseSyncActiveSetsLaunchingStatus(t *testing.T) {
	m := manageModel{
		mode:   manageModeBrowse,
		cursor: 1, // len(projects)=0 => row 0 is [+] New Station Set, row 1 is first Action.
	}

	model, _ := m.updateBrowse(tea.KeyMsg{Type: tea.KeyEnter})
	m2 := model.(manageModel)
	if !m2.launchSyncActive {
		t.Fatal("expected launchSyncActive=true")
	}
	if m2.statusMessage == "" {
		t.Fatal("expected non-empty status message")
	}
}

func TestManageFormToAddProjectOptions(t *testing.T) {
	f := newManageForm(nil, 80)
	setFormValue(f, "stations", "KMABOSTO42, KMACAMBR7")
	setFormValue(f, "name", "boston")
	setFormValue(f, "start_date", "2023-01-01")

	opts, err := f.toAddProjectOptions("registry.json")
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if opts.Name != "boston" {
		t.Fatalf("expected name boston, got %q", opts.Name)
	}
	if len(opts.Stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(opts.Stations))
	}
	if opts.Kind != model.KindDaily {
		t.Fatalf("expected kind daily, got %q", opts.Kind)
	}
	if opts.Units != "" {
		t.Fatalf("expected inherit units to map to empty, got %q", opts.Units)
	}
	if opts.Active == nil || !*opts.Active {
		t.Fatal("expected active=true")
	}
	if opts.ReplaceIfNameExists {
		t.Fatal("expected new-set conversion not to replace")
	}
}

func TestManageFormRequiresStationsForObservationKinds(t *testing.T) {
	f := newManageForm(nil, 80)
	setFormValue(f, "kind", model.KindHistorical)

	_, err := f.toAddProjectOptions("registry.json")
	if err == nil {
		t.Fatal("expected missing stations to be rejected for historical sets")
	}

	setFormValue(f, "kind", model.KindFeatures)
	setFormValue(f, "zooms", "4, 7")
	opts, err := f.toAddProjectOptions("registry.json")
	if err != nil {
		t.Fatalf("features set without stations should convert: %v", err)
	}
	if len(opts.Zooms) != 2 || opts.Zooms[0] != 4 || opts.Zooms[1] != 7 {
		t.Fatalf("unexpected zooms: %v", opts.Zooms)
	}
}

func TestManageEditFormKeepsNameAndReplaces(t *testing.T) {
	existing := discovery.Project{
		Name:     "boston",
		Stations: []string{"KMABOSTO42"},
		Units:    "m",
	}
	f := newManageForm(&existing, 80)
	if !f.IsEdit {
		t.Fatal("expected edit form")
	}

	opts, err := f.toAddProjectOptions("registry.json")
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if opts.Name != "boston" {
		t.Fatalf("expected edit to keep the set name, got %q", opts.Name)
	}
	if !opts.ReplaceIfNameExists {
		t.Fatal("expected edit conversion to replace")
	}
	if opts.Units != "m" {
		t.Fatalf("expected units m, got %q", opts.Units)
	}
}

func findFieldIndexByKey(f *manageForm, key string) int {
	if f == nil {
		return -1
	}
	for i, field := range f.Fields {
		if field.Key == key {
			return i
		}
	}
	return -1
}

func setFormValue(f *manageForm, key, value string) {
	for i := range f.Fields {
		if f.Fields[i].Key == key {
			f.Fields[i].Value = value
			return
		}
	}
}
