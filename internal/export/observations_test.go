package export

import (
	"strings"
	"testing"
)

func TestParseObservationEntryFlattensNestedObjects(t *testing.T) {
	body := `{"observations":[{"stationID":"KMATEST1","metric":{"tempHigh":21.5,"precipTotal":0},"winddirAvg":266}]}`
	rows, err := parseObservationEntry("entry.json.gz", []byte(body))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, expected 1", len(rows))
	}
	row := rows[0]
	expected := map[string]string{
		"stationID":          "KMATEST1",
		"metric.tempHigh":    "21.5",
		"metric.precipTotal": "0",
		"winddirAvg":         "266",
	}
	for column, want := range expected {
		if row[column] != want {
			t.Fatalf("got %q for column %s, expected %q", row[column], column, want)
		}
	}
	if len(row) != len(expected) {
		t.Fatalf("got %d columns, expected %d", len(row), len(expected))
	}
}

func TestParseObservationEntryEmptyListYieldsNoRows(t *testing.T) {
	rows, err := parseObservationEntry("entry.json.gz", []byte(`{"observations":[]}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows, expected 0", len(rows))
	}
}

func TestParseObservationEntryRejectsMissingList(t *testing.T) {
	if _, err := parseObservationEntry("entry.json.gz", []byte(`{"metadata":{}}`)); err == nil {
		t.Fatalf("parse succeeded on a payload without an observations list")
	}
	if _, err := parseObservationEntry("entry.json.gz", []byte(`not json`)); err == nil {
		t.Fatalf("parse succeeded on malformed JSON")
	}
}

func TestFormatScalar(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"calm", "calm"},
		{float64(7), "7"},
		{float64(12.5), "12.5"},
		{float64(-0.004), "-0.004"},
		{true, "true"},
		{[]any{"a", float64(1)}, `["a",1]`},
	}
	for _, tc := range cases {
		if got := formatScalar(tc.in); got != tc.want {
			t.Fatalf("got %q for %v, expected %q", got, tc.in, tc.want)
		}
	}
}

func TestObservationsCSVUnionsColumnsAcrossRows(t *testing.T) {
	rows := []observationRow{
		{"stationID": "KMAONE1", "metric.tempAvg": "4"},
		{"stationID": "KMATWO2", "humidityAvg": "81"},
	}
	data, err := observationsCSV(rows)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, expected header plus 2 rows", len(lines))
	}
	if lines[0] != "humidityAvg,metric.tempAvg,stationID" {
		t.Fatalf("got header %q, expected the sorted union of columns", lines[0])
	}
	if lines[1] != ",4,KMAONE1" {
		t.Fatalf("got row %q, expected the missing column left empty", lines[1])
	}
	if lines[2] != "81,,KMATWO2" {
		t.Fatalf("got row %q, expected the missing column left empty", lines[2])
	}
}

func TestObservationsCSVEmptyRowsYieldsEmptyDocument(t *testing.T) {
	data, err := observationsCSV(nil)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("got %d bytes, expected an empty document", len(data))
	}
}
