package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// observationRow is one observation flattened to column -> value. Nested
// objects use dotted column names, matching the upstream response structure
// (e.g. "metric.tempAvg").
type observationRow map[string]string

func parseObservationEntry(path string, data []byte) ([]observationRow, error) {
	var payload struct {
		Observations *[]map[string]any `json:"observations"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if payload.Observations == nil {
		return nil, fmt.Errorf("parse %s: no observations list", path)
	}

	rows := make([]observationRow, 0, len(*payload.Observations))
	for _, obs := range *payload.Observations {
		row := make(observationRow, len(obs))
		flattenInto("", obs, row)
		rows = append(rows, row)
	}
	return rows, nil
}

func flattenInto(prefix string, obj map[string]any, row observationRow) {
	for key, value := range obj {
		column := key
		if prefix != "" {
			column = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenInto(column, nested, row)
			continue
		}
		row[column] = formatScalar(value)
	}
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(data)
	}
}

// observationsCSV renders the rows as a single CSV document. Columns are the
// sorted union of every row's keys, so files with differing shapes line up.
func observationsCSV(rows []observationRow) ([]byte, error) {
	if len(rows) == 0 {
		return []byte{}, nil
	}

	columnSet := make(map[string]bool)
	for _, row := range rows {
		for column := range row {
			columnSet[column] = true
		}
	}
	columns := make([]string, 0, len(columnSet))
	for column := range columnSet {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, column := range columns {
			record[i] = row[column]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write CSV: %w", err)
	}
	return buf.Bytes(), nil
}
