package forecasts

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ExportFileName names a download as weather_forecast_<location>_<YYYYMMDD>.<ext>.
// Path separators in location are replaced so the result is a single file name.
func ExportFileName(location string, at time.Time, ext string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(location))
	return fmt.Sprintf("weather_forecast_%s_%s.%s", safe, at.Format("20060102"), ext)
}

// ExportCSV renders the table as UTF-8 CSV with a header row and every column
// in table order. An empty table yields "".
func (p *Processor) ExportCSV(t *Table) string {
	if t.Empty() {
		return ""
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	columns := t.Columns()
	if err := w.Write(columns); err != nil {
		p.logger.Error("csv export failed", "error", err)
		return ""
	}

	record := make([]string, len(columns))
	for i := range t.rows {
		for j, c := range columns {
			record[j] = cell(columnSpecs[c], &t.rows[i])
		}
		if err := w.Write(record); err != nil {
			p.logger.Error("csv export failed", "row", i, "error", err)
			return ""
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		p.logger.Error("csv export failed", "error", err)
		return ""
	}
	return buf.String()
}

// ExportJSON renders the table as a JSON array of per-row objects, keys in
// column order, indented by two spaces. Timestamps are formatted as
// YYYY-MM-DD HH:MM:SS. An empty table yields "".
func (p *Processor) ExportJSON(t *Table) string {
	if t.Empty() {
		return ""
	}

	columns := t.Columns()
	records := make([]orderedRecord, len(t.rows))
	for i := range t.rows {
		rec := orderedRecord{keys: columns, values: make([]any, len(columns))}
		for j, c := range columns {
			rec.values[j] = value(columnSpecs[c], &t.rows[i])
		}
		records[i] = rec
	}

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		p.logger.Error("json export failed", "error", err)
		return ""
	}
	return string(out)
}

// orderedRecord marshals as a JSON object whose keys keep their slice order.
type orderedRecord struct {
	keys   []string
	values []any
}

func (r orderedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
