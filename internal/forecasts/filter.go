package forecasts

import "time"

// FilterByTimeRange returns the rows whose timestamp lies within [start, end].
// A zero start or end leaves that side unbounded.
func (p *Processor) FilterByTimeRange(t *Table, start, end time.Time) *Table {
	if t == nil {
		return EmptyTable()
	}

	rows := make([]ForecastRow, 0, len(t.rows))
	for _, r := range t.rows {
		if !start.IsZero() && r.Time.Before(start) {
			continue
		}
		if !end.IsZero() && r.Time.After(end) {
			continue
		}
		rows = append(rows, r)
	}
	return t.derive(rows)
}
