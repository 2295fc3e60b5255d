package forecasts

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// ColumnStats are the descriptive statistics of one numeric column, rounded
// to two decimals. Std is nil when fewer than two values exist.
type ColumnStats struct {
	Count int      `json:"count"`
	Mean  float64  `json:"mean"`
	Std   *float64 `json:"std"`
	Min   float64  `json:"min"`
	Q25   float64  `json:"25%"`
	Q50   float64  `json:"50%"`
	Q75   float64  `json:"75%"`
	Max   float64  `json:"max"`
}

// Summary describes every numeric column of the table. Text, date and boolean
// columns are excluded. An empty table yields an empty map.
func (p *Processor) Summary(t *Table) map[string]ColumnStats {
	out := make(map[string]ColumnStats)
	if t.Empty() {
		return out
	}
	for _, c := range t.NumericColumns() {
		values, _ := t.Floats(c)
		out[c] = describe(values)
	}
	return out
}

func describe(values []float64) ColumnStats {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	s := ColumnStats{
		Count: len(sorted),
		Mean:  round2(stat.Mean(sorted, nil)),
		Min:   round2(sorted[0]),
		Q25:   round2(quantile(sorted, 0.25)),
		Q50:   round2(quantile(sorted, 0.50)),
		Q75:   round2(quantile(sorted, 0.75)),
		Max:   round2(sorted[len(sorted)-1]),
	}
	if len(sorted) > 1 {
		std := round2(stat.StdDev(sorted, nil))
		s.Std = &std
	}
	return s
}

// quantile linearly interpolates between the closest ranks at q*(n-1) of an
// ascending slice.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
