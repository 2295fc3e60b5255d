// Package forecasts turns raw provider payloads into forecast tables and
// derives daily aggregates, trend signals, comfort scores, descriptive
// statistics and CSV/JSON exports from them.
//
// Every operation degrades to an empty or nil result instead of returning an
// error; diagnostics go to the processor's logger. Callers check for emptiness.
package forecasts

import (
	"log/slog"
	"time"
)

// Processor holds the display location used for derived calendar fields.
// It carries no per-request state and is safe for concurrent use.
type Processor struct {
	loc    *time.Location
	logger *slog.Logger
}

// NewProcessor creates a Processor. A nil loc means time.Local.
func NewProcessor(loc *time.Location, logger *slog.Logger) *Processor {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{loc: loc, logger: logger}
}

// Location returns the display location timestamps are converted into.
func (p *Processor) Location() *time.Location {
	return p.loc
}
