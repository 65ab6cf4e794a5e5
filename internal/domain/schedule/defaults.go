// Package schedule suggests order windows from configured cron expressions.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultDuration is used for ends when no closing schedule is configured.
const DefaultDuration = 7 * 24 * time.Hour

// Config holds the order schedule. Empty specs disable the respective rule.
type Config struct {
	// Opening is a standard 5-field cron spec for when orders start, e.g. "0 8 * * 1".
	Opening string
	// Closing is a cron spec for when orders end, e.g. "0 20 * * 4".
	Closing string
	// Location the specs are evaluated in. Defaults to UTC.
	Location *time.Location
}

// Defaults implements orders.ScheduleDefaults.
type Defaults struct {
	opening  cron.Schedule
	closing  cron.Schedule
	location *time.Location
}

// NewDefaults parses cfg once.
func NewDefaults(cfg Config) (*Defaults, error) {
	d := &Defaults{location: cfg.Location}
	if d.location == nil {
		d.location = time.UTC
	}

	var err error
	if cfg.Opening != "" {
		if d.opening, err = cron.ParseStandard(cfg.Opening); err != nil {
			return nil, fmt.Errorf("parse opening schedule %q: %w", cfg.Opening, err)
		}
	}
	if cfg.Closing != "" {
		if d.closing, err = cron.ParseStandard(cfg.Closing); err != nil {
			return nil, fmt.Errorf("parse closing schedule %q: %w", cfg.Closing, err)
		}
	}
	return d, nil
}

// SuggestWindow returns the next opening at or after referenceDay (or
// referenceDay itself without an opening rule) and the first closing after it.
func (d *Defaults) SuggestWindow(referenceDay time.Time) (starts, ends time.Time) {
	ref := referenceDay.In(d.location)

	starts = ref
	if d.opening != nil {
		starts = d.opening.Next(ref.Add(-time.Second))
	}

	ends = starts.Add(DefaultDuration)
	if d.closing != nil {
		ends = d.closing.Next(starts)
	}
	return starts.UTC(), ends.UTC()
}
