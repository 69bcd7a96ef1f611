// Package calendar maps instants onto a user's civil day.
//
// Civil dates are carried as time.Time values at midnight UTC so they can be
// compared, stored in a date column and used as map keys without dragging a
// location around. Anything that needs real instants (the activity window,
// "today" for a user) goes through a Resolver.
package calendar

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
)

// DateLayout is the canonical YYYY-MM-DD form used in URLs, payloads and logs.
const DateLayout = "2006-01-02"

const longDateLayout = "Monday, January 2, 2006"

// Resolver resolves IANA zone names with a configured default.
type Resolver struct {
	defaultZone string
	logger      *zap.Logger
}

// NewResolver returns a Resolver. An empty defaultZone means UTC.
func NewResolver(defaultZone string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{defaultZone: strings.TrimSpace(defaultZone), logger: logger}
}

// DefaultZone returns the zone used for users without their own.
func (r *Resolver) DefaultZone() string {
	if r.defaultZone == "" {
		return "UTC"
	}
	return r.defaultZone
}

// Location loads name, or the default zone when name is empty. Unknown zones
// are logged and resolve to UTC so a bad profile value never blocks a run.
func (r *Resolver) Location(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		name = r.defaultZone
	}
	if name == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		r.logger.Warn("unknown timezone, falling back to UTC",
			zap.String("timezone", name),
			zap.Error(err),
		)
		return time.UTC
	}
	return loc
}

// Today is the civil date of now in the given zone.
func (r *Resolver) Today(zone string, now time.Time) time.Time {
	return Normalize(now.In(r.Location(zone)))
}

// DayWindow returns the first and last instant of date in zone. Both bounds
// are inclusive. On DST transition days the window is 23 or 25 hours long.
func (r *Resolver) DayWindow(date time.Time, zone string) (time.Time, time.Time) {
	loc := r.Location(zone)
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
	return start, end
}

// ValidateZone reports whether name is a loadable IANA zone.
func ValidateZone(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("timezone is empty")
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return nil
}

// Date builds a civil date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Normalize keeps the calendar date of t as seen in t's own location.
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// IsWeekday is true Monday through Friday.
func IsWeekday(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// PreviousWeekday walks back from the day before date to the nearest weekday.
func PreviousWeekday(date time.Time) time.Time {
	prev := Normalize(date).AddDate(0, 0, -1)
	for !IsWeekday(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// LongDate renders "Monday, January 15, 2024".
func LongDate(date time.Time) string {
	return date.Format(longDateLayout)
}

// Key renders YYYY-MM-DD.
func Key(date time.Time) string {
	return date.Format(DateLayout)
}

// Parse reads YYYY-MM-DD into a civil date.
func Parse(raw string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return parsed, nil
}
