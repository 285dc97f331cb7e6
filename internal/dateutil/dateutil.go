// Package dateutil converts between time values and the backend's date
// string formats.
package dateutil

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ServerDateTimeFormat is the canonical date-time layout the backend accepts.
	ServerDateTimeFormat = "2006-01-02T15:04:05-0700"
	// ServerDateFormat is used for date-only attribute values.
	ServerDateFormat = "2006-01-02"
)

// Layouts accepted when reading dates from the backend, most specific first.
var serverLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	ServerDateTimeFormat,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	ServerDateFormat,
}

// Formatter formats and parses backend dates in a fixed location.
type Formatter struct {
	loc *time.Location
}

// New returns a Formatter that renders dates in loc. A nil loc means local time.
func New(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.Local
	}
	return &Formatter{loc: loc}
}

// Format renders t in ServerDateTimeFormat.
func (f *Formatter) Format(t time.Time) string {
	return t.In(f.loc).Format(ServerDateTimeFormat)
}

// FormatDate renders t in ServerDateFormat.
func (f *Formatter) FormatDate(t time.Time) string {
	return t.In(f.loc).Format(ServerDateFormat)
}

// Parse reads a backend date string. An empty string yields nil without error.
func (f *Formatter) Parse(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range serverLayouts {
		if t, err := time.ParseInLocation(layout, s, f.loc); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised server date %q", s)
}
