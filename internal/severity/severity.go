package severity

import (
	"errors"
	"fmt"
	"strings"
)

// Level is the severity tier of a frame log entry.
type Level string

const (
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

// Classification thresholds on the integer confidence score.
const (
	ErrorBelow   = 30
	WarningBelow = 60
)

// Levels lists every tier in display order.
var Levels = []Level{Success, Warning, Error}

// Classify maps a confidence score to its severity tier.
func Classify(confidence int) Level {
	switch {
	case confidence < ErrorBelow:
		return Error
	case confidence < WarningBelow:
		return Warning
	default:
		return Success
	}
}

// Valid reports whether l is one of the known tiers.
func (l Level) Valid() bool {
	switch l {
	case Success, Warning, Error:
		return true
	}
	return false
}

// ErrUnknownFilter is returned by ParseFilter for unrecognized values.
var ErrUnknownFilter = errors.New("severity: unknown filter")

// Filter selects entries by severity. The zero value matches everything.
type Filter struct {
	level Level
}

// FilterAll matches every entry.
var FilterAll = Filter{}

// Only returns a filter that matches a single tier.
func Only(l Level) Filter {
	return Filter{level: l}
}

// ParseFilter parses "all", "success", "warning" or "error" (case-insensitive).
// An empty string is treated as "all".
func ParseFilter(s string) (Filter, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" || normalized == "all" {
		return FilterAll, nil
	}
	l := Level(normalized)
	if !l.Valid() {
		return Filter{}, fmt.Errorf("%w: %q", ErrUnknownFilter, s)
	}
	return Only(l), nil
}

// All reports whether the filter matches every tier.
func (f Filter) All() bool { return f.level == "" }

// Level returns the selected tier, or "" for the all filter.
func (f Filter) Level() Level { return f.level }

// Match reports whether l passes the filter.
func (f Filter) Match(l Level) bool {
	return f.level == "" || f.level == l
}

func (f Filter) String() string {
	if f.level == "" {
		return "all"
	}
	return string(f.level)
}

// Next cycles all -> success -> warning -> error -> all.
func (f Filter) Next() Filter {
	switch f.level {
	case "":
		return Only(Success)
	case Success:
		return Only(Warning)
	case Warning:
		return Only(Error)
	default:
		return FilterAll
	}
}
