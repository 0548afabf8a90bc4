package dialogue

import (
	"errors"
	"strings"
	"time"
)

// Precision selects the canonical form of stored dates.
type Precision string

const (
	PrecisionSecond Precision = "second"
	PrecisionMinute Precision = "minute"
)

const (
	layoutSecond  = "2006-01-02T15:04:05"
	layoutMinute  = "2006-01-02T15:04"
	layoutDisplay = "2006-01-02 15:04"
)

// Accepted input forms: full date-time with a T separator, date and time
// separated by a space, or a bare date meaning midnight.
var inputLayouts = []string{
	layoutSecond,
	layoutMinute,
	layoutDisplay,
	"2006-01-02",
}

var ErrInvalidDate = errors.New("unrecognized date format")

// ParseDateTime parses user input in one of the accepted forms. The result
// carries no zone information and is reported in UTC.
func ParseDateTime(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, input); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// FormatCanonical renders t in the stored text form.
func FormatCanonical(t time.Time, p Precision) string {
	if p == PrecisionMinute {
		return t.Format(layoutMinute)
	}
	return t.Format(layoutSecond)
}

// FormatDue renders a stored date for display. Both canonical precisions
// and RFC3339 values are understood; anything else is returned unchanged.
func FormatDue(stored string) string {
	for _, layout := range []string{layoutSecond, layoutMinute, time.RFC3339} {
		if t, err := time.Parse(layout, stored); err == nil {
			return t.Format(layoutDisplay)
		}
	}
	return stored
}
