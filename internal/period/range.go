// Package period resolves user facing range expressions into inclusive date
// intervals and maps dates onto day, week and month buckets.
//
// Nothing in this package reads the wall clock: "today" is always supplied by
// the caller so results are reproducible.
package period

import (
	"errors"
	"strings"
	"unicode"

	"tally/internal/core"
)

// Named range keywords.
const (
	Today       = "today"
	ThisWeek    = "this_week"
	ThisMonth   = "this_month"
	LastMonth   = "last_month"
	ThreeMonths = "3months"
)

// ErrInvalidRangeSpec is reported by Parse for specs it cannot interpret.
// Resolve recovers from it by falling back to today.
var ErrInvalidRangeSpec = errors.New("invalid range spec")

var titles = map[string]string{
	Today:       "Today",
	ThisWeek:    "This Week",
	ThisMonth:   "This Month",
	LastMonth:   "Last Month",
	ThreeMonths: "Last 3 Months",
}

// Range is an inclusive interval of calendar dates. A range whose Start is
// after its End is empty; it is a valid value, not an error.
type Range struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
}

// Single returns the one-day range [d, d].
func Single(d core.Date) Range {
	return Range{Start: d, End: d}
}

// Empty reports whether the range contains no dates.
func (r Range) Empty() bool {
	return r.Start.After(r.End)
}

// Contains reports whether d lies within the range, bounds included.
func (r Range) Contains(d core.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r Range) String() string {
	return r.Start.String() + ".." + r.End.String()
}

// Resolve turns a range spec into a concrete interval anchored to today.
// It never fails: anything Parse rejects resolves to [today, today].
func Resolve(spec string, today core.Date) Range {
	r, err := Parse(spec, today)
	if err != nil {
		return Single(today)
	}
	return r
}

// Parse is the strict form of Resolve. Custom "from X to Y" ranges are
// returned verbatim, even when X is after Y.
func Parse(spec string, today core.Date) (Range, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	switch s {
	case Today:
		return Single(today), nil
	case ThisWeek:
		return Range{Start: today.AddDays(-today.WeekdayFromMonday()), End: today}, nil
	case ThisMonth:
		return Range{Start: today.FirstOfMonth(), End: today}, nil
	case LastMonth:
		lastOfPrev := today.FirstOfMonth().AddDays(-1)
		return Range{Start: lastOfPrev.FirstOfMonth(), End: lastOfPrev}, nil
	case ThreeMonths:
		return Range{Start: today.AddDays(-90), End: today}, nil
	}
	return parseCustom(s)
}

// parseCustom reads "from YYYY-MM-DD to YYYY-MM-DD". The date following each
// keyword is taken, so surrounding words are tolerated.
func parseCustom(s string) (Range, error) {
	fields := strings.Fields(s)
	start, okStart := dateAfter(fields, "from")
	end, okEnd := dateAfter(fields, "to")
	if !okStart || !okEnd {
		return Range{}, ErrInvalidRangeSpec
	}
	return Range{Start: start, End: end}, nil
}

func dateAfter(fields []string, keyword string) (core.Date, bool) {
	for i, f := range fields {
		if f != keyword {
			continue
		}
		if i+1 >= len(fields) {
			return core.Date{}, false
		}
		d, err := core.ParseDate(fields[i+1])
		if err != nil {
			return core.Date{}, false
		}
		return d, true
	}
	return core.Date{}, false
}

// Title returns a display title for a spec: the known name of a keyword, or
// the range spec with underscores turned into spaces and words capitalized.
func Title(spec string) string {
	s := strings.TrimSpace(spec)
	if t, ok := titles[strings.ToLower(s)]; ok {
		return t
	}
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
