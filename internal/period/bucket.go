package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
)

// Granularity is the width of a bucket.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ErrInvalidGranularity is returned for any granularity other than day, week or month.
var ErrInvalidGranularity = errors.New("invalid granularity")

// ErrRangeTooLarge is returned when enumerating a range would produce more
// than MaxBuckets buckets.
var ErrRangeTooLarge = errors.New("range too large")

// MaxBuckets bounds a single enumeration: ten years of days.
const MaxBuckets = 3660

var errBadKey = errors.New("malformed bucket key")

// Bucket is one period on a report axis.
type Bucket struct {
	Key         string      `json:"key"`
	Granularity Granularity `json:"granularity"`
	Label       string      `json:"label"`
	Start       core.Date   `json:"start"`
}

// ParseGranularity accepts exactly "day", "week" or "month".
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	if err := g.Validate(); err != nil {
		return "", err
	}
	return g, nil
}

func (g Granularity) Validate() error {
	switch g {
	case Day, Week, Month:
		return nil
	default:
		return fmt.Errorf("%w: %q (want day, week or month)", ErrInvalidGranularity, string(g))
	}
}

// BucketKey maps a date to its bucket key. Keys sort lexicographically in
// date order:
//
//	day   2025-08-01
//	week  2026-W01   (ISO 8601 week, Monday first)
//	month 2025-08
func BucketKey(d core.Date, g Granularity) (string, error) {
	switch g {
	case Day:
		return d.String(), nil
	case Week:
		year, week := d.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	case Month:
		return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month())), nil
	default:
		return "", g.Validate()
	}
}

// Anchor returns the first date of the bucket identified by key.
func Anchor(key string, g Granularity) (core.Date, error) {
	switch g {
	case Day:
		d, err := core.ParseDate(key)
		if err != nil {
			return core.Date{}, fmt.Errorf("%w: %q", errBadKey, key)
		}
		return d, nil
	case Week:
		year, week, err := splitKey(key, "-W")
		if err != nil || week < 1 || week > 53 {
			return core.Date{}, fmt.Errorf("%w: %q", errBadKey, key)
		}
		monday := isoWeekMonday(year, week)
		if k, _ := BucketKey(monday, Week); k != key {
			// week 53 of a year that only has 52
			return core.Date{}, fmt.Errorf("%w: %q", errBadKey, key)
		}
		return monday, nil
	case Month:
		year, month, err := splitKey(key, "-")
		if err != nil || month < 1 || month > 12 {
			return core.Date{}, fmt.Errorf("%w: %q", errBadKey, key)
		}
		return core.NewDate(year, time.Month(month), 1), nil
	default:
		return core.Date{}, g.Validate()
	}
}

// Label renders a bucket key for display: "Aug 1", "Week of Dec 29, 2025", "August 2025".
func Label(key string, g Granularity) (string, error) {
	start, err := Anchor(key, g)
	if err != nil {
		return "", err
	}
	switch g {
	case Day:
		return start.Format("Jan 2"), nil
	case Week:
		return "Week of " + start.Format("Jan 2, 2006"), nil
	default:
		return start.Format("January 2006"), nil
	}
}

// NewBucket builds the full bucket description for a key.
func NewBucket(key string, g Granularity) (Bucket, error) {
	start, err := Anchor(key, g)
	if err != nil {
		return Bucket{}, err
	}
	label, err := Label(key, g)
	if err != nil {
		return Bucket{}, err
	}
	return Bucket{Key: key, Granularity: g, Label: label, Start: start}, nil
}

// Enumerate lists, in ascending order, the key of every bucket that overlaps
// the range, including buckets only partially covered at either end. An
// empty range yields no keys; more than MaxBuckets keys is ErrRangeTooLarge.
func Enumerate(r Range, g Granularity) ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if r.Empty() {
		return []string{}, nil
	}
	last, _ := BucketKey(r.End, g)
	first, _ := BucketKey(r.Start, g)
	cursor, err := Anchor(first, g)
	if err != nil {
		return nil, err
	}

	var keys []string
	for {
		key, _ := BucketKey(cursor, g)
		keys = append(keys, key)
		if key >= last {
			return keys, nil
		}
		if len(keys) == MaxBuckets {
			return nil, fmt.Errorf("%w: %s to %s by %s exceeds %d buckets", ErrRangeTooLarge, r.Start, r.End, g, MaxBuckets)
		}
		cursor = next(cursor, g)
	}
}

// Buckets is Enumerate with labels and anchor dates attached.
func Buckets(r Range, g Granularity) ([]Bucket, error) {
	keys, err := Enumerate(r, g)
	if err != nil {
		return nil, err
	}
	out := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		b, err := NewBucket(k, g)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// next advances a bucket anchor to the anchor of the following bucket.
func next(anchor core.Date, g Granularity) core.Date {
	switch g {
	case Week:
		return anchor.AddDays(7)
	case Month:
		return core.Date{Time: anchor.AddDate(0, 1, 0)}
	default:
		return anchor.AddDays(1)
	}
}

// isoWeekMonday returns the Monday of ISO week `week` of ISO year `year`.
// January 4th always falls in week 1.
func isoWeekMonday(year, week int) core.Date {
	jan4 := core.NewDate(year, 1, 4)
	week1 := jan4.AddDays(-jan4.WeekdayFromMonday())
	return week1.AddDays((week - 1) * 7)
}

func splitKey(key, sep string) (int, int, error) {
	left, right, ok := strings.Cut(key, sep)
	if !ok || len(left) != 4 || len(right) != 2 {
		return 0, 0, errBadKey
	}
	a, err := strconv.Atoi(left)
	if err != nil {
		return 0, 0, errBadKey
	}
	b, err := strconv.Atoi(right)
	if err != nil {
		return 0, 0, errBadKey
	}
	return a, b, nil
}
