package mpp

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date decoded from a strict YYYY-MM-DD string.
type Date struct {
	time.Time
}

// ParseDate parses s as YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// Timestamp is an ISO-8601 date-time. It remembers the layout it was parsed
// with so String reproduces the source text.
type Timestamp struct {
	time.Time
	layout string
}

// ParseTimestamp parses ISO-8601 date-times as served by the registry, e.g.
// 2024-01-15T10:30:00.123456-06:00, 2024-01-15T16:30:00Z or the naive
// 2024-01-15 10:30:00. Offsets may be written +05, +0530 or +05:30. A bare
// date is accepted as midnight.
func ParseTimestamp(s string) (Timestamp, error) {
	layout, err := isoLayout(s)
	if err != nil {
		return Timestamp{}, err
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{Time: t, layout: layout}, nil
}

// String returns the timestamp in the form it was parsed from.
func (t Timestamp) String() string {
	if t.layout == "" {
		return t.Format(time.RFC3339Nano)
	}
	return t.Format(t.layout)
}

// isoLayout derives a time layout matching s exactly, so fractional digits
// and the zone designator survive a parse/format cycle.
func isoLayout(s string) (string, error) {
	if len(s) == len(dateLayout) {
		return dateLayout, nil
	}
	if len(s) < len("2006-01-02T15:04") {
		return "", fmt.Errorf("%q is too short for an ISO-8601 timestamp", s)
	}

	var b strings.Builder
	b.WriteString(dateLayout)
	switch s[10] {
	case 'T', ' ':
		b.WriteByte(s[10])
	default:
		return "", fmt.Errorf("%q has no date/time separator", s)
	}

	rest := s[11:]
	switch {
	case len(rest) >= 8 && rest[5] == ':':
		b.WriteString("15:04:05")
		rest = rest[8:]
	default:
		b.WriteString("15:04")
		rest = rest[5:]
	}

	if strings.HasPrefix(rest, ".") {
		n := 1
		for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
			n++
		}
		if n == 1 {
			return "", fmt.Errorf("%q has an empty fraction", s)
		}
		if n-1 > 9 {
			return "", fmt.Errorf("%q has more than nanosecond precision", s)
		}
		b.WriteString("." + strings.Repeat("0", n-1))
		rest = rest[n:]
	}

	switch {
	case rest == "":
	case rest == "Z":
		b.WriteString("Z07:00")
	case strings.Contains(rest, ":"):
		b.WriteString("-07:00")
	case len(rest) == len("+07"):
		b.WriteString("-07")
	default:
		b.WriteString("-0700")
	}
	return b.String(), nil
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// MarshalJSON encodes the timestamp in its source form.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}
