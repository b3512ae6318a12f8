package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// Month is a UTC calendar month, stored as its first instant
type Month struct {
	t time.Time
}

// MonthOf returns the UTC calendar month containing t
func MonthOf(t time.Time) Month {
	u := t.UTC()
	return Month{t: time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)}
}

// ParseMonth parses "YYYY-MM" (a trailing "-DD" is accepted and ignored)
func ParseMonth(s string) (Month, error) {
	if len(s) == len("2006-01-02") {
		s = s[:len(monthLayout)]
	}
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return Month{t: t}, nil
}

// Add returns the month n calendar months after m (n may be negative)
func (m Month) Add(n int) Month {
	return Month{t: m.t.AddDate(0, n, 0)}
}

// Start returns the first instant of the month
func (m Month) Start() time.Time { return m.t }

// Before reports whether m is earlier than o
func (m Month) Before(o Month) bool { return m.t.Before(o.t) }

// IsZero reports whether m is unset
func (m Month) IsZero() bool { return m.t.IsZero() }

// String renders the month as "YYYY-MM"
func (m Month) String() string { return m.t.Format(monthLayout) }

// MarshalJSON encodes the month as "YYYY-MM"
func (m Month) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes "YYYY-MM" or "YYYY-MM-DD"
func (m *Month) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MonthRange returns the n months ending at (and including) last, ascending
func MonthRange(last Month, n int) []Month {
	if n <= 0 {
		return nil
	}
	months := make([]Month, n)
	for i := 0; i < n; i++ {
		months[i] = last.Add(i - n + 1)
	}
	return months
}
