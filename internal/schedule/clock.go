package schedule

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the YYYY-MM-DD date key format.
	DateLayout = "2006-01-02"
	// ClockLayout is the zero-padded 24-hour HH:MM format.
	ClockLayout = "15:04"

	endOfDay = "24:00"
)

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != len(ClockLayout) {
		return 0, fmt.Errorf("schedule: invalid time %q, want HH:MM", s)
	}
	if s == endOfDay {
		return 24 * 60, nil
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("schedule: invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts minutes since midnight into "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// AddMinutes returns the clock string d minutes after s.
func AddMinutes(s string, d int) (string, error) {
	m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	if m+d > 24*60 {
		return "", fmt.Errorf("schedule: %s plus %d minutes crosses midnight", s, d)
	}
	return FormatClock(m + d), nil
}

// ParseDate parses a YYYY-MM-DD date key as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: invalid date %q: %w", s, err)
	}
	return t, nil
}

// EachDate calls fn for every date in [start, end] inclusive.
func EachDate(start, end string, fn func(date string, weekday time.Weekday) error) error {
	from, err := ParseDate(start)
	if err != nil {
		return err
	}
	to, err := ParseDate(end)
	if err != nil {
		return err
	}
	if to.Before(from) {
		return fmt.Errorf("schedule: end date %s is before start date %s", end, start)
	}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if err := fn(d.Format(DateLayout), d.Weekday()); err != nil {
			return err
		}
	}
	return nil
}

// DaysBetween returns the number of calendar days from start to end.
func DaysBetween(start, end string) (int, error) {
	from, err := ParseDate(start)
	if err != nil {
		return 0, err
	}
	to, err := ParseDate(end)
	if err != nil {
		return 0, err
	}
	return int(to.Sub(from).Hours() / 24), nil
}
