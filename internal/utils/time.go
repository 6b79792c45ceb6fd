package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/studylit/internal/constants"
)

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	_, err := LoadLocation(timezone)
	return err == nil
}

// ParseFireAt turns user input into an absolute reminder time.
//
// Accepted forms:
//   - a Go duration prefixed with "+" ("+2h", "+90s"), relative to now
//   - "HH:MM", today in loc (tomorrow if that time has already passed)
//   - "YYYY-MM-DD HH:MM" in loc
//   - RFC3339
func ParseFireAt(input string, now time.Time, loc *time.Location) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}

	if strings.HasPrefix(input, "+") {
		d, err := time.ParseDuration(input[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid relative time %q: %w", input, err)
		}
		return now.Add(d), nil
	}

	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t, nil
	}

	if t, err := time.ParseInLocation(constants.DateTimeFormat, input, loc); err == nil {
		return t, nil
	}

	if tod, err := time.Parse(constants.TimeFormat, input); err == nil {
		local := now.In(loc)
		t := time.Date(local.Year(), local.Month(), local.Day(), tod.Hour(), tod.Minute(), 0, 0, loc)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("invalid time %q (expected +DURATION, HH:MM, %q or RFC3339)", input, constants.DateTimeFormat)
}

// DayKey returns the calendar day of t in loc, formatted as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(constants.DateFormat)
}

// LongestDayStreak returns the longest run of consecutive calendar days in days.
// days must hold DayKey values; duplicates and ordering do not matter.
func LongestDayStreak(days []string) int {
	if len(days) == 0 {
		return 0
	}

	seen := make(map[string]bool, len(days))
	for _, d := range days {
		seen[d] = true
	}

	longest := 0
	for d := range seen {
		day, err := time.Parse(constants.DateFormat, d)
		if err != nil {
			continue
		}
		// Only start counting at the first day of a run
		if seen[day.AddDate(0, 0, -1).Format(constants.DateFormat)] {
			continue
		}
		run := 1
		for next := day.AddDate(0, 0, 1); seen[next.Format(constants.DateFormat)]; next = next.AddDate(0, 0, 1) {
			run++
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}
