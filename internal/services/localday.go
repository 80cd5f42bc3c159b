package services

import (
	"fmt"
	"time"

	"reclaim/internal/models"
)

// localDate is the calendar date of t in loc.
func localDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(models.DateLayout)
}

// yesterday is the most recently closed local day at now.
func yesterday(now time.Time, loc *time.Location) string {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, loc).Format(models.DateLayout)
}

// dayBounds returns [local midnight, next local midnight) for date in loc.
// The span is not always 24h across DST changes.
func dayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	d, err := time.ParseInLocation(models.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	to := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
	return from, to, nil
}

// addDays shifts a YYYY-MM-DD date by n calendar days.
func addDays(date string, n int) (string, error) {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d.AddDate(0, 0, n).Format(models.DateLayout), nil
}
