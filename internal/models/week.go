package models

import (
	"fmt"
	"time"
)

// Week is one ISO week of the board: its notes and the items placed on it.
type Week struct {
	ID        string    `json:"id" msgpack:"id"`
	Year      int       `json:"year" msgpack:"year"`
	Number    int       `json:"number" msgpack:"number"`
	Notes     string    `json:"notes" msgpack:"notes"`
	UpdatedAt time.Time `json:"updatedAt" msgpack:"updatedAt"`
	ItemCount int       `json:"itemCount" msgpack:"itemCount"`
	Items     []*Item   `json:"items,omitempty" msgpack:"items,omitempty"`
}

// WeekID returns the ISO week identifier for t, e.g. "2026-W02".
func WeekID(t time.Time) string {
	year, week := t.ISOWeek()
	return FormatWeekID(year, week)
}

// FormatWeekID formats a year and ISO week number.
func FormatWeekID(year, week int) string {
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// ParseWeekID validates an identifier of the form YYYY-Www.
func ParseWeekID(id string) (year, week int, err error) {
	if len(id) != 8 || id[4] != '-' || id[5] != 'W' {
		return 0, 0, fmt.Errorf("invalid week id %q: want YYYY-Www", id)
	}
	if _, err := fmt.Sscanf(id, "%04d-W%02d", &year, &week); err != nil {
		return 0, 0, fmt.Errorf("invalid week id %q: %w", id, err)
	}
	if week < 1 || week > weeksInYear(year) {
		return 0, 0, fmt.Errorf("invalid week id %q: week out of range", id)
	}
	return year, week, nil
}

// weeksInYear is 53 when 28 December falls in week 53.
func weeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// NewWeek returns an empty week for a validated id.
func NewWeek(id string) (*Week, error) {
	year, number, err := ParseWeekID(id)
	if err != nil {
		return nil, err
	}
	return &Week{ID: id, Year: year, Number: number, UpdatedAt: time.Now()}, nil
}
