package defaults

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar form of a shadow date.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

var ErrBadDate = errors.New("expected a valid calendar date in YYYY-MM-DD format")

// DaysToCalendar renders a shadow day count as YYYY-MM-DD. The sentinels
// "0" (never/now) and "-1" (unlimited) and the empty string all render as
// the empty string, meaning no expiration.
func DaysToCalendar(days string) string {
	days = strings.TrimSpace(days)
	switch days {
	case "", "0", "-1":
		return ""
	}
	n, err := strconv.ParseInt(days, 10, 64)
	if err != nil || n < 0 {
		return ""
	}
	return time.Unix(n*secondsPerDay, 0).UTC().Format(DateLayout)
}

// CalendarToDays converts YYYY-MM-DD into days since the epoch. The empty
// string stays empty. Dates before 1970-01-02 collide with the sentinels and
// are rejected.
func CalendarToDays(date string) (string, error) {
	if date == "" {
		return "", nil
	}
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadDate, err)
	}
	days := t.Unix() / secondsPerDay
	if days < 1 {
		return "", fmt.Errorf("%w: dates start at 1970-01-02", ErrBadDate)
	}
	return strconv.FormatInt(days, 10), nil
}

// EpochDay returns the shadow day count of t.
func EpochDay(t time.Time) int {
	return int(t.UTC().Unix() / secondsPerDay)
}
