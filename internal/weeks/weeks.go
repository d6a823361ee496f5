// Package weeks holds the UTC calendar arithmetic shared by the feed, the
// statistics and the archiver. A week runs Monday 00:00 UTC to the next Monday.
package weeks

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	Day  = 24 * time.Hour
	Week = 7 * Day
	// SeriesDays is the length of the trailing daily series.
	SeriesDays = 7
)

var weekIDPattern = regexp.MustCompile(`^([0-9]{4})-?W?([0-9]{2})$`)

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayBounds returns [today 00:00, tomorrow 00:00) in UTC.
func DayBounds(now time.Time) (time.Time, time.Time) {
	start := DayStart(now)
	return start, start.Add(Day)
}

// WeekStart returns the most recent Monday 00:00 UTC at or before now.
func WeekStart(now time.Time) time.Time {
	day := DayStart(now)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

// WeekBounds returns [weekStart, weekStart+7d).
func WeekBounds(now time.Time) (time.Time, time.Time) {
	start := WeekStart(now)
	return start, start.AddDate(0, 0, 7)
}

// SeriesStart is the first day of the trailing series ending today: today minus 6 days.
func SeriesStart(now time.Time) time.Time {
	return DayStart(now).AddDate(0, 0, -(SeriesDays - 1))
}

// DayIndex returns the number of whole calendar days between seriesStart and
// ts (both UTC), and whether it falls inside the series.
func DayIndex(ts, seriesStart time.Time) (int, bool) {
	idx := int(DayStart(ts).Sub(DayStart(seriesStart)) / Day)
	return idx, idx >= 0 && idx < SeriesDays
}

// ISOWeekID formats the ISO week of now as YYYY-WW.
func ISOWeekID(now time.Time) string {
	year, week := now.UTC().ISOWeek()
	return fmt.Sprintf("%04d-%02d", year, week)
}

// WeeksInYear returns the number of ISO weeks in year, 52 or 53.
func WeeksInYear(year int) int {
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}

// CanonicalWeekID accepts YYYY-WW, YYYYWW, YYYYWww and YYYY-Www and returns the
// id as YYYY-WW. The week must exist in that ISO year.
func CanonicalWeekID(id string) (string, bool) {
	m := weekIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", false
	}
	year, _ := strconv.Atoi(m[1])
	week, _ := strconv.Atoi(m[2])
	if week < 1 || week > WeeksInYear(year) {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d", year, week), true
}

// NextWeekly returns the first instant strictly after now that falls on weekday
// at hour:minute UTC.
func NextWeekly(now time.Time, weekday time.Weekday, hour, minute int) time.Time {
	now = now.UTC()
	day := DayStart(now)
	ahead := (int(weekday) - int(day.Weekday()) + 7) % 7
	next := day.AddDate(0, 0, ahead).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
