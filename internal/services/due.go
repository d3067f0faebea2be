package services

import (
	"sort"
	"strings"
	"time"

	"github.com/ajramos/tagmail/internal/mail"
)

const dueLayout = "2006-01-02"

// EarliestDue returns the earliest due tag carried by any conversation
// behind the entry. Zero-padded ISO dates compare chronologically as
// strings.
func EarliestDue(entry mail.Entry) (string, bool) {
	var earliest string
	for _, sum := range entry.Members() {
		if sum == nil {
			continue
		}
		for _, tag := range mail.DueTags(sum.Tags) {
			if earliest == "" || tag < earliest {
				earliest = tag
			}
		}
	}
	return earliest, earliest != ""
}

// CompareByDueDate orders entries with a due date before those without,
// earlier dates first. Entries without a due date compare equal.
func CompareByDueDate(a, b mail.Entry) int {
	ad, aok := EarliestDue(a)
	bd, bok := EarliestDue(b)
	switch {
	case aok && bok:
		return strings.Compare(ad, bd)
	case aok:
		return -1
	case bok:
		return 1
	default:
		return 0
	}
}

// SortByDueDate sorts entries in place by CompareByDueDate, keeping the
// relative order of entries that compare equal.
func SortByDueDate(entries []mail.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return CompareByDueDate(entries[i], entries[j]) < 0
	})
}

// Calendar is the due-date range from today to the latest due date,
// enumerated by year, month and day.
type Calendar struct {
	Start   time.Time
	End     time.Time
	Years   []CalendarYear
	Overdue []string // conversations due before today
}

// CalendarYear spans only the months of the range inside that year
type CalendarYear struct {
	Year   int
	Months []CalendarMonth
}

// CalendarMonth spans only the days of the range inside that month
type CalendarMonth struct {
	Month time.Month
	Days  []CalendarDay
}

// CalendarDay holds the conversations due on one date
type CalendarDay struct {
	Date      time.Time
	ThreadIDs []string
}

// IsEmpty reports whether nothing is due from today on.
func (c Calendar) IsEmpty() bool { return len(c.Years) == 0 }

// Day returns the bucket for date, if it is inside the range.
func (c Calendar) Day(date time.Time) (CalendarDay, bool) {
	for _, y := range c.Years {
		if y.Year != date.Year() {
			continue
		}
		for _, m := range y.Months {
			if m.Month != date.Month() {
				continue
			}
			for _, d := range m.Days {
				if d.Date.Day() == date.Day() {
					return d, true
				}
			}
		}
	}
	return CalendarDay{}, false
}

// BuildCalendar buckets the due dates of entries into days from today up
// to the latest due date.
func BuildCalendar(entries []mail.Entry, today time.Time) Calendar {
	today = truncateDay(today)
	byDay := make(map[string][]string)
	var latest time.Time
	var overdue []string
	overdueSeen := make(map[string]struct{})

	for _, sum := range mail.FlattenEntries(entries) {
		for _, tag := range mail.DueTags(sum.Tags) {
			raw, _ := mail.DueDate(tag)
			date, err := time.Parse(dueLayout, raw)
			if err != nil {
				continue
			}
			if date.Before(today) {
				if _, ok := overdueSeen[sum.ThreadID]; !ok {
					overdueSeen[sum.ThreadID] = struct{}{}
					overdue = append(overdue, sum.ThreadID)
				}
				continue
			}
			if !containsString(byDay[raw], sum.ThreadID) {
				byDay[raw] = append(byDay[raw], sum.ThreadID)
			}
			if date.After(latest) {
				latest = date
			}
		}
	}

	cal := Calendar{Overdue: overdue}
	if latest.IsZero() {
		return cal
	}
	cal.Start, cal.End = today, latest

	for y := today.Year(); y <= latest.Year(); y++ {
		year := CalendarYear{Year: y}
		firstMonth, lastMonth := time.January, time.December
		if y == today.Year() {
			firstMonth = today.Month()
		}
		if y == latest.Year() {
			lastMonth = latest.Month()
		}
		for m := firstMonth; m <= lastMonth; m++ {
			month := CalendarMonth{Month: m}
			firstDay, lastDay := 1, daysIn(y, m)
			if y == today.Year() && m == today.Month() {
				firstDay = today.Day()
			}
			if y == latest.Year() && m == latest.Month() {
				lastDay = latest.Day()
			}
			for d := firstDay; d <= lastDay; d++ {
				date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
				month.Days = append(month.Days, CalendarDay{
					Date:      date,
					ThreadIDs: byDay[date.Format(dueLayout)],
				})
			}
			year.Months = append(year.Months, month)
		}
		cal.Years = append(cal.Years, year)
	}
	return cal
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
