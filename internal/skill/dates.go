package skill

import (
	"fmt"
	"strings"
	"time"
)

// weekdayNames maps spoken weekday references to time.Weekday.
// Covers English names, three-letter abbreviations, and the Chinese
// forms the dashboard's users actually type.
var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// chineseWeekdays maps the trailing character of 星期X / 週X / 禮拜X.
var chineseWeekdays = map[string]time.Weekday{
	"日": time.Sunday, "天": time.Sunday,
	"一": time.Monday,
	"二": time.Tuesday,
	"三": time.Wednesday,
	"四": time.Thursday,
	"五": time.Friday,
	"六": time.Saturday,
}

// ResolveDate normalizes a free-form date expression to a calendar date,
// anchored at the server's current time.
//
// Accepted forms: empty (today), "today"/"今天", "tomorrow"/"明天",
// "yesterday"/"昨天", "next <weekday>" and "下週X" (strictly after
// today), a bare weekday name (the coming occurrence, today included),
// "YYYY-MM-DD", and the ambiguous "MM-DD" / "MM/DD", which is assumed to
// be in the server's current year.
func ResolveDate(expr string, now time.Time) (time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	expr = strings.TrimSpace(expr)
	lower := strings.ToLower(expr)

	switch lower {
	case "", "today", "今天", "今日":
		return today, nil
	case "tomorrow", "明天":
		return today.AddDate(0, 0, 1), nil
	case "yesterday", "昨天":
		return today.AddDate(0, 0, -1), nil
	}

	if rest, ok := strings.CutPrefix(lower, "next "); ok {
		wd, err := ParseWeekday(rest)
		if err != nil {
			return time.Time{}, err
		}
		return nextWeekday(today, wd, false), nil
	}
	for _, prefix := range []string{"下週", "下星期", "下禮拜"} {
		if rest, ok := strings.CutPrefix(expr, prefix); ok {
			wd, err := ParseWeekday(rest)
			if err != nil {
				return time.Time{}, err
			}
			return nextWeekday(today, wd, false), nil
		}
	}

	if wd, err := ParseWeekday(expr); err == nil {
		return nextWeekday(today, wd, true), nil
	}

	for _, layout := range []string{"2006-01-02", "2006/01/02"} {
		if t, err := time.ParseInLocation(layout, expr, now.Location()); err == nil {
			return t, nil
		}
	}

	// Partial date: assume the server's current year.
	for _, layout := range []string{"01-02", "1-2", "01/02", "1/2"} {
		if t, err := time.ParseInLocation(layout, expr, now.Location()); err == nil {
			return time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location()), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", ErrInvalidArgument, expr)
}

// ParseWeekday parses a weekday reference in English, Chinese, or as a
// digit (0 = Sunday, matching time.Weekday).
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.TrimSpace(s)
	if wd, ok := weekdayNames[strings.ToLower(s)]; ok {
		return wd, nil
	}

	stripped := s
	for _, prefix := range []string{"星期", "週", "周", "禮拜"} {
		stripped = strings.TrimPrefix(stripped, prefix)
	}
	if wd, ok := chineseWeekdays[stripped]; ok {
		return wd, nil
	}

	if len(s) == 1 && s[0] >= '0' && s[0] <= '6' {
		return time.Weekday(s[0] - '0'), nil
	}

	return 0, fmt.Errorf("%w: unrecognized weekday %q", ErrInvalidArgument, s)
}

// nextWeekday returns the next occurrence of wd after today.
// includeToday keeps today when the weekdays already match.
func nextWeekday(today time.Time, wd time.Weekday, includeToday bool) time.Time {
	days := (int(wd) - int(today.Weekday()) + 7) % 7
	if days == 0 && !includeToday {
		days = 7
	}
	return today.AddDate(0, 0, days)
}
