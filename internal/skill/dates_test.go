package skill

import (
	"errors"
	"testing"
	"time"
)

func TestResolveDate(t *testing.T) {
	t.Parallel()

	// Wednesday, 2025-06-18.
	now := time.Date(2025, 6, 18, 15, 30, 0, 0, time.Local)
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	}

	tests := []struct {
		expr string
		want time.Time
	}{
		{"", day(2025, 6, 18)},
		{"today", day(2025, 6, 18)},
		{"今天", day(2025, 6, 18)},
		{"tomorrow", day(2025, 6, 19)},
		{"明天", day(2025, 6, 19)},
		{"yesterday", day(2025, 6, 17)},
		{"昨天", day(2025, 6, 17)},

		// Bare weekday: coming occurrence, today included.
		{"wednesday", day(2025, 6, 18)},
		{"friday", day(2025, 6, 20)},
		{"monday", day(2025, 6, 23)},
		{"星期五", day(2025, 6, 20)},
		{"週日", day(2025, 6, 22)},

		// "next": strictly after today.
		{"next wednesday", day(2025, 6, 25)},
		{"next friday", day(2025, 6, 20)},
		{"下週三", day(2025, 6, 25)},
		{"下星期六", day(2025, 6, 21)},
		{"下禮拜天", day(2025, 6, 22)},

		// Explicit dates.
		{"2025-09-01", day(2025, 9, 1)},
		{"2024/02/29", day(2024, 2, 29)},

		// Partial dates assume the current year.
		{"09-01", day(2025, 9, 1)},
		{"9/1", day(2025, 9, 1)},
		{"12-31", day(2025, 12, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()
			got, err := ResolveDate(tt.expr, now)
			if err != nil {
				t.Fatalf("ResolveDate(%q) error: %v", tt.expr, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ResolveDate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestResolveDateInvalid(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 18, 15, 30, 0, 0, time.Local)
	for _, expr := range []string{"someday", "next month", "13-45", "下週八"} {
		if _, err := ResolveDate(expr, now); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("ResolveDate(%q) error = %v, want ErrInvalidArgument", expr, err)
		}
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Weekday
	}{
		{"sunday", time.Sunday},
		{"Mon", time.Monday},
		{"星期三", time.Wednesday},
		{"週六", time.Saturday},
		{"禮拜天", time.Sunday},
		{"五", time.Friday},
		{"0", time.Sunday},
		{"6", time.Saturday},
	}
	for _, tt := range tests {
		got, err := ParseWeekday(tt.in)
		if err != nil {
			t.Errorf("ParseWeekday(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWeekday(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseWeekday("noday"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseWeekday(noday) error = %v, want ErrInvalidArgument", err)
	}
}
