package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MinutesPerDay bounds every minute-of-day value: [0, MinutesPerDay).
const MinutesPerDay = 24 * 60

// Kinds
const (
	KindLecture  Kind = "lecture"
	KindBreak    Kind = "break"
	KindLab      Kind = "lab"
	KindTutorial Kind = "tutorial"
)

var (
	Kinds = []Kind{KindLecture, KindBreak, KindLab, KindTutorial}

	// errors
	ErrInvalidMinute = errors.New("minute of day must be within [0, 1440)")
	ErrInvalidClock  = errors.New("time must be formatted as HH:MM")
)

type Kind string

func (k Kind) Valid() bool {
	for _, kind := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Period is one scheduled block of the daily timetable.
// Start and End are minutes of day; End is exclusive.
type Period struct {
	ID       int    `json:"id" validate:"min=1"`
	Name     string `json:"name" validate:"required,notblank"`
	Start    int    `json:"start_minute" validate:"min=0,max=1440"`
	End      int    `json:"end_minute" validate:"min=0,max=1440,gtfield=Start"`
	Duration int    `json:"duration" validate:"min=1"`
	Kind     Kind   `json:"kind" validate:"oneof=lecture break lab tutorial"`
}

func (p Period) IsBreak() bool { return p.Kind == KindBreak }

func (p Period) Contains(minute int) bool {
	return p.Start <= minute && minute < p.End
}

func (p Period) String() string {
	return fmt.Sprintf("%s (%s - %s)", p.Name, FormatClock(p.Start), FormatClock(p.End))
}

// SessionState is derived from the current time and the timetable; it is never stored.
type SessionState struct {
	ActivePeriodIndex *int `json:"active_period_index"` // nil outside the schedule
	MinutesRemaining  int  `json:"minutes_remaining"`
	IsBreak           bool `json:"is_break"`
}

// Index returns the active period index and whether a period is active.
func (s SessionState) Index() (int, bool) {
	if s.ActivePeriodIndex == nil {
		return -1, false
	}
	return *s.ActivePeriodIndex, true
}

func (s SessionState) Active() bool { return s.ActivePeriodIndex != nil }

// Equal compares two states by value.
func (s SessionState) Equal(o SessionState) bool {
	i, ok := s.Index()
	j, oOk := o.Index()
	return ok == oOk && i == j && s.MinutesRemaining == o.MinutesRemaining && s.IsBreak == o.IsBreak
}

// MinuteOfDay returns the minute of day of t in its own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// CheckMinute rejects minutes of day outside [0, 1440).
func CheckMinute(minute int) error {
	if minute < 0 || minute >= MinutesPerDay {
		return errors.Wrapf(ErrInvalidMinute, "got %d", minute)
	}
	return nil
}

// ParseClock parses a 24-hour "HH:MM" time into minutes of day. "24:00" is accepted as the end of day.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, errors.Wrapf(ErrInvalidClock, "got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidClock, "got %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidClock, "got %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, errors.Wrapf(ErrInvalidClock, "got %q", s)
	}
	return h*60 + m, nil
}

// FormatClock formats minutes of day as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// FormatRemaining formats a number of minutes the way the lecture timer shows it: "45m", "1h 30m".
func FormatRemaining(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
