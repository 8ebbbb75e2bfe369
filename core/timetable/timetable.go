package timetable

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/presence/core"
)

// Timetable is an immutable, ordered sequence of contiguous periods covering one day.
type Timetable struct {
	periods []Period
}

// New validates periods and builds a Timetable from them.
// Every period must pass field validation, last exactly End-Start minutes,
// and start where the previous one ended.
func New(validate *validator.Validate, periods []Period) (Timetable, error) {
	if len(periods) == 0 {
		return Timetable{}, core.NewFieldError("periods", "timetable has no periods")
	}

	var flds []core.FieldError
	for i, p := range periods {
		if err := validate.Struct(p); err != nil {
			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				return Timetable{}, errors.Wrap(err, "validating period")
			}
			for _, vErr := range vErrs {
				flds = append(flds, core.FieldError{
					Field: fmt.Sprintf("periods[%d].%s", i, vErr.Field()),
					Error: fmt.Sprintf("failed on the %q rule", vErr.Tag()),
				})
			}
			continue
		}
		if p.Duration != p.End-p.Start {
			flds = append(flds, core.FieldError{
				Field: fmt.Sprintf("periods[%d].duration", i),
				Error: fmt.Sprintf("duration %d does not match %s - %s", p.Duration, FormatClock(p.Start), FormatClock(p.End)),
			})
		}
		if i > 0 && p.Start != periods[i-1].End {
			flds = append(flds, core.FieldError{
				Field: fmt.Sprintf("periods[%d].start_minute", i),
				Error: fmt.Sprintf("must start at %s where the previous period ends", FormatClock(periods[i-1].End)),
			})
		}
	}
	if len(flds) > 0 {
		return Timetable{}, core.NewValidationError(errors.New("invalid timetable"), flds...)
	}

	tt := Timetable{periods: make([]Period, len(periods))}
	copy(tt.periods, periods)
	return tt, nil
}

// FromConfig builds a Timetable from configured periods, numbering them from 1.
func FromConfig(validate *validator.Validate, confs []core.PeriodConfig) (Timetable, error) {
	periods := make([]Period, 0, len(confs))
	var flds []core.FieldError
	for i, pc := range confs {
		start, err := ParseClock(pc.Start)
		if err != nil {
			flds = append(flds, core.FieldError{Field: fmt.Sprintf("timetable[%d].start", i), Error: err.Error()})
		}
		end, err := ParseClock(pc.End)
		if err != nil {
			flds = append(flds, core.FieldError{Field: fmt.Sprintf("timetable[%d].end", i), Error: err.Error()})
		}
		periods = append(periods, Period{
			ID:       i + 1,
			Name:     core.CleanString(pc.Name),
			Start:    start,
			End:      end,
			Duration: end - start,
			Kind:     Kind(core.CleanString(pc.Kind, true /* lower */)),
		})
	}
	if len(flds) > 0 {
		return Timetable{}, core.NewValidationError(errors.New("invalid timetable"), flds...)
	}
	return New(validate, periods)
}

// Periods returns a copy of the timetable's periods.
func (tt Timetable) Periods() []Period {
	periods := make([]Period, len(tt.periods))
	copy(periods, tt.periods)
	return periods
}

func (tt Timetable) Len() int { return len(tt.periods) }

// Period returns the period at index i.
func (tt Timetable) Period(i int) (Period, bool) {
	if i < 0 || i >= len(tt.periods) {
		return Period{}, false
	}
	return tt.periods[i], true
}

// Resolve is Resolve over the timetable's periods.
func (tt Timetable) Resolve(minute int) SessionState {
	return Resolve(tt.periods, minute)
}

// At rejects out-of-range minutes before resolving them.
func (tt Timetable) At(minute int) (SessionState, error) {
	if err := CheckMinute(minute); err != nil {
		return SessionState{}, err
	}
	return Resolve(tt.periods, minute), nil
}

// Current returns the active period of state.
func (tt Timetable) Current(state SessionState) (Period, bool) {
	i, ok := state.Index()
	if !ok {
		return Period{}, false
	}
	return tt.Period(i)
}

// Next returns the period following the active period of state.
func (tt Timetable) Next(state SessionState) (Period, bool) {
	i, ok := state.Index()
	if !ok {
		return Period{}, false
	}
	return tt.Period(i + 1)
}

// Resolve finds the unique period containing minute with a linear scan over
// periods (ordered by start, non-overlapping). Outside every period, the
// returned state has no active index, no remaining minutes and is not a break.
func Resolve(periods []Period, minute int) SessionState {
	for i, p := range periods {
		if p.Contains(minute) {
			idx := i
			return SessionState{
				ActivePeriodIndex: &idx,
				MinutesRemaining:  p.End - minute,
				IsBreak:           p.IsBreak(),
			}
		}
	}
	return SessionState{}
}

// Progress is the elapsed fraction of period, clamped to [0, 1].
func Progress(period Period, state SessionState) float64 {
	if period.Duration <= 0 {
		return 0
	}
	frac := float64(period.Duration-state.MinutesRemaining) / float64(period.Duration)
	return math.Max(0, math.Min(1, frac))
}

// ProgressPercent is Progress rounded to a whole percentage.
func ProgressPercent(period Period, state SessionState) int {
	return int(math.Round(Progress(period, state) * 100))
}
