package timetable

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/tests"
)

func TestResolve_everyMinuteOfDay(t *testing.T) {
	tt := Default()
	periods := tt.Periods()

	for m := 0; m < MinutesPerDay; m++ {
		state := tt.Resolve(m)
		i, ok := state.Index()
		if !ok {
			assert.Zero(t, state.MinutesRemaining, "minute %d", m)
			assert.False(t, state.IsBreak, "minute %d", m)
			for _, p := range periods {
				assert.False(t, p.Contains(m), "minute %d falls in %s but resolved to none", m, p)
			}
			continue
		}
		p := periods[i]
		assert.True(t, p.Start <= m && m < p.End, "minute %d resolved to %s", m, p)
		assert.Equal(t, p.End-m, state.MinutesRemaining)
		assert.Equal(t, p.Kind == KindBreak, state.IsBreak)

		// exactly one period matches
		var matches int
		for _, other := range periods {
			if other.Contains(m) {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "minute %d", m)
	}
}

func TestDefault_isContiguous(t *testing.T) {
	periods := Default().Periods()
	for i := 1; i < len(periods); i++ {
		assert.Equal(t, periods[i-1].End, periods[i].Start, "period %d", i)
	}
	for _, p := range periods {
		assert.Equal(t, p.End-p.Start, p.Duration, p.String())
	}

	validate, _ := testutil.NewValidator()
	_, err := New(validate, periods)
	assert.NoError(t, err)
}

func TestResolve_boundariesMatchLaterPeriod(t *testing.T) {
	tt := Default()
	periods := tt.Periods()
	for i := 1; i < len(periods); i++ {
		boundary := periods[i].Start
		idx, ok := tt.Resolve(boundary).Index()
		require.True(t, ok)
		assert.Equal(t, i, idx, "boundary %s", FormatClock(boundary))

		idx, ok = tt.Resolve(boundary - 1).Index()
		require.True(t, ok)
		assert.Equal(t, i-1, idx)
	}
}

func TestTimetable_scenario(t *testing.T) {
	validate, _ := testutil.NewValidator()
	tt, err := New(validate, []Period{
		{ID: 1, Name: "Lecture", Start: 9 * 60, End: 10*60 + 30, Duration: 90, Kind: KindLecture},
		{ID: 2, Name: "Break", Start: 10*60 + 30, End: 10*60 + 45, Duration: 15, Kind: KindBreak},
	})
	require.NoError(t, err)

	at10, err := tt.At(600)
	require.NoError(t, err)
	idx, ok := at10.Index()
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 30, at10.MinutesRemaining)
	assert.False(t, at10.IsBreak)

	at1040, err := tt.At(640)
	require.NoError(t, err)
	idx, ok = at1040.Index()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 5, at1040.MinutesRemaining)
	assert.True(t, at1040.IsBreak)

	at1140, err := tt.At(700)
	require.NoError(t, err)
	assert.False(t, at1140.Active())
	assert.Zero(t, at1140.MinutesRemaining)
	assert.False(t, at1140.IsBreak)

	next, ok := tt.Next(at10)
	assert.True(t, ok)
	assert.Equal(t, "Break", next.Name)
	_, ok = tt.Next(at1040)
	assert.False(t, ok)
}

func TestTimetable_At_rejectsOutOfRange(t *testing.T) {
	tt := Default()
	for _, m := range []int{-1, MinutesPerDay, MinutesPerDay + 5} {
		_, err := tt.At(m)
		assert.True(t, errors.Is(err, ErrInvalidMinute), "minute %d: %v", m, err)
	}
	_, err := tt.At(MinutesPerDay - 1)
	assert.NoError(t, err)
}

func TestNew_rejectsInvalidTimetables(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		name    string
		periods []Period
		field   string
	}{
		{name: "empty", field: "periods"},
		{
			name: "gap",
			periods: []Period{
				{ID: 1, Name: "A", Start: 540, End: 600, Duration: 60, Kind: KindLecture},
				{ID: 2, Name: "B", Start: 610, End: 620, Duration: 10, Kind: KindBreak},
			},
			field: "periods[1].start_minute",
		},
		{
			name: "overlap",
			periods: []Period{
				{ID: 1, Name: "A", Start: 540, End: 600, Duration: 60, Kind: KindLecture},
				{ID: 2, Name: "B", Start: 590, End: 620, Duration: 30, Kind: KindBreak},
			},
			field: "periods[1].start_minute",
		},
		{
			name:    "wrong duration",
			periods: []Period{{ID: 1, Name: "A", Start: 540, End: 600, Duration: 45, Kind: KindLecture}},
			field:   "periods[0].duration",
		},
		{
			name:    "unknown kind",
			periods: []Period{{ID: 1, Name: "A", Start: 540, End: 600, Duration: 60, Kind: "seminar"}},
			field:   "periods[0].kind",
		},
		{
			name:    "ends before start",
			periods: []Period{{ID: 1, Name: "A", Start: 600, End: 540, Duration: 60, Kind: KindLecture}},
			field:   "periods[0].end_minute",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(validate, tt.periods)
			require.Error(t, err)
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "%T", err)
			var fields []string
			for _, f := range vErr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestFromConfig(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tt, err := FromConfig(validate, []core.PeriodConfig{
		{Name: " Morning Lecture ", Start: "08:00", End: "09:00", Kind: "Lecture"},
		{Name: "Tea", Start: "09:00", End: "09:10", Kind: "break"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, tt.Len())
	first, _ := tt.Period(0)
	assert.Equal(t, Period{ID: 1, Name: "Morning Lecture", Start: 480, End: 540, Duration: 60, Kind: KindLecture}, first)

	_, err = FromConfig(validate, []core.PeriodConfig{{Name: "X", Start: "8am", End: "09:00", Kind: "lecture"}})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "timetable[0].start", vErr.Fields[0].Field)
}

func TestProgress(t *testing.T) {
	p := Period{ID: 1, Name: "A", Start: 540, End: 630, Duration: 90, Kind: KindLecture}
	tests := []struct {
		remaining   int
		wantFrac    float64
		wantPercent int
	}{
		{remaining: 90, wantFrac: 0, wantPercent: 0},
		{remaining: 45, wantFrac: 0.5, wantPercent: 50},
		{remaining: 30, wantFrac: 60.0 / 90.0, wantPercent: 67},
		{remaining: 0, wantFrac: 1, wantPercent: 100},
		{remaining: 120, wantFrac: 0, wantPercent: 0}, // clamped
		{remaining: -10, wantFrac: 1, wantPercent: 100},
	}
	for _, tt := range tests {
		state := SessionState{MinutesRemaining: tt.remaining}
		assert.InDelta(t, tt.wantFrac, Progress(p, state), 1e-9, "remaining %d", tt.remaining)
		assert.Equal(t, tt.wantPercent, ProgressPercent(p, state), "remaining %d", tt.remaining)
	}
	assert.Zero(t, Progress(Period{}, SessionState{}))
}

func TestClockHelpers(t *testing.T) {
	for s, want := range map[string]int{"00:00": 0, "09:05": 545, "13:15": 795, "24:00": 1440} {
		got, err := ParseClock(s)
		assert.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	for _, s := range []string{"", "9", "9:5", "25:00", "24:01", "12:60", "ab:cd"} {
		_, err := ParseClock(s)
		assert.True(t, errors.Is(err, ErrInvalidClock), s)
	}

	assert.Equal(t, "09:05", FormatClock(545))
	assert.Equal(t, "45m", FormatRemaining(45))
	assert.Equal(t, "1h 30m", FormatRemaining(90))
	assert.Equal(t, 10*60+40, MinuteOfDay(time.Date(2024, 1, 15, 10, 40, 59, 0, time.UTC)))
}
