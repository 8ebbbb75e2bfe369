package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/presence/core/attendance"
)

func TestAttendanceRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAttendanceRepository(Open())

	recs, err := repo.QueryRecords(ctx, "CS1")
	require.NoError(t, err)
	assert.Empty(t, recs)

	first := attendance.NewRecord("CS1", attendance.StatusPresent, attendance.MethodManual, time.Now())
	second := attendance.NewRecord("CS1", attendance.StatusAbsent, attendance.MethodNone, time.Now())
	other := attendance.NewRecord("CS2", attendance.StatusPresent, attendance.MethodGeofence, time.Now())
	for _, rec := range []attendance.Record{first, second, other} {
		require.NoError(t, repo.AppendRecord(ctx, rec))
	}

	recs, err = repo.QueryRecords(ctx, "CS1")
	require.NoError(t, err)
	assert.Equal(t, []attendance.Record{first, second}, recs)

	// returned slices are copies
	recs[0].Status = attendance.StatusAbsent
	again, _ := repo.QueryRecords(ctx, "CS1")
	assert.Equal(t, attendance.StatusPresent, again[0].Status)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, repo.AppendRecord(cancelled, first))
	_, err = repo.QueryRecords(cancelled, "CS1")
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	repo := NewAttendanceRepository(Open())
	require.NoError(t, Seed(ctx, repo))

	recs, err := repo.QueryRecords(ctx, "CS21012")
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, "2024-01-12", recs[0].Date)
	assert.Equal(t, attendance.MethodNone, recs[1].Method)
	assert.False(t, recs[1].Timestamp.Valid)
	assert.True(t, recs[3].Timestamp.Valid)
	assert.Equal(t, 9, recs[3].Timestamp.Time.Hour())
}
