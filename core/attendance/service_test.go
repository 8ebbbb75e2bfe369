package attendance_test

import (
	"context"
	"encoding/json"
	"net/mail"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/attendance"
	"github.com/trezcool/presence/storage/database/inmem"
	"github.com/trezcool/presence/tests"
)

type guardians map[string][]mail.Address

func (g guardians) GuardiansOf(_ context.Context, rollNo string) (string, []mail.Address, error) {
	addrs, ok := g[rollNo]
	if !ok {
		return "", nil, errors.New("unknown student")
	}
	return "Alex Kumar", addrs, nil
}

func newService(t *testing.T) (*attendance.Service, *testutil.Mailer) {
	t.Helper()
	mailer := &testutil.Mailer{}
	g := guardians{"CS21012": {{Name: "Parent User", Address: "parent@email.com"}}}
	svc := attendance.NewService(inmemdb.NewAttendanceRepository(inmemdb.Open()), g, mailer, &testutil.Logger{})
	return svc, mailer
}

func TestService_AppendAndHistory(t *testing.T) {
	ctx := context.Background()
	svc, mailer := newService(t)

	var published []attendance.Record
	svc.Subscribe(func(rec attendance.Record) { published = append(published, rec) })

	older := attendance.NewRecord("CS21012", attendance.StatusAbsent, attendance.MethodNone, time.Date(2024, 1, 13, 9, 0, 0, 0, time.UTC))
	newer := attendance.NewRecord("CS21012", attendance.StatusPresent, attendance.MethodFacialRecognition, time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC))
	require.NoError(t, svc.Append(ctx, older))
	require.NoError(t, svc.Append(ctx, newer))

	history, err := svc.History(ctx, " CS21012 ")
	require.NoError(t, err)
	assert.Equal(t, []attendance.Record{newer, older}, history)
	assert.Equal(t, []attendance.Record{older, newer}, published)

	msgs := mailer.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "parent@email.com", msgs[1].To[0].Address)
	assert.Equal(t, "attendance_marked", msgs[1].TemplateName)
	data, ok := msgs[1].TemplateData.(attendance.NotificationData)
	require.True(t, ok)
	assert.Equal(t, "09:15", data.Time)
	assert.Equal(t, "facial recognition", data.Method)
	assert.Equal(t, "2024-01-15", data.Date)
	assert.Equal(t, "attendance", msgs[1].Category)
	assert.Equal(t, "CS21012", msgs[1].Tags["roll_no"])
	assert.Equal(t, "present", msgs[1].Tags["status"])
}

func TestService_Append_rejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	svc, mailer := newService(t)

	tests := []struct {
		name string
		rec  attendance.Record
		err  error
	}{
		{name: "no subject", rec: attendance.Record{Status: attendance.StatusPresent}, err: attendance.ErrNoSubject},
		{name: "bad status", rec: attendance.Record{Subject: "CS1", Status: "late"}, err: attendance.ErrInvalidStatus},
		{name: "bad method", rec: attendance.Record{Subject: "CS1", Status: attendance.StatusPresent, Method: "sms"}, err: attendance.ErrInvalidMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Append(ctx, tt.rec)
			assert.True(t, errors.Is(err, tt.err), "%v", err)
		})
	}
	assert.Empty(t, mailer.Messages())
}

func TestService_unknownGuardiansSkipsNotification(t *testing.T) {
	ctx := context.Background()
	svc, mailer := newService(t)

	_, err := svc.MarkManual(ctx, "CS99999", attendance.StatusPresent)
	require.NoError(t, err)
	assert.Empty(t, mailer.Messages())
}

func TestService_MarkManual(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	rec, err := svc.MarkManual(ctx, "CS21012", attendance.StatusAbsent)
	require.NoError(t, err)
	assert.Equal(t, attendance.MethodManual, rec.Method)
	assert.Equal(t, attendance.StatusAbsent, rec.Status)
	assert.True(t, rec.Timestamp.Valid)

	_, err = svc.MarkManual(ctx, "CS21012", "late")
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "status", vErr.Fields[0].Field)

	history, _ := svc.History(ctx, "CS21012")
	assert.Len(t, history, 1)
}

func TestService_Summary(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	empty, err := svc.Summary(ctx, "CS21012", 0)
	require.NoError(t, err)
	assert.Equal(t, attendance.Summary{Subject: "CS21012"}, empty)

	// same history as the parent dashboard, oldest first: 6 present out of 7,
	// the absence being the third most recent day
	statuses := []attendance.Status{"present", "present", "present", "present", "absent", "present", "present"}
	for i, st := range statuses {
		at := time.Date(2024, 1, 9+i, 9, 0, 0, 0, time.UTC)
		require.NoError(t, svc.Append(ctx, attendance.NewRecord("CS21012", st, attendance.MethodManual, at)))
	}

	sum, err := svc.Summary(ctx, "CS21012", 0)
	require.NoError(t, err)
	assert.Equal(t, attendance.Summary{
		Subject:          "CS21012",
		Present:          6,
		Absent:           1,
		Total:            7,
		Percentage:       86,
		RecentPercentage: 80,
	}, sum)

	sum, _ = svc.Summary(ctx, "CS21012", 20)
	assert.Equal(t, 86, sum.RecentPercentage)
	sum, _ = svc.Summary(ctx, "CS21012", 2)
	assert.Equal(t, 100, sum.RecentPercentage)
}

func TestRecord_JSON(t *testing.T) {
	rec := attendance.NewRecord("CS1", attendance.StatusAbsent, attendance.MethodNone, time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC))
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"method":null`)
	assert.Contains(t, string(b), `"timestamp":null`)
	assert.Contains(t, string(b), `"date":"2024-01-13"`)

	var decoded attendance.Record
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, attendance.MethodNone, decoded.Method)
}
