package echoapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/presence/core/attendance"
	"github.com/trezcool/presence/core/capture"
	"github.com/trezcool/presence/core/monitor"
	"github.com/trezcool/presence/core/user"
)

const (
	adminID   = 1
	teacherID = 2
	parentID  = 3
	studentID = 4
)

func Test_userApi(t *testing.T) {
	app := setup(t)
	studentToken := app.token(t, studentID)

	tests := []httpTest{
		{
			name:     "login: empty body",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"email":    "this field is required",
				"password": "this field is required",
				"role":     "this field is required",
			}),
		},
		{
			name:     "login: unknown role",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"email": "x@college.edu", "password": "pwd", "role": "dean"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": "role must be one of admin, teacher, parent, student"}),
		},
		{
			name:     "me: no token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "me: student",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, MeResponse{
				User:      mustUser(t, app, studentID),
				Dashboard: mustDashboard(t, user.RoleStudent),
			}),
		},
		{
			name:     "students: forbidden to students",
			method:   http.MethodGet,
			path:     "/v1/users/students",
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "students: teacher",
			method:   http.MethodGet,
			path:     "/v1/users/students",
			token:    app.token(t, teacherID),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []user.User{mustUser(t, app, studentID)}),
		},
	}
	runHTTPTests(t, app, tests)
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	rec := app.do(http.MethodPost, "/v1/users/login", "",
		[]byte(`{"email": " Parent@Email.com ", "password": "anything", "role": "parent"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)

	claims, err := app.auth.parseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, parentID, claims.UserID)
	assert.Equal(t, user.RoleParent, claims.Role)

	rec = app.do(http.MethodGet, "/v1/users/me", resp.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var me MeResponse
	decode(t, rec, &me)
	assert.Equal(t, "Parent Dashboard", me.Dashboard.Title)
}

func Test_sessionApi(t *testing.T) {
	app := setup(t)
	token := app.token(t, studentID)

	t.Run("now", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/session", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp SessionResponse
		decode(t, rec, &resp)
		assert.Equal(t, "13:30", resp.Time)
		require.NotNil(t, resp.Period)
		assert.Equal(t, "Lecture 3 - Database Systems", resp.Period.Name)
		require.NotNil(t, resp.NextPeriod)
		assert.Equal(t, "Break", resp.NextPeriod.Name)
		assert.Equal(t, 75, resp.State.MinutesRemaining)
		assert.Equal(t, 17, resp.ProgressPercent)
		assert.Equal(t, "1h 15m", resp.Remaining)
	})

	t.Run("at lunch", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/session?at=12:15", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp SessionResponse
		decode(t, rec, &resp)
		require.NotNil(t, resp.Period)
		assert.Equal(t, "Lunch Break", resp.Period.Name)
		assert.True(t, resp.State.IsBreak)
		assert.Equal(t, 60, resp.State.MinutesRemaining)
	})

	t.Run("after hours", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/session?at=19:00", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp SessionResponse
		decode(t, rec, &resp)
		assert.Nil(t, resp.State.ActivePeriodIndex)
		assert.Nil(t, resp.Period)
		assert.Nil(t, resp.NextPeriod)
		assert.Equal(t, "", resp.Remaining)
	})

	tests := []httpTest{
		{
			name:     "bad clock",
			method:   http.MethodGet,
			path:     "/v1/session?at=9:5",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"at": "at must be a 24-hour time formatted as HH:MM"}),
		},
		{
			name:     "end of day",
			method:   http.MethodGet,
			path:     "/v1/session?at=24:00",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "minute of day must be within [0, 1440)"}),
		},
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/v1/timetable",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "timetable",
			method:   http.MethodGet,
			path:     "/v1/timetable",
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, app.deps.Clock.Timetable().Periods()),
		},
	}
	runHTTPTests(t, app, tests)
}

func Test_gateApi(t *testing.T) {
	app := setup(t)
	teacherToken := app.token(t, teacherID)
	studentToken := app.token(t, studentID)

	tests := []httpTest{
		{
			name:     "closed by default",
			method:   http.MethodGet,
			path:     "/v1/self-attendance",
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: []byte(`{"enabled": false, "auto_disable_at": null, "remaining_seconds": 0}`),
		},
		{
			name:     "students cannot write",
			method:   http.MethodPut,
			path:     "/v1/self-attendance",
			body:     []byte(`{"enabled": true}`),
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "enabled is required",
			method:   http.MethodPut,
			path:     "/v1/self-attendance",
			body:     []byte(`{}`),
			token:    teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"enabled": "this field is required"}),
		},
		{
			name:     "teacher opens without countdown",
			method:   http.MethodPut,
			path:     "/v1/self-attendance",
			body:     []byte(`{"enabled": true, "auto_disable_minutes": 0}`),
			token:    teacherToken,
			wantCode: http.StatusOK,
			wantData: []byte(`{"enabled": true, "auto_disable_at": null, "remaining_seconds": 0}`),
		},
		{
			name:     "students see it open",
			method:   http.MethodGet,
			path:     "/v1/self-attendance",
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: []byte(`{"enabled": true, "auto_disable_at": null, "remaining_seconds": 0}`),
		},
	}
	runHTTPTests(t, app, tests)

	t.Run("default countdown", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/self-attendance", teacherToken, []byte(`{"enabled": true}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp GateResponse
		decode(t, rec, &resp)
		assert.True(t, resp.Enabled)
		require.NotNil(t, resp.AutoDisableAt)
		assert.InDelta(t, 30*60, resp.RemainingSeconds, 2)
	})

	t.Run("teacher closes", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/self-attendance", teacherToken, []byte(`{"enabled": false}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.False(t, app.deps.Gate.IsEnabled())
		assert.Zero(t, app.deps.Gate.Remaining())
	})
}

func Test_captureApi(t *testing.T) {
	app := setup(t)
	studentToken := app.token(t, studentID)

	tests := []httpTest{
		{
			name:     "students only",
			method:   http.MethodPost,
			path:     "/v1/capture/start",
			token:    app.token(t, teacherID),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "recognize before start",
			method:   http.MethodPost,
			path:     "/v1/capture/recognize",
			token:    studentToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: capture.ErrGateClosed.Error()}),
		},
		{
			name:     "reset from idle",
			method:   http.MethodPost,
			path:     "/v1/capture/reset",
			token:    studentToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: capture.ErrInvalidTransition.Error()}),
		},
		{
			name:     "no still yet",
			method:   http.MethodGet,
			path:     "/v1/capture/still",
			token:    studentToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	runHTTPTests(t, app, tests)

	var st capture.Status
	rec := app.do(http.MethodPost, "/v1/capture/start", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &st)
	assert.Equal(t, capture.StateCameraActive, st.State)
	assert.True(t, st.CameraActive)

	// gate closed
	rec = app.do(http.MethodPost, "/v1/capture/recognize?wait=true", studentToken)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: capture.ErrGateClosed.Error()}),
	}, rec)

	app.deps.Gate.SetEnabled(true)
	rec = app.do(http.MethodPost, "/v1/capture/recognize?wait=true", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &st)
	assert.Equal(t, capture.StateSucceeded, st.State)
	assert.Equal(t, 100, st.Progress)

	rec = app.do(http.MethodGet, "/v1/capture/still", studentToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())

	history, err := app.deps.Attendance.History(context.Background(), studentRollNo)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, attendance.MethodFacialRecognition, history[0].Method)
	assert.Len(t, app.mailer.Messages(), 1)

	rec = app.do(http.MethodPost, "/v1/capture/reset", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &st)
	assert.Equal(t, capture.StateCameraActive, st.State)

	rec = app.do(http.MethodPost, "/v1/capture/recognize", studentToken)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Eventually(t, func() bool {
		return app.deps.Captures.Status(studentRollNo).State == capture.StateSucceeded
	}, time.Second, 5*time.Millisecond)

	rec = app.do(http.MethodPost, "/v1/capture/stop", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &st)
	assert.Equal(t, capture.StateIdle, st.State)
	assert.False(t, app.cameras.Get(studentRollNo).Held())
}

func Test_captureApi_stopWhileRecognizing(t *testing.T) {
	app := setup(t, func(opts *capture.Options) { opts.StageDelay = 200 * time.Millisecond })
	studentToken := app.token(t, studentID)
	app.deps.Gate.SetEnabled(true)

	rec := app.do(http.MethodPost, "/v1/capture/start", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- app.do(http.MethodPost, "/v1/capture/recognize?wait=true", studentToken)
	}()
	require.Eventually(t, func() bool {
		return app.deps.Captures.Status(studentRollNo).State == capture.StateRecognizing
	}, time.Second, 5*time.Millisecond)

	rec = app.do(http.MethodPost, "/v1/capture/stop", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	select {
	case rec = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recognize did not return after stop")
	}
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: capture.ErrAborted.Error()}),
	}, rec)
	for _, line := range app.logger.Lines() {
		assert.NotContains(t, line, "ERROR")
	}

	history, err := app.deps.Attendance.History(context.Background(), studentRollNo)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func Test_captureApi_cameraUnavailable(t *testing.T) {
	app := setup(t)
	app.cameras.Get(studentRollNo).Deny(capture.ErrPermissionDenied)

	rec := app.do(http.MethodPost, "/v1/capture/start", app.token(t, studentID))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusServiceUnavailable,
		wantData: marchallObj(t, httpErr{Error: capture.UnavailableMessage}),
	}, rec)
	assert.Equal(t, capture.StateIdle, app.deps.Captures.Status(studentRollNo).State)
}

func Test_attendanceApi(t *testing.T) {
	app := setup(t)
	teacherToken := app.token(t, teacherID)
	parentToken := app.token(t, parentID)
	studentToken := app.token(t, studentID)
	path := "/v1/attendance/" + studentRollNo

	tests := []httpTest{
		{
			name:     "unknown student",
			method:   http.MethodGet,
			path:     "/v1/attendance/CS99999",
			token:    teacherToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "parents only see their children",
			method:   http.MethodGet,
			path:     "/v1/attendance/CS99999",
			token:    parentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "students cannot mark",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"status": "present"}`),
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "invalid status",
			method:   http.MethodPost,
			path:     path,
			body:     []byte(`{"status": "late"}`),
			token:    teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"status": "status is not one of the allowed values"}),
		},
		{
			name:     "invalid recent",
			method:   http.MethodGet,
			path:     path + "?recent=0",
			token:    parentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"recent": "recent must be a positive integer"}),
		},
	}
	runHTTPTests(t, app, tests)

	for _, status := range []string{"present", "absent", "Present"} {
		rec := app.do(http.MethodPost, path, teacherToken, []byte(`{"status": "`+status+`"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var r attendance.Record
		decode(t, rec, &r)
		assert.Equal(t, attendance.MethodManual, r.Method)
		assert.True(t, r.Timestamp.Valid)
	}

	for _, token := range []string{parentToken, studentToken, teacherToken, app.token(t, adminID)} {
		rec := app.do(http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp HistoryResponse
		decode(t, rec, &resp)
		assert.Equal(t, studentRollNo, resp.Student.RollNo)
		require.Len(t, resp.Records, 3)
		assert.Equal(t, attendance.StatusPresent, resp.Records[0].Status) // newest first
		assert.Equal(t, attendance.StatusAbsent, resp.Records[1].Status)
		assert.Equal(t, attendance.Summary{
			Subject:          studentRollNo,
			Present:          2,
			Absent:           1,
			Total:            3,
			Percentage:       67,
			RecentPercentage: 67,
		}, resp.Summary)
	}
}

func Test_monitorApi(t *testing.T) {
	app := setup(t)
	studentToken := app.token(t, studentID)

	tests := []httpTest{
		{
			name:     "geofence: staff only",
			method:   http.MethodGet,
			path:     "/v1/monitor/geofence",
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "geofence",
			method:   http.MethodGet,
			path:     "/v1/monitor/geofence",
			token:    app.token(t, adminID),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, app.deps.Geofence.Snapshot()),
		},
		{
			name:     "behavior",
			method:   http.MethodGet,
			path:     "/v1/monitor/behavior",
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, app.deps.Behavior.Snapshot()),
		},
		{
			name:     "presence: not started",
			method:   http.MethodGet,
			path:     "/v1/monitor/presence",
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, monitor.PresenceSnapshot{Subject: studentRollNo, TimeInside: "0h 0m"}),
		},
		{
			name:     "presence: students only",
			method:   http.MethodPost,
			path:     "/v1/monitor/presence/check",
			token:    app.token(t, parentID),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	runHTTPTests(t, app, tests)

	rec := app.do(http.MethodPost, "/v1/monitor/presence/check", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var snap monitor.PresenceSnapshot
	decode(t, rec, &snap)
	assert.True(t, snap.InGeofence)
	assert.True(t, snap.Started)

	app.deps.Presence.Step()
	rec = app.do(http.MethodPost, "/v1/monitor/presence/leave", studentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &snap)
	assert.False(t, snap.InGeofence)
	assert.Equal(t, 1, snap.Minutes)
	assert.Equal(t, "0h 1m", snap.TimeInside)

	history, err := app.deps.Attendance.History(context.Background(), studentRollNo)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, attendance.MethodGeofence, history[0].Method)
}

func mustUser(t *testing.T, app *testApp, id int) user.User {
	usr, err := app.deps.Users.GetByID(id)
	require.NoError(t, err)
	return usr
}

func mustDashboard(t *testing.T, role user.Role) user.Dashboard {
	dash, err := user.DashboardFor(role)
	require.NoError(t, err)
	return dash
}
