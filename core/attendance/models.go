package attendance

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

const DateLayout = "2006-01-02"

// Statuses
const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Methods
const (
	MethodNone              Method = ""
	MethodFacialRecognition Method = "facial-recognition"
	MethodGeofence          Method = "geofence"
	MethodManual            Method = "manual"
)

var (
	Statuses = []Status{StatusPresent, StatusAbsent}
	Methods  = []Method{MethodFacialRecognition, MethodGeofence, MethodManual}

	// errors
	ErrInvalidStatus = errors.New("status must be one of present, absent")
	ErrInvalidMethod = errors.New("method must be one of facial-recognition, geofence, manual")
	ErrNoSubject     = errors.New("record has no subject")
)

type Status string

func (s Status) Valid() bool { return s == StatusPresent || s == StatusAbsent }

// Method is how a record was taken. The empty Method encodes as JSON null.
type Method string

func (m Method) Valid() bool {
	if m == MethodNone {
		return true
	}
	for _, method := range Methods {
		if m == method {
			return true
		}
	}
	return false
}

func (m Method) MarshalJSON() ([]byte, error) {
	if m == MethodNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(m))
}

func (m *Method) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = MethodNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = Method(s)
	return nil
}

// Record is one immutable entry of a subject's attendance history.
// The subject is the student's roll number.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Subject   string    `json:"subject"`
	Date      string    `json:"date"`
	Status    Status    `json:"status"`
	Method    Method    `json:"method"`
	Timestamp null.Time `json:"timestamp"`
}

// NewRecord builds a record taken at t. Absent records carry no method or timestamp.
func NewRecord(subject string, status Status, method Method, t time.Time) Record {
	rec := Record{
		ID:      uuid.New(),
		Subject: subject,
		Date:    t.Format(DateLayout),
		Status:  status,
		Method:  method,
	}
	if status == StatusPresent {
		rec.Timestamp = null.TimeFrom(t)
	}
	return rec
}

func (r Record) Validate() error {
	if r.Subject == "" {
		return ErrNoSubject
	}
	if !r.Status.Valid() {
		return errors.Wrapf(ErrInvalidStatus, "got %q", r.Status)
	}
	if !r.Method.Valid() {
		return errors.Wrapf(ErrInvalidMethod, "got %q", r.Method)
	}
	return nil
}

// Summary aggregates a subject's history the way the dashboards show it.
type Summary struct {
	Subject          string `json:"subject"`
	Present          int    `json:"present"`
	Absent           int    `json:"absent"`
	Total            int    `json:"total"`
	Percentage       int    `json:"percentage"`
	RecentPercentage int    `json:"recent_percentage"`
}

// MarkRecord is the body of a manual marking request.
type MarkRecord struct {
	Status string `json:"status" validate:"required,oneof=present absent"`
}

// NotificationData feeds the attendance_marked email template.
type NotificationData struct {
	StudentName string
	RollNo      string
	Status      string
	Date        string
	Time        string
	Method      string
}
