package attendance

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/presence/core"
)

// DefaultRecent is how many of the latest records make up the recent trend.
const DefaultRecent = 5

type (
	Repository interface {
		// AppendRecord stores rec at the end of its subject's history.
		AppendRecord(ctx context.Context, rec Record) error
		// QueryRecords returns the subject's history in insertion order.
		QueryRecords(ctx context.Context, subject string) ([]Record, error)
	}

	// Guardians finds who must be notified about a student's attendance.
	Guardians interface {
		GuardiansOf(ctx context.Context, rollNo string) (studentName string, addrs []mail.Address, err error)
	}

	Service struct {
		repo      Repository
		guardians Guardians
		mailer    core.EmailService
		logger    core.Logger
		now       func() time.Time

		subsMu  sync.Mutex
		subs    map[int]func(Record)
		nextSub int
	}
)

// NewService builds the attendance service. guardians and mailer may be nil,
// in which case no notification is sent.
func NewService(repo Repository, guardians Guardians, mailer core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:      repo,
		guardians: guardians,
		mailer:    mailer,
		logger:    logger,
		now:       time.Now,
		subs:      make(map[int]func(Record)),
	}
}

// Append validates rec and appends it to its subject's history.
// Subscribers and guardians are notified once the record is stored.
func (svc *Service) Append(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := svc.repo.AppendRecord(ctx, rec); err != nil {
		return errors.Wrap(err, "appending attendance record")
	}

	svc.publish(rec)
	svc.notifyGuardians(ctx, rec)
	return nil
}

// History returns the subject's records, newest first.
func (svc *Service) History(ctx context.Context, subject string) ([]Record, error) {
	recs, err := svc.repo.QueryRecords(ctx, core.CleanString(subject))
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	history := make([]Record, len(recs))
	for i, rec := range recs {
		history[len(recs)-1-i] = rec
	}
	return history, nil
}

// MarkManual appends a record taken by a teacher.
func (svc *Service) MarkManual(ctx context.Context, subject string, status Status) (Record, error) {
	subject = core.CleanString(subject)
	if !status.Valid() {
		return Record{}, core.NewValidationError(
			errors.Wrapf(ErrInvalidStatus, "got %q", status),
			core.FieldError{Field: "status", Error: ErrInvalidStatus.Error()},
		)
	}
	now := svc.now()
	rec := NewRecord(subject, status, MethodManual, now)
	rec.Timestamp = null.TimeFrom(now) // manual marks are timestamped even when absent
	if err := svc.Append(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Summary counts the subject's history. Percentages are rounded to the nearest
// integer; the recent one covers the latest `recent` records.
func (svc *Service) Summary(ctx context.Context, subject string, recent int) (Summary, error) {
	if recent <= 0 {
		recent = DefaultRecent
	}
	history, err := svc.History(ctx, subject)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Subject: core.CleanString(subject), Total: len(history)}
	var recentPresent int
	for i, rec := range history {
		if rec.Status == StatusPresent {
			sum.Present++
			if i < recent {
				recentPresent++
			}
		}
	}
	sum.Absent = sum.Total - sum.Present
	sum.Percentage = percentage(sum.Present, sum.Total)
	if recent > sum.Total {
		recent = sum.Total
	}
	sum.RecentPercentage = percentage(recentPresent, recent)
	return sum, nil
}

func percentage(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}

// Subscribe registers fn for every appended record.
func (svc *Service) Subscribe(fn func(Record)) (unsubscribe func()) {
	svc.subsMu.Lock()
	defer svc.subsMu.Unlock()
	id := svc.nextSub
	svc.nextSub++
	svc.subs[id] = fn
	return func() {
		svc.subsMu.Lock()
		defer svc.subsMu.Unlock()
		delete(svc.subs, id)
	}
}

func (svc *Service) publish(rec Record) {
	svc.subsMu.Lock()
	fns := make([]func(Record), 0, len(svc.subs))
	for _, fn := range svc.subs {
		fns = append(fns, fn)
	}
	svc.subsMu.Unlock()

	for _, fn := range fns {
		fn(rec)
	}
}

func (svc *Service) notifyGuardians(ctx context.Context, rec Record) {
	if svc.guardians == nil || svc.mailer == nil {
		return
	}

	name, addrs, err := svc.guardians.GuardiansOf(ctx, rec.Subject)
	if err != nil {
		svc.logger.Debug(fmt.Sprintf("attendance: no guardians for %s: %v", rec.Subject, err))
		return
	}
	if len(addrs) == 0 {
		return
	}

	data := NotificationData{
		StudentName: name,
		RollNo:      rec.Subject,
		Status:      string(rec.Status),
		Date:        rec.Date,
		Method:      strings.ReplaceAll(string(rec.Method), "-", " "),
	}
	if rec.Timestamp.Valid {
		data.Time = rec.Timestamp.Time.Format("15:04")
	}
	svc.mailer.SendMessages(&core.EmailMessage{
		To:           addrs,
		Subject:      fmt.Sprintf("%s marked %s", name, rec.Status),
		TemplateName: "attendance_marked",
		TemplateData: data,
		Category:     "attendance",
		Tags: map[string]string{
			"record_id": rec.ID.String(),
			"roll_no":   rec.Subject,
			"status":    string(rec.Status),
		},
	})
}
