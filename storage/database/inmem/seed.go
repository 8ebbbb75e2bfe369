package inmemdb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/presence/core/attendance"
)

type seedRecord struct {
	date   string
	status attendance.Status
	method attendance.Method
	clock  string
}

// demo histories, oldest first
var seedHistories = map[string][]seedRecord{
	"CS21012": {
		{date: "2024-01-12", status: attendance.StatusPresent, method: attendance.MethodFacialRecognition, clock: "09:20"},
		{date: "2024-01-13", status: attendance.StatusAbsent},
		{date: "2024-01-14", status: attendance.StatusPresent, method: attendance.MethodGeofence, clock: "09:10"},
		{date: "2024-01-15", status: attendance.StatusPresent, method: attendance.MethodFacialRecognition, clock: "09:15"},
	},
}

// Seed loads the demo attendance histories into repo.
func Seed(ctx context.Context, repo attendance.Repository) error {
	for subject, history := range seedHistories {
		for _, sr := range history {
			rec := attendance.NewRecord(subject, sr.status, sr.method, time.Time{})
			rec.Date = sr.date
			rec.Timestamp = null.Time{}
			if sr.clock != "" {
				ts, err := time.ParseInLocation("2006-01-02 15:04", sr.date+" "+sr.clock, time.Local)
				if err != nil {
					return errors.Wrapf(err, "parsing seed record of %s", subject)
				}
				rec.Timestamp = null.TimeFrom(ts)
			}
			if err := repo.AppendRecord(ctx, rec); err != nil {
				return errors.Wrapf(err, "seeding %s", subject)
			}
		}
	}
	return nil
}
