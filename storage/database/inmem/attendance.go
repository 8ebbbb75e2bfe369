package inmemdb

import (
	"context"

	"github.com/trezcool/presence/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) AppendRecord(ctx context.Context, rec attendance.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[rec.Subject] = append(repo.db.table[rec.Subject], rec)
	return nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, subject string) ([]attendance.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	history := repo.db.table[subject]
	recs := make([]attendance.Record, len(history))
	copy(recs, history)
	return recs, nil
}
