package inmemdb

import (
	"sync"

	"github.com/trezcool/presence/core/attendance"
)

type (
	DB struct {
		attendance *attendanceTable
	}

	attendanceTable struct {
		mutex sync.RWMutex
		table map[string][]attendance.Record // {subject: history}
	}
)

func Open() *DB {
	return &DB{
		attendance: &attendanceTable{table: make(map[string][]attendance.Record)},
	}
}
