package attendance

import (
	"context"
	"time"
)

// Store persists credentials, students and attendance records.
//
// Implementations make the duplicate check and the append of
// CreateCredential and CreateStudent atomic per collection, and never let a
// reader observe a half-written record. Duplicates are reported as
// *DuplicateIDError; every other error is a storage fault.
type Store interface {
	CreateCredential(ctx context.Context, c Credential) error
	// FindCredential returns nil, nil when no credential matches both fields.
	FindCredential(ctx context.Context, id, password string) (*Credential, error)

	CreateStudent(ctx context.Context, s Student) error
	ListStudents(ctx context.Context) ([]Student, error)

	// AppendAttendance never checks for an earlier mark on the same day.
	AppendAttendance(ctx context.Context, r Record) error
	// UpsertAttendance removes every mark for (roll number, date) and appends r.
	UpsertAttendance(ctx context.Context, r Record) error
	AttendanceByDate(ctx context.Context, date time.Time) ([]Record, error)
	ListAttendance(ctx context.Context) ([]Record, error)

	Ping(ctx context.Context) error
	Close() error
}

// MarkMode selects how repeated marks for the same student and day are kept.
type MarkMode string

const (
	// MarkAppend keeps every mark; repeated marks are double-counted.
	MarkAppend MarkMode = "append"
	// MarkUpsert keeps only the latest mark per student and day.
	MarkUpsert MarkMode = "upsert"
)

// ParseMarkMode maps a config value to a MarkMode, defaulting to append.
func ParseMarkMode(s string) MarkMode {
	if MarkMode(s) == MarkUpsert {
		return MarkUpsert
	}
	return MarkAppend
}
