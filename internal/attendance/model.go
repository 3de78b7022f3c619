package attendance

import (
	"encoding/json"
	"strings"
	"time"
)

// DateLayout is the civil date format used on every surface.
const DateLayout = "2006-01-02"

// Role is the privilege level attached to a credential.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleLecturer Role = "LECTURER"
)

// Credential is a login identity (username or email) with its password.
type Credential struct {
	ID       string `json:"id"`
	Password string `json:"-"`
	Role     Role   `json:"role,omitempty"`
}

// Student is a registered student keyed by roll number.
type Student struct {
	RollNumber string `json:"roll_number"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Semester   *int   `json:"semester,omitempty"`
}

// Record is one attendance mark for a student on a civil date.
type Record struct {
	RollNumber string    `json:"roll_number"`
	Date       time.Time `json:"-"`
	Present    bool      `json:"present"`
}

// Day returns the record date formatted as YYYY-MM-DD.
func (r Record) Day() string { return r.Date.Format(DateLayout) }

// Status returns the display status of the mark.
func (r Record) Status() string { return StatusLabel(r.Present) }

// MarshalJSON renders the date as YYYY-MM-DD alongside the status label.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RollNumber string `json:"roll_number"`
		Date       string `json:"date"`
		Present    bool   `json:"present"`
		Status     string `json:"status"`
	}{r.RollNumber, r.Day(), r.Present, r.Status()})
}

const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
)

// StatusLabel renders a present flag as Present or Absent.
func StatusLabel(present bool) string {
	if present {
		return StatusPresent
	}
	return StatusAbsent
}

// ParseStatus accepts present/absent/true/false in any case.
func ParseStatus(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present", "true":
		return true, true
	case "absent", "false":
		return false, true
	}
	return false, false
}

// ParseDate parses a YYYY-MM-DD civil date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// CivilDate truncates t to midnight of its UTC calendar day.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ReportRow is one attendance row joined with the student name.
type ReportRow struct {
	RollNumber  string `json:"roll_number"`
	StudentName string `json:"student_name"`
	Status      string `json:"status"`
}

// Report is the per-date attendance view with tallies.
type Report struct {
	Date         string      `json:"date"`
	Rows         []ReportRow `json:"rows"`
	TotalCount   int         `json:"total_count"`
	PresentCount int         `json:"present_count"`
	AbsentCount  int         `json:"absent_count"`
}
