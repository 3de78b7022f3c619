package attendance

import (
	"strings"
	"time"
)

// UnknownStudent is shown for marks whose roll number has no student.
const UnknownStudent = "Unknown"

// BuildReport joins the marks of one day against the student list and
// tallies them. records are expected to be already filtered to date.
func BuildReport(date time.Time, students []Student, records []Record) Report {
	names := make(map[string]string, len(students))
	for _, s := range students {
		names[s.RollNumber] = s.Name
	}

	rep := Report{Date: date.Format(DateLayout), Rows: make([]ReportRow, 0, len(records))}
	for _, r := range records {
		name, ok := names[r.RollNumber]
		if !ok {
			name = UnknownStudent
		}
		row := ReportRow{RollNumber: r.RollNumber, StudentName: name, Status: r.Status()}
		rep.Rows = append(rep.Rows, row)
		if strings.EqualFold(row.Status, StatusPresent) {
			rep.PresentCount++
		}
	}
	rep.TotalCount = len(rep.Rows)
	rep.AbsentCount = rep.TotalCount - rep.PresentCount
	return rep
}
