package models

import "time"

// AttendanceRecord is the presence of one enrollment on one date. At most one
// record exists per (enrollment, date).
type AttendanceRecord struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Date         time.Time `db:"date" json:"date"`
	Present      bool      `db:"present" json:"present"`
	Justified    bool      `db:"justified" json:"justified"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceDetail adds the student and offering behind the enrollment.
type AttendanceDetail struct {
	AttendanceRecord
	StudentID   string  `db:"student_id" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
	OfferingID  string  `db:"offering_id" json:"offering_id"`
	CourseName  string  `db:"course_name" json:"course_name"`
	TeacherID   *string `db:"teacher_id" json:"teacher_id,omitempty"`
}

// AttendanceFilter captures list filters for attendance records.
type AttendanceFilter struct {
	OfferingID   string
	StudentID    string
	EnrollmentID string
	TeacherID    string
	From         *time.Time
	To           *time.Time
	Present      *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// AttendanceCounts are raw tallies for an enrollment or offering.
type AttendanceCounts struct {
	Total     int `db:"total" json:"total"`
	Present   int `db:"present" json:"present"`
	Absent    int `db:"absent" json:"absent"`
	Justified int `db:"justified" json:"justified"`
}
