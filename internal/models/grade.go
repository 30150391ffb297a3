package models

import "time"

// GradeEntry is one named score of an enrollment.
type GradeEntry struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Label        string    `db:"label" json:"label"`
	Score        float64   `db:"score" json:"score"`
	GradedOn     time.Time `db:"graded_on" json:"graded_on"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// GradeDetail adds the student and offering behind the enrollment.
type GradeDetail struct {
	GradeEntry
	StudentID   string  `db:"student_id" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
	OfferingID  string  `db:"offering_id" json:"offering_id"`
	CourseName  string  `db:"course_name" json:"course_name"`
	TeacherID   *string `db:"teacher_id" json:"teacher_id,omitempty"`
}

// GradeFilter captures list filters for grade entries.
type GradeFilter struct {
	OfferingID   string
	StudentID    string
	EnrollmentID string
	TeacherID    string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
