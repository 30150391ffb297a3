package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusEnrolled  EnrollmentStatus = "ENROLLED"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
	EnrollmentStatusFrozen    EnrollmentStatus = "FROZEN"
)

// Enrollment links a student to a course offering. (student, offering) is unique.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	OfferingID string           `db:"offering_id" json:"offering_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail is an enrollment with everything needed to authorise and
// display it, resolved in one query.
type EnrollmentDetail struct {
	Enrollment
	StudentName string  `db:"student_name" json:"student_name"`
	NationalID  string  `db:"national_id" json:"national_id"`
	CourseID    string  `db:"course_id" json:"course_id"`
	CourseCode  string  `db:"course_code" json:"course_code"`
	CourseName  string  `db:"course_name" json:"course_name"`
	PeriodID    string  `db:"period_id" json:"period_id"`
	PeriodName  string  `db:"period_name" json:"period_name"`
	Section     string  `db:"section" json:"section"`
	TeacherID   *string `db:"teacher_id" json:"teacher_id,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments. TeacherID scopes
// results to offerings owned by that teacher.
type EnrollmentFilter struct {
	StudentID  string
	OfferingID string
	CourseID   string
	PeriodID   string
	TeacherID  string
	Status     EnrollmentStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
