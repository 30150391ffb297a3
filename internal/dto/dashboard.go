package dto

import (
	"time"

	"github.com/noah-isme/casa-azul-api/internal/models"
)

// AdminDashboardResponse captures the system-wide dashboard payload.
type AdminDashboardResponse struct {
	Totals              AdminTotals               `json:"totals"`
	EnrollmentsByStatus map[string]int            `json:"enrollmentsByStatus"`
	GlobalAverage       float64                   `json:"globalAverage"`
	GlobalAttendance    float64                   `json:"globalAttendance"`
	ActivePeriod        *models.AcademicPeriod    `json:"activePeriod,omitempty"`
	RecentEnrollments   []models.EnrollmentDetail `json:"recentEnrollments"`
	GeneratedAt         time.Time                 `json:"generatedAt"`
}

// AdminTotals holds headline counts.
type AdminTotals struct {
	Students       int `json:"students" db:"students"`
	ActiveStudents int `json:"activeStudents" db:"active_students"`
	Teachers       int `json:"teachers" db:"teachers"`
	Courses        int `json:"courses" db:"courses"`
	Offerings      int `json:"offerings" db:"offerings"`
	Enrollments    int `json:"enrollments" db:"enrollments"`
}

// TeacherDashboardResponse summarises the teacher's offerings in the active period.
type TeacherDashboardResponse struct {
	TeacherID    string                   `json:"teacherId"`
	ActivePeriod *models.AcademicPeriod   `json:"activePeriod,omitempty"`
	Date         string                   `json:"date"`
	Offerings    []TeacherOfferingSummary `json:"offerings"`
	PendingCount int                      `json:"pendingCount"`
	GeneratedAt  time.Time                `json:"generatedAt"`
}

// TeacherOfferingSummary is one row of the teacher dashboard. Pending is set
// when no attendance has been taken for the dashboard date.
type TeacherOfferingSummary struct {
	OfferingID          string `json:"offeringId" db:"offering_id"`
	CourseCode          string `json:"courseCode" db:"course_code"`
	CourseName          string `json:"courseName" db:"course_name"`
	Section             string `json:"section" db:"section"`
	EnrollmentCount     int    `json:"enrollmentCount" db:"enrollment_count"`
	GradeCount          int    `json:"gradeCount" db:"grade_count"`
	AttendanceDateCount int    `json:"attendanceDateCount" db:"attendance_date_count"`
	TakenToday          bool   `json:"-" db:"taken_today"`
	Pending             bool   `json:"pending" db:"-"`
}
