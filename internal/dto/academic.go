package dto

import (
	"time"

	"github.com/noah-isme/casa-azul-api/internal/models"
)

// EnrollmentGrades groups the grade entries of one enrollment with its
// derived average and status.
type EnrollmentGrades struct {
	Enrollment           models.EnrollmentDetail `json:"enrollment"`
	Grades               []models.GradeEntry     `json:"grades"`
	Average              float64                 `json:"average"`
	AttendancePercentage float64                 `json:"attendancePercentage"`
	Status               models.AcademicStatus   `json:"status"`
}

// EnrollmentAttendance summarises attendance of one enrollment.
type EnrollmentAttendance struct {
	Enrollment models.EnrollmentDetail   `json:"enrollment"`
	Counts     models.AttendanceCounts   `json:"counts"`
	Percentage float64                   `json:"percentage"`
	Records    []models.AttendanceRecord `json:"records,omitempty"`
}

// RosterAttendanceEntry pairs a roster student with the record taken on a
// date, or nil when none exists yet.
type RosterAttendanceEntry struct {
	Student models.RosterEntry       `json:"student"`
	Record  *models.AttendanceRecord `json:"record"`
}

// RosterAttendance is the attendance sheet of an offering for a date.
type RosterAttendance struct {
	OfferingID string                  `json:"offeringId"`
	Date       time.Time               `json:"date"`
	Taken      bool                    `json:"taken"`
	Entries    []RosterAttendanceEntry `json:"entries"`
}

// OfferingAttendanceStats are offering-wide attendance figures.
type OfferingAttendanceStats struct {
	OfferingID string                  `json:"offeringId"`
	Counts     models.AttendanceCounts `json:"counts"`
	Percentage float64                 `json:"percentage"`
	Dates      int                     `json:"dates"`
}

// EnrollResult reports one enrollment and the seats left after it.
type EnrollResult struct {
	Enrollment        models.Enrollment `json:"enrollment"`
	CapacityAvailable int               `json:"capacityAvailable"`
}

// DeleteCount reports how many rows an operation removed.
type DeleteCount struct {
	Deleted int `json:"deleted"`
}

// WithdrawCount reports how many enrollments a withdrawal removed.
type WithdrawCount struct {
	Withdrawn int `json:"withdrawn"`
}

// EnrollmentAverage is the rounded mean score of an enrollment.
type EnrollmentAverage struct {
	EnrollmentID string  `json:"enrollmentId"`
	Average      float64 `json:"average"`
	Count        int     `json:"count"`
}
