package dto

import "time"

// GeneralReport holds institution-wide totals.
type GeneralReport struct {
	Students             int       `json:"students" db:"students"`
	Teachers             int       `json:"teachers" db:"teachers"`
	Offerings            int       `json:"offerings" db:"offerings"`
	Enrollments          int       `json:"enrollments" db:"enrollments"`
	GlobalAverage        float64   `json:"globalAverage" db:"-"`
	AttendancePercentage float64   `json:"attendancePercentage" db:"-"`
	GeneratedAt          time.Time `json:"generatedAt" db:"-"`
}

// GradeReportFilter narrows the grade report.
type GradeReportFilter struct {
	OfferingID string
	TeacherID  string
	From       *time.Time
	To         *time.Time
}

// GradeReport summarises grade entries. Approved counts entries at or above
// the passing grade.
type GradeReport struct {
	TotalEntries int     `json:"totalEntries" db:"total_entries"`
	Average      float64 `json:"average" db:"average"`
	Max          float64 `json:"max" db:"max_score"`
	Min          float64 `json:"min" db:"min_score"`
	Approved     int     `json:"approved" db:"approved"`
	Failed       int     `json:"failed" db:"failed"`
}

// StudentGradeRow is a per-student line of an offering grade report.
type StudentGradeRow struct {
	EnrollmentID string  `json:"enrollmentId" db:"enrollment_id"`
	StudentID    string  `json:"studentId" db:"student_id"`
	StudentName  string  `json:"studentName" db:"student_name"`
	GradeCount   int     `json:"gradeCount" db:"grade_count"`
	Average      float64 `json:"average" db:"average"`
	Status       string  `json:"status" db:"-"`
}

// OfferingGradeReport is the grade report of one offering.
type OfferingGradeReport struct {
	OfferingID    string            `json:"offeringId"`
	CourseName    string            `json:"courseName"`
	Section       string            `json:"section"`
	Students      []StudentGradeRow `json:"students"`
	CourseAverage float64           `json:"courseAverage"`
	Approved      int               `json:"approved"`
	Failed        int               `json:"failed"`
	InProgress    int               `json:"inProgress"`
}

// StudentAttendanceRow is a per-student line of an attendance report.
type StudentAttendanceRow struct {
	EnrollmentID string  `json:"enrollmentId" db:"enrollment_id"`
	StudentID    string  `json:"studentId" db:"student_id"`
	StudentName  string  `json:"studentName" db:"student_name"`
	Total        int     `json:"total" db:"total"`
	Present      int     `json:"present" db:"present"`
	Absent       int     `json:"absent" db:"absent"`
	Justified    int     `json:"justified" db:"justified"`
	Percentage   float64 `json:"percentage" db:"-"`
}

// OfferingAttendanceReport is the attendance report of one offering.
type OfferingAttendanceReport struct {
	OfferingID string                 `json:"offeringId"`
	CourseName string                 `json:"courseName"`
	Section    string                 `json:"section"`
	Students   []StudentAttendanceRow `json:"students"`
	Percentage float64                `json:"percentage"`
	Dates      int                    `json:"dates"`
}
