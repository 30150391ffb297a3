package models

import "time"

// CourseOffering is a section of a course within a period. Capacity fields
// satisfy 0 <= CapacityAvailable <= CapacityMax.
type CourseOffering struct {
	ID                string    `db:"id" json:"id"`
	CourseID          string    `db:"course_id" json:"course_id"`
	PeriodID          string    `db:"period_id" json:"period_id"`
	TeacherID         *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Section           string    `db:"section" json:"section"`
	CapacityMax       int       `db:"capacity_max" json:"capacity_max"`
	CapacityAvailable int       `db:"capacity_available" json:"capacity_available"`
	Open              bool      `db:"open" json:"open"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// SeatsTaken is the number of occupied seats.
func (o CourseOffering) SeatsTaken() int {
	return o.CapacityMax - o.CapacityAvailable
}

// OfferingChanges lists the mutable fields of an offering. Nil fields keep
// their stored value.
type OfferingChanges struct {
	Section     *string
	Open        *bool
	CapacityMax *int
}

// Apply returns o with the changes applied, keeping the seats already taken.
func (c OfferingChanges) Apply(o CourseOffering) CourseOffering {
	taken := o.SeatsTaken()
	if c.Section != nil {
		o.Section = *c.Section
	}
	if c.Open != nil {
		o.Open = *c.Open
	}
	if c.CapacityMax != nil {
		o.CapacityMax = *c.CapacityMax
		o.CapacityAvailable = *c.CapacityMax - taken
	}
	return o
}

// OfferingDetail is an offering joined with course, period and teacher names.
type OfferingDetail struct {
	CourseOffering
	CourseCode  string  `db:"course_code" json:"course_code"`
	CourseName  string  `db:"course_name" json:"course_name"`
	PeriodName  string  `db:"period_name" json:"period_name"`
	TeacherName *string `db:"teacher_name" json:"teacher_name,omitempty"`
}

// OfferingFilter captures list filters for offerings.
type OfferingFilter struct {
	CourseID  string
	PeriodID  string
	TeacherID string
	OpenOnly  bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// RosterEntry is one enrolled student of an offering.
type RosterEntry struct {
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	NationalID   string           `db:"national_id" json:"national_id"`
	FirstName    string           `db:"first_name" json:"first_name"`
	LastName     string           `db:"last_name" json:"last_name"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt   time.Time        `db:"enrolled_at" json:"enrolled_at"`
}
