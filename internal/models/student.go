package models

import "time"

// StudentStatus is the lifecycle state of a student record.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusInactive  StudentStatus = "INACTIVE"
	StudentStatusGraduated StudentStatus = "GRADUATED"
)

// Student represents a learner registered in the institution.
type Student struct {
	ID         string        `db:"id" json:"id"`
	NationalID string        `db:"national_id" json:"national_id"`
	FirstName  string        `db:"first_name" json:"first_name"`
	LastName   string        `db:"last_name" json:"last_name"`
	Email      *string       `db:"email" json:"email,omitempty"`
	Phone      *string       `db:"phone" json:"phone,omitempty"`
	Address    *string       `db:"address" json:"address,omitempty"`
	BirthDate  *time.Time    `db:"birth_date" json:"birth_date,omitempty"`
	Status     StudentStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
