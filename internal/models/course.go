package models

import "time"

// Course is a catalog entry. Offerings instantiate it per period.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Credits     int       `db:"credits" json:"credits"`
	Level       string    `db:"level" json:"level"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures list filters for courses.
type CourseFilter struct {
	Search    string
	Level     string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
