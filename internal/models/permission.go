package models

// Role is an entry of the static role catalog.
type Role struct {
	ID          string   `db:"id" json:"id"`
	Slug        UserRole `db:"slug" json:"slug"`
	Name        string   `db:"name" json:"name"`
	Description string   `db:"description" json:"description"`
}

// Permission is an entry of the static permission catalog.
type Permission struct {
	ID          string `db:"id" json:"id"`
	Slug        string `db:"slug" json:"slug"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// Permission slugs checked by the access gate.
const (
	PermStudentsView       = "students.view"
	PermStudentsManage     = "students.manage"
	PermTeachersView       = "teachers.view"
	PermTeachersManage     = "teachers.manage"
	PermCoursesView        = "courses.view"
	PermCoursesManage      = "courses.manage"
	PermPeriodsManage      = "periods.manage"
	PermOfferingsView      = "offerings.view"
	PermOfferingsManage    = "offerings.manage"
	PermEnrollmentsView    = "enrollments.view"
	PermEnrollmentsManage  = "enrollments.manage"
	PermGradesView         = "grades.view"
	PermGradesRecord       = "grades.record"
	PermGradesEdit         = "grades.edit"
	PermGradesDelete       = "grades.delete"
	PermAttendanceView     = "attendance.view"
	PermAttendanceTake     = "attendance.take"
	PermAttendanceEdit     = "attendance.edit"
	PermAttendanceDelete   = "attendance.delete"
	PermReportsView        = "reports.view"
	PermDashboardAdminView = "dashboard.admin"
)

// Principal is the authenticated caller of a request. It is built from the
// access token and passed explicitly into every service call.
type Principal struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	TeacherID *string  `json:"teacher_id,omitempty"`
	StudentID *string  `json:"student_id,omitempty"`
}

func (p Principal) IsAdmin() bool   { return p.Role == RoleAdmin }
func (p Principal) IsTeacher() bool { return p.Role == RoleTeacher }
func (p Principal) IsStudent() bool { return p.Role == RoleStudent }

// OwnsTeacher reports whether the principal is the given teacher profile.
func (p Principal) OwnsTeacher(teacherID *string) bool {
	return p.TeacherID != nil && teacherID != nil && *p.TeacherID == *teacherID
}

// IsStudentProfile reports whether the principal is the given student profile.
func (p Principal) IsStudentProfile(studentID string) bool {
	return p.StudentID != nil && *p.StudentID == studentID
}
