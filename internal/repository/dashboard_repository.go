package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
)

// DashboardRepository runs the aggregate queries behind the dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Totals returns headline counts for the admin dashboard.
func (r *DashboardRepository) Totals(ctx context.Context) (dto.AdminTotals, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students) AS students,
        (SELECT COUNT(*) FROM students WHERE status = 'ACTIVE') AS active_students,
        (SELECT COUNT(*) FROM teachers) AS teachers,
        (SELECT COUNT(*) FROM courses) AS courses,
        (SELECT COUNT(*) FROM course_offerings) AS offerings,
        (SELECT COUNT(*) FROM enrollments) AS enrollments`
	var totals dto.AdminTotals
	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return dto.AdminTotals{}, fmt.Errorf("dashboard totals: %w", err)
	}
	return totals, nil
}

// EnrollmentsByStatus counts enrollments per status.
func (r *DashboardRepository) EnrollmentsByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM enrollments GROUP BY status`); err != nil {
		return nil, fmt.Errorf("enrollments by status: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// GlobalAverage returns the mean of every grade entry, or nil when there are none.
func (r *DashboardRepository) GlobalAverage(ctx context.Context) (*float64, error) {
	var avg sql.NullFloat64
	if err := r.db.GetContext(ctx, &avg, `SELECT AVG(score) FROM grade_entries`); err != nil {
		return nil, fmt.Errorf("global average: %w", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// GlobalAttendance returns attendance tallies across all records.
func (r *DashboardRepository) GlobalAttendance(ctx context.Context) (models.AttendanceCounts, error) {
	var counts models.AttendanceCounts
	if err := r.db.GetContext(ctx, &counts, `SELECT `+attendanceCountsSelect+` FROM attendance_records a`); err != nil {
		return models.AttendanceCounts{}, fmt.Errorf("global attendance: %w", err)
	}
	return counts, nil
}

// RecentEnrollments returns the latest enrollments.
func (r *DashboardRepository) RecentEnrollments(ctx context.Context, limit int) ([]models.EnrollmentDetail, error) {
	var enrollments []models.EnrollmentDetail
	query := enrollmentDetailSelect + " ORDER BY e.enrolled_at DESC LIMIT $1"
	if err := r.db.SelectContext(ctx, &enrollments, query, limit); err != nil {
		return nil, fmt.Errorf("recent enrollments: %w", err)
	}
	return enrollments, nil
}

// TeacherOfferings summarises the teacher's offerings in a period. TakenToday
// reflects whether any attendance exists on the given date.
func (r *DashboardRepository) TeacherOfferings(ctx context.Context, teacherID, periodID string, day time.Time) ([]dto.TeacherOfferingSummary, error) {
	const query = `SELECT o.id AS offering_id, c.code AS course_code, c.name AS course_name, o.section,
        (SELECT COUNT(*) FROM enrollments e WHERE e.offering_id = o.id) AS enrollment_count,
        (SELECT COUNT(*) FROM grade_entries g JOIN enrollments e ON e.id = g.enrollment_id WHERE e.offering_id = o.id) AS grade_count,
        (SELECT COUNT(DISTINCT a.date) FROM attendance_records a JOIN enrollments e ON e.id = a.enrollment_id WHERE e.offering_id = o.id) AS attendance_date_count,
        EXISTS(SELECT 1 FROM attendance_records a JOIN enrollments e ON e.id = a.enrollment_id WHERE e.offering_id = o.id AND a.date = $3) AS taken_today
        FROM course_offerings o
        JOIN courses c ON c.id = o.course_id
        WHERE o.teacher_id = $1 AND o.period_id = $2
        ORDER BY c.name, o.section`
	var summaries []dto.TeacherOfferingSummary
	if err := r.db.SelectContext(ctx, &summaries, query, teacherID, periodID, day); err != nil {
		return nil, fmt.Errorf("teacher offerings summary: %w", err)
	}
	return summaries, nil
}
