package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/casa-azul-api/internal/dto"
)

// ReportRepository runs the aggregate queries behind the reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// GeneralTotals fills the count fields of the general report.
func (r *ReportRepository) GeneralTotals(ctx context.Context) (dto.GeneralReport, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students) AS students,
        (SELECT COUNT(*) FROM teachers) AS teachers,
        (SELECT COUNT(*) FROM course_offerings) AS offerings,
        (SELECT COUNT(*) FROM enrollments) AS enrollments`
	var report dto.GeneralReport
	if err := r.db.GetContext(ctx, &report, query); err != nil {
		return dto.GeneralReport{}, fmt.Errorf("general report: %w", err)
	}
	return report, nil
}

// GradeSummary aggregates grade entries. Entries scoring at least passing
// count as approved.
func (r *ReportRepository) GradeSummary(ctx context.Context, filter dto.GradeReportFilter, passing float64) (dto.GradeReport, error) {
	w := where{args: []interface{}{passing}}
	if filter.OfferingID != "" {
		w.add("e.offering_id = ?", filter.OfferingID)
	}
	if filter.TeacherID != "" {
		w.add("o.teacher_id = ?", filter.TeacherID)
	}
	if filter.From != nil {
		w.add("g.graded_on >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("g.graded_on <= ?", *filter.To)
	}
	query := `SELECT COUNT(g.id) AS total_entries,
        COALESCE(AVG(g.score), 0) AS average,
        COALESCE(MAX(g.score), 0) AS max_score,
        COALESCE(MIN(g.score), 0) AS min_score,
        COUNT(g.id) FILTER (WHERE g.score >= $1) AS approved,
        COUNT(g.id) FILTER (WHERE g.score < $1) AS failed
        FROM grade_entries g
        JOIN enrollments e ON e.id = g.enrollment_id
        JOIN course_offerings o ON o.id = e.offering_id` + w.clause()
	var report dto.GradeReport
	if err := r.db.GetContext(ctx, &report, query, w.args...); err != nil {
		return dto.GradeReport{}, fmt.Errorf("grade report: %w", err)
	}
	return report, nil
}

// StudentGrades returns per-enrollment grade aggregates of an offering.
// Students without grades report zero entries.
func (r *ReportRepository) StudentGrades(ctx context.Context, offeringID string) ([]dto.StudentGradeRow, error) {
	const query = `SELECT e.id AS enrollment_id, s.id AS student_id, s.first_name || ' ' || s.last_name AS student_name,
        COUNT(g.id) AS grade_count, COALESCE(AVG(g.score), 0) AS average
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        LEFT JOIN grade_entries g ON g.enrollment_id = e.id
        WHERE e.offering_id = $1
        GROUP BY e.id, s.id, s.first_name, s.last_name
        ORDER BY s.last_name, s.first_name`
	var rows []dto.StudentGradeRow
	if err := r.db.SelectContext(ctx, &rows, query, offeringID); err != nil {
		return nil, fmt.Errorf("offering grade report: %w", err)
	}
	return rows, nil
}

// StudentAttendance returns per-enrollment attendance tallies of an offering.
func (r *ReportRepository) StudentAttendance(ctx context.Context, offeringID string) ([]dto.StudentAttendanceRow, error) {
	query := `SELECT e.id AS enrollment_id, s.id AS student_id, s.first_name || ' ' || s.last_name AS student_name, ` + attendanceCountsSelect + `
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        LEFT JOIN attendance_records a ON a.enrollment_id = e.id
        WHERE e.offering_id = $1
        GROUP BY e.id, s.id, s.first_name, s.last_name
        ORDER BY s.last_name, s.first_name`
	var rows []dto.StudentAttendanceRow
	if err := r.db.SelectContext(ctx, &rows, query, offeringID); err != nil {
		return nil, fmt.Errorf("offering attendance report: %w", err)
	}
	return rows, nil
}
