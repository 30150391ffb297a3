package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/casa-azul-api/internal/models"
)

const attendanceColumns = `a.id, a.enrollment_id, a.date, a.present, a.justified, a.notes, a.created_at, a.updated_at`

const attendanceDetailSelect = `SELECT ` + attendanceColumns + `,
        e.student_id, s.first_name || ' ' || s.last_name AS student_name,
        e.offering_id, c.name AS course_name, o.teacher_id
        FROM attendance_records a
        JOIN enrollments e ON e.id = a.enrollment_id
        JOIN students s ON s.id = e.student_id
        JOIN course_offerings o ON o.id = e.offering_id
        JOIN courses c ON c.id = o.course_id`

const attendanceCountsSelect = `COUNT(a.id) AS total,
        COUNT(a.id) FILTER (WHERE a.present) AS present,
        COUNT(a.id) FILTER (WHERE NOT a.present) AS absent,
        COUNT(a.id) FILTER (WHERE NOT a.present AND a.justified) AS justified`

// AttendanceRepository is the attendance ledger. (enrollment_id, date) is
// backed by a unique index.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// List returns attendance records matching the filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	var w where
	if filter.OfferingID != "" {
		w.add("e.offering_id = ?", filter.OfferingID)
	}
	if filter.StudentID != "" {
		w.add("e.student_id = ?", filter.StudentID)
	}
	if filter.EnrollmentID != "" {
		w.add("a.enrollment_id = ?", filter.EnrollmentID)
	}
	if filter.TeacherID != "" {
		w.add("o.teacher_id = ?", filter.TeacherID)
	}
	if filter.From != nil {
		w.add("a.date >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("a.date <= ?", *filter.To)
	}
	if filter.Present != nil {
		w.add("a.present = ?", *filter.Present)
	}
	window := listWindow(map[string]string{
		"date":         "a.date",
		"student_name": "s.last_name",
	}, filter.SortBy, "date", filter.SortOrder, "DESC", filter.Page, filter.PageSize)

	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, attendanceDetailSelect+w.clause()+window, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	countQuery := `SELECT COUNT(*) FROM attendance_records a
        JOIN enrollments e ON e.id = a.enrollment_id
        JOIN course_offerings o ON o.id = e.offering_id` + w.clause()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, w.args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// FindDetailByID returns one record with its enrollment context.
func (r *AttendanceRepository) FindDetailByID(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	var record models.AttendanceDetail
	if err := r.db.GetContext(ctx, &record, attendanceDetailSelect+" WHERE a.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &record, nil
}

// Exists reports whether a record is present for (enrollment, date).
func (r *AttendanceRepository) Exists(ctx context.Context, enrollmentID string, date time.Time) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM attendance_records WHERE enrollment_id = $1 AND date = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID, date); err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return exists, nil
}

// CountForOfferingDate counts records taken for an offering on a date.
func (r *AttendanceRepository) CountForOfferingDate(ctx context.Context, offeringID string, date time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance_records a JOIN enrollments e ON e.id = a.enrollment_id
        WHERE e.offering_id = $1 AND a.date = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, offeringID, date); err != nil {
		return 0, fmt.Errorf("count offering attendance: %w", err)
	}
	return count, nil
}

// Create inserts one record. An existing (enrollment, date) yields ErrDuplicate.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt, record.UpdatedAt = now, now
	const query = `INSERT INTO attendance_records (id, enrollment_id, date, present, justified, notes, created_at, updated_at)
        VALUES (:id, :enrollment_id, :date, :present, :justified, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// Update changes presence, justification and notes of a record.
func (r *AttendanceRepository) Update(ctx context.Context, record *models.AttendanceRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE attendance_records SET present = :present, justified = :justified, notes = :notes,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return nil
}

// DeleteByOfferingDate removes every record of the offering on the date.
func (r *AttendanceRepository) DeleteByOfferingDate(ctx context.Context, offeringID string, date time.Time) (int, error) {
	const query = `DELETE FROM attendance_records a USING enrollments e
        WHERE e.id = a.enrollment_id AND e.offering_id = $1 AND a.date = $2`
	res, err := r.db.ExecContext(ctx, query, offeringID, date)
	if err != nil {
		return 0, fmt.Errorf("delete attendance by date: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete attendance by date: %w", err)
	}
	return int(n), nil
}

// ListByOfferingDate returns records of an offering for one date.
func (r *AttendanceRepository) ListByOfferingDate(ctx context.Context, offeringID string, date time.Time) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records a JOIN enrollments e ON e.id = a.enrollment_id
        WHERE e.offering_id = $1 AND a.date = $2`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, offeringID, date); err != nil {
		return nil, fmt.Errorf("list offering attendance: %w", err)
	}
	return records, nil
}

// ListByEnrollment returns the records of one enrollment, oldest first.
func (r *AttendanceRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records a WHERE a.enrollment_id = $1 ORDER BY a.date`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment attendance: %w", err)
	}
	return records, nil
}

// CountsByEnrollments returns tallies keyed by enrollment id. Enrollments
// without records are absent from the map.
func (r *AttendanceRepository) CountsByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string]models.AttendanceCounts, error) {
	counts := make(map[string]models.AttendanceCounts, len(enrollmentIDs))
	if len(enrollmentIDs) == 0 {
		return counts, nil
	}
	args := make([]interface{}, len(enrollmentIDs))
	for i, id := range enrollmentIDs {
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT a.enrollment_id, %s FROM attendance_records a
        WHERE a.enrollment_id IN (%s) GROUP BY a.enrollment_id`, attendanceCountsSelect, placeholders(1, len(enrollmentIDs)))
	var rows []struct {
		EnrollmentID string `db:"enrollment_id"`
		models.AttendanceCounts
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count enrollment attendance: %w", err)
	}
	for _, row := range rows {
		counts[row.EnrollmentID] = row.AttendanceCounts
	}
	return counts, nil
}

// OfferingCounts returns offering-wide tallies and the number of distinct dates.
func (r *AttendanceRepository) OfferingCounts(ctx context.Context, offeringID string) (models.AttendanceCounts, int, error) {
	query := `SELECT ` + attendanceCountsSelect + `, COUNT(DISTINCT a.date) AS dates
        FROM attendance_records a JOIN enrollments e ON e.id = a.enrollment_id WHERE e.offering_id = $1`
	var row struct {
		models.AttendanceCounts
		Dates int `db:"dates"`
	}
	if err := r.db.GetContext(ctx, &row, query, offeringID); err != nil {
		return models.AttendanceCounts{}, 0, fmt.Errorf("count offering attendance: %w", err)
	}
	return row.AttendanceCounts, row.Dates, nil
}
