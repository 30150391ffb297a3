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
	"github.com/noah-isme/casa-azul-api/pkg/database"
)

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.offering_id, e.status, e.enrolled_at, e.created_at, e.updated_at,
        s.first_name || ' ' || s.last_name AS student_name, s.national_id,
        o.course_id, c.code AS course_code, c.name AS course_name,
        o.period_id, p.name AS period_name, o.section, o.teacher_id
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN course_offerings o ON o.id = e.offering_id
        JOIN courses c ON c.id = o.course_id
        JOIN academic_periods p ON p.id = o.period_id`

// EnrollmentRepository is the enrollment ledger. Every change to an
// enrollment row and the offering's seat counter share one transaction, and
// the offering row is locked first.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var w where
	if filter.StudentID != "" {
		w.add("e.student_id = ?", filter.StudentID)
	}
	if filter.OfferingID != "" {
		w.add("e.offering_id = ?", filter.OfferingID)
	}
	if filter.CourseID != "" {
		w.add("o.course_id = ?", filter.CourseID)
	}
	if filter.PeriodID != "" {
		w.add("o.period_id = ?", filter.PeriodID)
	}
	if filter.TeacherID != "" {
		w.add("o.teacher_id = ?", filter.TeacherID)
	}
	if filter.Status != "" {
		w.add("e.status = ?", filter.Status)
	}
	window := listWindow(map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "s.last_name",
		"course_name":  "c.name",
	}, filter.SortBy, "enrolled_at", filter.SortOrder, "DESC", filter.Page, filter.PageSize)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, enrollmentDetailSelect+w.clause()+window, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM enrollments e JOIN course_offerings o ON o.id = e.offering_id` + w.clause()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, w.args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindDetailByID returns an enrollment with its offering context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, enrollmentDetailSelect+" WHERE e.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &detail, nil
}

// ListByStudent returns every enrollment of a student, newest period first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " WHERE e.student_id = $1 ORDER BY p.year DESC, p.term DESC, c.name"
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByOffering returns every enrollment of an offering ordered by student.
func (r *EnrollmentRepository) ListByOffering(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " WHERE e.offering_id = $1 ORDER BY s.last_name, s.first_name"
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, offeringID); err != nil {
		return nil, fmt.Errorf("list offering enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByStudentCoursePeriod returns a student's enrollments in any offering
// of a course within a period.
func (r *EnrollmentRepository) FindByStudentCoursePeriod(ctx context.Context, studentID, courseID, periodID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " WHERE e.student_id = $1 AND o.course_id = $2 AND o.period_id = $3 ORDER BY o.section"
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, courseID, periodID); err != nil {
		return nil, fmt.Errorf("find course enrollments: %w", err)
	}
	return enrollments, nil
}

// MembersOf returns which of the given enrollment ids belong to the offering.
func (r *EnrollmentRepository) MembersOf(ctx context.Context, offeringID string, enrollmentIDs []string) (map[string]bool, error) {
	members := make(map[string]bool, len(enrollmentIDs))
	if len(enrollmentIDs) == 0 {
		return members, nil
	}
	args := make([]interface{}, 0, len(enrollmentIDs)+1)
	args = append(args, offeringID)
	for _, id := range enrollmentIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf("SELECT id FROM enrollments WHERE offering_id = $1 AND id IN (%s)", placeholders(2, len(enrollmentIDs)))
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("check offering members: %w", err)
	}
	for _, id := range ids {
		members[id] = true
	}
	return members, nil
}

type seatRow struct {
	CapacityMax       int  `db:"capacity_max"`
	CapacityAvailable int  `db:"capacity_available"`
	Open              bool `db:"open"`
}

func lockOffering(ctx context.Context, tx *sqlx.Tx, offeringID string) (*seatRow, error) {
	const query = `SELECT capacity_max, capacity_available, open FROM course_offerings WHERE id = $1 FOR UPDATE`
	var seats seatRow
	if err := tx.GetContext(ctx, &seats, query, offeringID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock offering: %w", err)
	}
	return &seats, nil
}

// Enroll registers a student in an offering and takes one seat. It returns
// the new enrollment and the seats left. Errors: sql.ErrNoRows when the
// offering is missing, ErrMissingReference for an unknown student,
// ErrDuplicate, ErrClosed and ErrNoCapacity.
func (r *EnrollmentRepository) Enroll(ctx context.Context, studentID, offeringID string) (*models.Enrollment, int, error) {
	now := time.Now().UTC()
	enrollment := &models.Enrollment{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		OfferingID: offeringID,
		Status:     models.EnrollmentStatusEnrolled,
		EnrolledAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	var remaining int

	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		seats, err := lockOffering(ctx, tx, offeringID)
		if err != nil {
			return err
		}

		var exists bool
		const dupQuery = `SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND offering_id = $2)`
		if err := tx.GetContext(ctx, &exists, dupQuery, studentID, offeringID); err != nil {
			return fmt.Errorf("check enrollment: %w", err)
		}
		if exists {
			return ErrDuplicate
		}
		if !seats.Open {
			return ErrClosed
		}
		if seats.CapacityAvailable <= 0 {
			return ErrNoCapacity
		}

		const insert = `INSERT INTO enrollments (id, student_id, offering_id, status, enrolled_at, created_at, updated_at)
            VALUES (:id, :student_id, :offering_id, :status, :enrolled_at, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
			switch {
			case isUniqueViolation(err):
				return ErrDuplicate
			case isForeignKeyViolation(err):
				return ErrMissingReference
			}
			return fmt.Errorf("insert enrollment: %w", err)
		}

		const take = `UPDATE course_offerings SET capacity_available = capacity_available - 1, updated_at = $2 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, take, offeringID, now); err != nil {
			return fmt.Errorf("take seat: %w", err)
		}
		remaining = seats.CapacityAvailable - 1
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return enrollment, remaining, nil
}

func withdrawTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	const find = `SELECT id, student_id, offering_id, status, enrolled_at, created_at, updated_at FROM enrollments WHERE id = $1`
	if err := tx.GetContext(ctx, &enrollment, find, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	if _, err := lockOffering(ctx, tx, enrollment.OfferingID); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sql.ErrNoRows
	}

	const release = `UPDATE course_offerings SET capacity_available = LEAST(capacity_available + 1, capacity_max), updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, release, enrollment.OfferingID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("release seat: %w", err)
	}
	return &enrollment, nil
}

// Withdraw deletes an enrollment and gives its seat back.
func (r *EnrollmentRepository) Withdraw(ctx context.Context, id string) (*models.Enrollment, error) {
	var withdrawn *models.Enrollment
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		enrollment, err := withdrawTx(ctx, tx, id)
		if err != nil {
			return err
		}
		withdrawn = enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// WithdrawMany withdraws several enrollments in a single transaction.
func (r *EnrollmentRepository) WithdrawMany(ctx context.Context, ids []string) ([]models.Enrollment, error) {
	withdrawn := make([]models.Enrollment, 0, len(ids))
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, id := range ids {
			enrollment, err := withdrawTx(ctx, tx, id)
			if err != nil {
				return err
			}
			withdrawn = append(withdrawn, *enrollment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// UpdateStatus changes the enrollment status. Seats are not affected.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
