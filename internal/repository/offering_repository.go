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

const offeringColumns = `o.id, o.course_id, o.period_id, o.teacher_id, o.section, o.capacity_max, o.capacity_available, o.open, o.created_at, o.updated_at`

const offeringDetailSelect = `SELECT ` + offeringColumns + `,
        c.code AS course_code, c.name AS course_name, p.name AS period_name,
        CASE WHEN t.id IS NULL THEN NULL ELSE t.first_name || ' ' || t.last_name END AS teacher_name
        FROM course_offerings o
        JOIN courses c ON c.id = o.course_id
        JOIN academic_periods p ON p.id = o.period_id
        LEFT JOIN teachers t ON t.id = o.teacher_id`

// OfferingRepository persists course offerings and their seat counters.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository constructs the repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

// List returns offerings with course, period and teacher names.
func (r *OfferingRepository) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error) {
	var w where
	if filter.CourseID != "" {
		w.add("o.course_id = ?", filter.CourseID)
	}
	if filter.PeriodID != "" {
		w.add("o.period_id = ?", filter.PeriodID)
	}
	if filter.TeacherID != "" {
		w.add("o.teacher_id = ?", filter.TeacherID)
	}
	if filter.OpenOnly {
		w.conditions = append(w.conditions, "o.open = TRUE AND o.capacity_available > 0")
	}
	window := listWindow(map[string]string{
		"course_name": "c.name",
		"section":     "o.section",
		"available":   "o.capacity_available",
		"created_at":  "o.created_at",
	}, filter.SortBy, "course_name", filter.SortOrder, "ASC", filter.Page, filter.PageSize)

	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, offeringDetailSelect+w.clause()+window, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list offerings: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM course_offerings o JOIN courses c ON c.id = o.course_id"+w.clause(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count offerings: %w", err)
	}
	return offerings, total, nil
}

// FindByID returns an offering detail or sql.ErrNoRows.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	var offering models.OfferingDetail
	if err := r.db.GetContext(ctx, &offering, offeringDetailSelect+" WHERE o.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find offering: %w", err)
	}
	return &offering, nil
}

// FindByCoursePeriod resolves the offerings of a course in a period,
// optionally narrowed to one section.
func (r *OfferingRepository) FindByCoursePeriod(ctx context.Context, courseID, periodID string, section *string) ([]models.CourseOffering, error) {
	query := `SELECT ` + offeringColumns + ` FROM course_offerings o WHERE o.course_id = $1 AND o.period_id = $2`
	args := []interface{}{courseID, periodID}
	if section != nil && *section != "" {
		query += " AND o.section = $3"
		args = append(args, *section)
	}
	query += " ORDER BY o.section"
	var offerings []models.CourseOffering
	if err := r.db.SelectContext(ctx, &offerings, query, args...); err != nil {
		return nil, fmt.Errorf("find offerings by course: %w", err)
	}
	return offerings, nil
}

// ListByTeacherPeriod returns the offerings a teacher owns in a period.
func (r *OfferingRepository) ListByTeacherPeriod(ctx context.Context, teacherID, periodID string) ([]models.OfferingDetail, error) {
	var offerings []models.OfferingDetail
	query := offeringDetailSelect + " WHERE o.teacher_id = $1"
	args := []interface{}{teacherID}
	if periodID != "" {
		query += " AND o.period_id = $2"
		args = append(args, periodID)
	}
	query += " ORDER BY c.name, o.section"
	if err := r.db.SelectContext(ctx, &offerings, query, args...); err != nil {
		return nil, fmt.Errorf("list teacher offerings: %w", err)
	}
	return offerings, nil
}

// Create inserts an offering with every seat available. Unknown course,
// period or teacher ids yield ErrMissingReference.
func (r *OfferingRepository) Create(ctx context.Context, offering *models.CourseOffering) error {
	now := time.Now().UTC()
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	offering.CapacityAvailable = offering.CapacityMax
	offering.CreatedAt, offering.UpdatedAt = now, now
	const query = `INSERT INTO course_offerings (id, course_id, period_id, teacher_id, section, capacity_max, capacity_available, open, created_at, updated_at)
        VALUES (:id, :course_id, :period_id, :teacher_id, :section, :capacity_max, :capacity_available, :open, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, offering); err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrDuplicate
		case isForeignKeyViolation(err):
			return ErrMissingReference
		}
		return fmt.Errorf("create offering: %w", err)
	}
	return nil
}

func lockOfferingRow(ctx context.Context, tx *sqlx.Tx, id string) (*models.CourseOffering, error) {
	var offering models.CourseOffering
	if err := tx.GetContext(ctx, &offering, `SELECT `+offeringColumns+` FROM course_offerings o WHERE o.id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock offering: %w", err)
	}
	return &offering, nil
}

// Update applies section, open flag and capacity changes in one transaction
// holding the offering row lock. Capacity keeps the seats already taken;
// shrinking below them yields ErrCapacityTooLow and nothing is written.
func (r *OfferingRepository) Update(ctx context.Context, id string, changes models.OfferingChanges) (*models.CourseOffering, error) {
	var updated models.CourseOffering
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		current, err := lockOfferingRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if changes.CapacityMax != nil && *changes.CapacityMax < current.SeatsTaken() {
			return ErrCapacityTooLow
		}
		updated = changes.Apply(*current)
		updated.UpdatedAt = time.Now().UTC()
		const query = `UPDATE course_offerings SET section = $2, open = $3, capacity_max = $4, capacity_available = $5, updated_at = $6 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, id, updated.Section, updated.Open, updated.CapacityMax, updated.CapacityAvailable, updated.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("update offering: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AssignTeacher sets or clears the owning teacher. An unknown teacher id
// yields ErrMissingReference.
func (r *OfferingRepository) AssignTeacher(ctx context.Context, id string, teacherID *string) error {
	const query = `UPDATE course_offerings SET teacher_id = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, teacherID, time.Now().UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrMissingReference
		}
		return fmt.Errorf("assign teacher: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an offering that has no enrollments. The row lock makes a
// concurrent enroll wait for the outcome.
func (r *OfferingRepository) Delete(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := lockOfferingRow(ctx, tx, id); err != nil {
			return err
		}
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM enrollments WHERE offering_id = $1)`, id); err != nil {
			return fmt.Errorf("check offering enrollments: %w", err)
		}
		if exists {
			return ErrStillReferenced
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM course_offerings WHERE id = $1`, id); err != nil {
			if isForeignKeyViolation(err) {
				return ErrStillReferenced
			}
			return fmt.Errorf("delete offering: %w", err)
		}
		return nil
	})
}

// Roster returns the students enrolled in an offering.
func (r *OfferingRepository) Roster(ctx context.Context, offeringID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.id AS enrollment_id, s.id AS student_id, s.national_id, s.first_name, s.last_name, e.status, e.enrolled_at
        FROM enrollments e JOIN students s ON s.id = e.student_id
        WHERE e.offering_id = $1 ORDER BY s.last_name, s.first_name`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, offeringID); err != nil {
		return nil, fmt.Errorf("offering roster: %w", err)
	}
	return roster, nil
}
