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

const gradeColumns = `g.id, g.enrollment_id, g.label, g.score, g.graded_on, g.notes, g.created_at, g.updated_at`

const gradeDetailSelect = `SELECT ` + gradeColumns + `,
        e.student_id, s.first_name || ' ' || s.last_name AS student_name,
        e.offering_id, c.name AS course_name, o.teacher_id
        FROM grade_entries g
        JOIN enrollments e ON e.id = g.enrollment_id
        JOIN students s ON s.id = e.student_id
        JOIN course_offerings o ON o.id = e.offering_id
        JOIN courses c ON c.id = o.course_id`

// GradeRepository is the grade ledger.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns grade entries matching the filter.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error) {
	var w where
	if filter.OfferingID != "" {
		w.add("e.offering_id = ?", filter.OfferingID)
	}
	if filter.StudentID != "" {
		w.add("e.student_id = ?", filter.StudentID)
	}
	if filter.EnrollmentID != "" {
		w.add("g.enrollment_id = ?", filter.EnrollmentID)
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
	window := listWindow(map[string]string{
		"graded_on":    "g.graded_on",
		"score":        "g.score",
		"student_name": "s.last_name",
	}, filter.SortBy, "graded_on", filter.SortOrder, "DESC", filter.Page, filter.PageSize)

	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, gradeDetailSelect+w.clause()+window, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list grades: %w", err)
	}
	countQuery := `SELECT COUNT(*) FROM grade_entries g
        JOIN enrollments e ON e.id = g.enrollment_id
        JOIN course_offerings o ON o.id = e.offering_id` + w.clause()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, w.args...); err != nil {
		return nil, 0, fmt.Errorf("count grades: %w", err)
	}
	return grades, total, nil
}

// FindDetailByID returns a grade entry with its enrollment context.
func (r *GradeRepository) FindDetailByID(ctx context.Context, id string) (*models.GradeDetail, error) {
	var grade models.GradeDetail
	if err := r.db.GetContext(ctx, &grade, gradeDetailSelect+" WHERE g.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find grade: %w", err)
	}
	return &grade, nil
}

// ListByEnrollments returns the entries of the given enrollments grouped by
// enrollment id.
func (r *GradeRepository) ListByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string][]models.GradeEntry, error) {
	grouped := make(map[string][]models.GradeEntry, len(enrollmentIDs))
	if len(enrollmentIDs) == 0 {
		return grouped, nil
	}
	args := make([]interface{}, len(enrollmentIDs))
	for i, id := range enrollmentIDs {
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT %s FROM grade_entries g WHERE g.enrollment_id IN (%s) ORDER BY g.graded_on, g.created_at`,
		gradeColumns, placeholders(1, len(enrollmentIDs)))
	var grades []models.GradeEntry
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollment grades: %w", err)
	}
	for _, g := range grades {
		grouped[g.EnrollmentID] = append(grouped[g.EnrollmentID], g)
	}
	return grouped, nil
}

// Create inserts one grade entry.
func (r *GradeRepository) Create(ctx context.Context, grade *models.GradeEntry) error {
	now := time.Now().UTC()
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	grade.CreatedAt, grade.UpdatedAt = now, now
	const query = `INSERT INTO grade_entries (id, enrollment_id, label, score, graded_on, notes, created_at, updated_at)
        VALUES (:id, :enrollment_id, :label, :score, :graded_on, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// Update overwrites a grade entry.
func (r *GradeRepository) Update(ctx context.Context, grade *models.GradeEntry) error {
	grade.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grade_entries SET label = :label, score = :score, graded_on = :graded_on, notes = :notes,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	return nil
}

// Delete removes a grade entry.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grade_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
