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

const teacherColumns = `id, national_id, first_name, last_name, email, phone, specialty, active, created_at, updated_at`

// TeacherRepository persists teacher profiles.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs the repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers matching the filter and the total count.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	var w where
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		w.args = append(w.args, like)
		n := len(w.args)
		w.conditions = append(w.conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR specialty ILIKE $%d)", n, n, n))
	}
	if filter.Active != nil {
		w.add("active = ?", *filter.Active)
	}
	window := listWindow(map[string]string{
		"last_name":  "last_name",
		"specialty":  "specialty",
		"created_at": "created_at",
	}, filter.SortBy, "last_name", filter.SortOrder, "ASC", filter.Page, filter.PageSize)

	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, "SELECT "+teacherColumns+" FROM teachers"+w.clause()+window, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM teachers"+w.clause(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID returns a teacher or sql.ErrNoRows.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, "SELECT "+teacherColumns+" FROM teachers WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher: %w", err)
	}
	return &teacher, nil
}

// Create inserts a teacher.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	now := time.Now().UTC()
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	teacher.CreatedAt, teacher.UpdatedAt = now, now
	const query = `INSERT INTO teachers (` + teacherColumns + `)
        VALUES (:id, :national_id, :first_name, :last_name, :email, :phone, :specialty, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a teacher.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET national_id = :national_id, first_name = :first_name, last_name = :last_name,
        email = :email, phone = :phone, specialty = :specialty, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// Delete removes a teacher. Offerings referencing it are unassigned by the
// foreign key's ON DELETE SET NULL.
func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
