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

const studentColumns = `id, national_id, first_name, last_name, email, phone, address, birth_date, status, created_at, updated_at`

// StudentRepository persists student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the filter and the total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var w where
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		w.args = append(w.args, like)
		n := len(w.args)
		w.conditions = append(w.conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR national_id ILIKE $%d)", n, n, n))
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	window := listWindow(map[string]string{
		"last_name":  "last_name",
		"first_name": "first_name",
		"created_at": "created_at",
	}, filter.SortBy, "last_name", filter.SortOrder, "ASC", filter.Page, filter.PageSize)

	var students []models.Student
	query := "SELECT " + studentColumns + " FROM students" + w.clause() + window
	if err := r.db.SelectContext(ctx, &students, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"+w.clause(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student or sql.ErrNoRows.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ExistsByNationalID checks national id uniqueness, ignoring excludeID.
func (r *StudentRepository) ExistsByNationalID(ctx context.Context, nationalID, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM students WHERE national_id = $1 AND id <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, nationalID, excludeID); err != nil {
		return false, fmt.Errorf("check student national id: %w", err)
	}
	return exists, nil
}

// Create inserts a student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	student.CreatedAt, student.UpdatedAt = now, now
	const query = `INSERT INTO students (` + studentColumns + `)
        VALUES (:id, :national_id, :first_name, :last_name, :email, :phone, :address, :birth_date, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET national_id = :national_id, first_name = :first_name, last_name = :last_name,
        email = :email, phone = :phone, address = :address, birth_date = :birth_date, status = :status, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateStatus changes the lifecycle status.
func (r *StudentRepository) UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error {
	const query = `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a student that has no enrollments. Students with
// enrollments yield ErrStillReferenced.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM students s WHERE s.id = $1
        AND NOT EXISTS (SELECT 1 FROM enrollments e WHERE e.student_id = s.id)`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrStillReferenced
		}
		return fmt.Errorf("delete student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)`, id); err != nil {
			return fmt.Errorf("check student: %w", err)
		}
		if exists {
			return ErrStillReferenced
		}
		return sql.ErrNoRows
	}
	return nil
}
