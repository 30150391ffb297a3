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

const periodColumns = `id, name, year, term, start_date, end_date, active, created_at, updated_at`

// PeriodRepository persists academic periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository constructs the repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// List returns every period, most recent first.
func (r *PeriodRepository) List(ctx context.Context) ([]models.AcademicPeriod, error) {
	var periods []models.AcademicPeriod
	if err := r.db.SelectContext(ctx, &periods, "SELECT "+periodColumns+" FROM academic_periods ORDER BY year DESC, term DESC"); err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// FindByID returns a period or sql.ErrNoRows.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	var period models.AcademicPeriod
	if err := r.db.GetContext(ctx, &period, "SELECT "+periodColumns+" FROM academic_periods WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find period: %w", err)
	}
	return &period, nil
}

// FindActive returns the active period. Uniqueness of the flag is not
// enforced, so the most recent active one wins.
func (r *PeriodRepository) FindActive(ctx context.Context) (*models.AcademicPeriod, error) {
	var period models.AcademicPeriod
	query := "SELECT " + periodColumns + " FROM academic_periods WHERE active = TRUE ORDER BY year DESC, term DESC LIMIT 1"
	if err := r.db.GetContext(ctx, &period, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find active period: %w", err)
	}
	return &period, nil
}

// Create inserts a period. (year, term) is unique.
func (r *PeriodRepository) Create(ctx context.Context, period *models.AcademicPeriod) error {
	now := time.Now().UTC()
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	period.CreatedAt, period.UpdatedAt = now, now
	const query = `INSERT INTO academic_periods (` + periodColumns + `)
        VALUES (:id, :name, :year, :term, :start_date, :end_date, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create period: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a period.
func (r *PeriodRepository) Update(ctx context.Context, period *models.AcademicPeriod) error {
	period.UpdatedAt = time.Now().UTC()
	const query = `UPDATE academic_periods SET name = :name, year = :year, term = :term, start_date = :start_date,
        end_date = :end_date, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update period: %w", err)
	}
	return nil
}
