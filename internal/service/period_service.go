package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/repository"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type periodRepository interface {
	List(ctx context.Context) ([]models.AcademicPeriod, error)
	FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error)
	FindActive(ctx context.Context) (*models.AcademicPeriod, error)
	Create(ctx context.Context, period *models.AcademicPeriod) error
	Update(ctx context.Context, period *models.AcademicPeriod) error
}

// PeriodRequest holds the payload for creating or updating an academic period.
type PeriodRequest struct {
	Name      string `json:"name" validate:"required,max=50"`
	Year      int    `json:"year" validate:"required,gte=2000,lte=2100"`
	Term      int    `json:"term" validate:"required,gte=1,lte=4"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Active    bool   `json:"active"`
}

// PeriodService manages academic periods.
type PeriodService struct {
	repo      periodRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPeriodService constructs the period service.
func NewPeriodService(repo periodRepository, validate *validator.Validate, logger *zap.Logger) *PeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{repo: repo, validator: validate, logger: logger}
}

// List returns every period, newest first.
func (s *PeriodService) List(ctx context.Context) ([]models.AcademicPeriod, error) {
	periods, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list periods")
	}
	if periods == nil {
		periods = []models.AcademicPeriod{}
	}
	return periods, nil
}

// Get returns a period by id.
func (s *PeriodService) Get(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	return period, nil
}

// Active returns the active period.
func (s *PeriodService) Active(ctx context.Context) (*models.AcademicPeriod, error) {
	period, err := s.repo.FindActive(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active period")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active period")
	}
	return period, nil
}

// Create adds a period. (year, term) is unique.
func (s *PeriodService) Create(ctx context.Context, req PeriodRequest) (*models.AcademicPeriod, error) {
	period := &models.AcademicPeriod{}
	if err := s.apply(period, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, period); err != nil {
		return nil, s.writeError(err, "failed to create period")
	}
	return period, nil
}

// Update overwrites a period.
func (s *PeriodService) Update(ctx context.Context, id string, req PeriodRequest) (*models.AcademicPeriod, error) {
	period, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(period, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, period); err != nil {
		return nil, s.writeError(err, "failed to update period")
	}
	return period, nil
}

func (s *PeriodService) apply(period *models.AcademicPeriod, req PeriodRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return err
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return err
	}
	if !end.After(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}
	period.Name = strings.TrimSpace(req.Name)
	period.Year = req.Year
	period.Term = req.Term
	period.StartDate = start
	period.EndDate = end
	period.Active = req.Active
	return nil
}

func (s *PeriodService) writeError(err error, msg string) error {
	switch {
	case isNoRows(err):
		return appErrors.Clone(appErrors.ErrNotFound, "period not found")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, "period already exists for year and term")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
	}
}
