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

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, id string) error
}

type teacherOfferings interface {
	ListByTeacherPeriod(ctx context.Context, teacherID, periodID string) ([]models.OfferingDetail, error)
}

// TeacherRequest holds the payload for creating or updating a teacher.
type TeacherRequest struct {
	NationalID string  `json:"national_id" validate:"required,max=20"`
	FirstName  string  `json:"first_name" validate:"required,max=100"`
	LastName   string  `json:"last_name" validate:"required,max=100"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Phone      *string `json:"phone" validate:"omitempty,max=30"`
	Specialty  *string `json:"specialty" validate:"omitempty,max=100"`
	Active     *bool   `json:"active"`
}

// TeacherService manages teacher profiles.
type TeacherService struct {
	repo      teacherRepository
	offerings teacherOfferings
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs the teacher service.
func NewTeacherService(repo teacherRepository, offerings teacherOfferings, access *AccessService, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, offerings: offerings, access: access, validator: validate, logger: logger}
}

// List returns teachers with pagination metadata.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a teacher. New teachers are active unless stated.
func (s *TeacherService) Create(ctx context.Context, req TeacherRequest) (*models.Teacher, error) {
	teacher := &models.Teacher{Active: true}
	if err := s.apply(teacher, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, s.writeError(err, "failed to create teacher")
	}
	s.logger.Info("teacher created", zap.String("teacher_id", teacher.ID))
	return teacher, nil
}

// Update overwrites a teacher profile.
func (s *TeacherService) Update(ctx context.Context, id string, req TeacherRequest) (*models.Teacher, error) {
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(teacher, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, teacher); err != nil {
		return nil, s.writeError(err, "failed to update teacher")
	}
	return teacher, nil
}

func (s *TeacherService) apply(teacher *models.Teacher, req TeacherRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	teacher.NationalID = strings.TrimSpace(req.NationalID)
	teacher.FirstName = strings.TrimSpace(req.FirstName)
	teacher.LastName = strings.TrimSpace(req.LastName)
	teacher.Email = req.Email
	teacher.Phone = req.Phone
	teacher.Specialty = req.Specialty
	if req.Active != nil {
		teacher.Active = *req.Active
	}
	return nil
}

// Delete removes a teacher. Their offerings become unassigned.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.writeError(err, "failed to delete teacher")
	}
	s.logger.Info("teacher deleted", zap.String("teacher_id", id))
	return nil
}

// Offerings lists the offerings a teacher owns, optionally within one period.
// Teachers may only list their own.
func (s *TeacherService) Offerings(ctx context.Context, p models.Principal, teacherID, periodID string) ([]models.OfferingDetail, error) {
	if err := s.access.AuthorizeOffering(p, &teacherID); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, teacherID); err != nil {
		return nil, err
	}
	offerings, err := s.offerings.ListByTeacherPeriod(ctx, teacherID, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher offerings")
	}
	if offerings == nil {
		offerings = []models.OfferingDetail{}
	}
	return offerings, nil
}

func (s *TeacherService) writeError(err error, msg string) error {
	switch {
	case isNoRows(err):
		return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, "national id already registered")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
	}
}
