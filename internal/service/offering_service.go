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

type offeringRepository interface {
	List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.OfferingDetail, error)
	Create(ctx context.Context, offering *models.CourseOffering) error
	Update(ctx context.Context, id string, changes models.OfferingChanges) (*models.CourseOffering, error)
	AssignTeacher(ctx context.Context, id string, teacherID *string) error
	Delete(ctx context.Context, id string) error
	Roster(ctx context.Context, offeringID string) ([]models.RosterEntry, error)
}

// CreateOfferingRequest opens a new section of a course in a period.
type CreateOfferingRequest struct {
	CourseID    string  `json:"course_id" validate:"required"`
	PeriodID    string  `json:"period_id" validate:"required"`
	TeacherID   *string `json:"teacher_id"`
	Section     string  `json:"section" validate:"required,max=10"`
	CapacityMax int     `json:"capacity_max" validate:"required,gte=1,lte=500"`
	Open        *bool   `json:"open"`
}

// UpdateOfferingRequest changes section, open flag and capacity. Omitted
// fields keep their value.
type UpdateOfferingRequest struct {
	Section     *string `json:"section" validate:"omitempty,max=10"`
	CapacityMax *int    `json:"capacity_max" validate:"omitempty,gte=1,lte=500"`
	Open        *bool   `json:"open"`
}

// AssignTeacherRequest sets or clears the owning teacher.
type AssignTeacherRequest struct {
	TeacherID *string `json:"teacher_id"`
}

// OfferingService manages course offerings and their capacity.
type OfferingService struct {
	repo      offeringRepository
	access    *AccessService
	notifier  *ChangeNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOfferingService constructs the offering service.
func NewOfferingService(repo offeringRepository, access *AccessService, notifier *ChangeNotifier, validate *validator.Validate, logger *zap.Logger) *OfferingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfferingService{repo: repo, access: access, notifier: notifier, validator: validate, logger: logger}
}

// List returns offerings. Teachers only see their own.
func (s *OfferingService) List(ctx context.Context, p models.Principal, filter models.OfferingFilter) ([]models.OfferingDetail, *models.Pagination, error) {
	scope, err := s.access.TeacherScope(p)
	if err != nil {
		return nil, nil, err
	}
	if scope != "" {
		filter.TeacherID = scope
	}
	offerings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}
	return offerings, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Available lists open offerings of a course in a period that still have seats.
func (s *OfferingService) Available(ctx context.Context, courseID, periodID string) ([]models.OfferingDetail, error) {
	if courseID == "" || periodID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course_id and period_id are required")
	}
	offerings, _, err := s.repo.List(ctx, models.OfferingFilter{CourseID: courseID, PeriodID: periodID, OpenOnly: true, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available offerings")
	}
	if offerings == nil {
		offerings = []models.OfferingDetail{}
	}
	return offerings, nil
}

// Get returns an offering. Teachers may only read their own.
func (s *OfferingService) Get(ctx context.Context, p models.Principal, id string) (*models.OfferingDetail, error) {
	offering, err := loadOffering(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, offering.TeacherID); err != nil {
		return nil, err
	}
	return offering, nil
}

// Create opens an offering with every seat available.
func (s *OfferingService) Create(ctx context.Context, req CreateOfferingRequest) (*models.OfferingDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	offering := &models.CourseOffering{
		CourseID:    req.CourseID,
		PeriodID:    req.PeriodID,
		TeacherID:   req.TeacherID,
		Section:     strings.TrimSpace(req.Section),
		CapacityMax: req.CapacityMax,
		Open:        req.Open == nil || *req.Open,
	}
	if err := s.repo.Create(ctx, offering); err != nil {
		return nil, s.writeError(err, "failed to create offering")
	}
	s.notifier.Touch(ctx)
	s.logger.Info("offering created", zap.String("offering_id", offering.ID), zap.Int("capacity", offering.CapacityMax))
	return loadOffering(ctx, s.repo, offering.ID)
}

// Update changes an offering. Capacity changes keep the seats already taken;
// shrinking below them is rejected and leaves the offering untouched.
func (s *OfferingService) Update(ctx context.Context, id string, req UpdateOfferingRequest) (*models.OfferingDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	changes := models.OfferingChanges{Open: req.Open, CapacityMax: req.CapacityMax}
	if req.Section != nil {
		section := strings.TrimSpace(*req.Section)
		if section == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "section cannot be blank")
		}
		changes.Section = &section
	}
	if _, err := s.repo.Update(ctx, id, changes); err != nil {
		return nil, s.writeError(err, "failed to update offering")
	}
	s.notifier.Touch(ctx)
	return loadOffering(ctx, s.repo, id)
}

// AssignTeacher sets or clears the owning teacher.
func (s *OfferingService) AssignTeacher(ctx context.Context, id string, req AssignTeacherRequest) (*models.OfferingDetail, error) {
	teacherID := req.TeacherID
	if teacherID != nil && strings.TrimSpace(*teacherID) == "" {
		teacherID = nil
	}
	if err := s.repo.AssignTeacher(ctx, id, teacherID); err != nil {
		return nil, s.writeError(err, "failed to assign teacher")
	}
	s.notifier.Touch(ctx)
	return loadOffering(ctx, s.repo, id)
}

// Delete removes an offering without enrollments.
func (s *OfferingService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.writeError(err, "failed to delete offering")
	}
	s.notifier.Touch(ctx)
	s.logger.Info("offering deleted", zap.String("offering_id", id))
	return nil
}

// Roster returns the students enrolled in an offering.
func (s *OfferingService) Roster(ctx context.Context, p models.Principal, id string) ([]models.RosterEntry, error) {
	if _, err := s.Get(ctx, p, id); err != nil {
		return nil, err
	}
	roster, err := s.repo.Roster(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	if roster == nil {
		roster = []models.RosterEntry{}
	}
	return roster, nil
}

func (s *OfferingService) writeError(err error, msg string) error {
	switch {
	case isNoRows(err):
		return appErrors.Clone(appErrors.ErrNotFound, "offering not found")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, "section already exists for course and period")
	case errors.Is(err, repository.ErrCapacityTooLow):
		return appErrors.Clone(appErrors.ErrValidation, "capacity_max is below the seats already taken")
	case errors.Is(err, repository.ErrStillReferenced):
		return appErrors.Clone(appErrors.ErrConflict, "offering has enrollments")
	case errors.Is(err, repository.ErrMissingReference):
		return appErrors.Clone(appErrors.ErrNotFound, "course, period or teacher not found")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
	}
}
