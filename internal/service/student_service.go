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

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByNationalID(ctx context.Context, nationalID, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error
	Delete(ctx context.Context, id string) error
}

type studentHistory interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

// StudentRequest holds the payload for creating or updating a student.
type StudentRequest struct {
	NationalID string  `json:"national_id" validate:"required,max=20"`
	FirstName  string  `json:"first_name" validate:"required,max=100"`
	LastName   string  `json:"last_name" validate:"required,max=100"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Phone      *string `json:"phone" validate:"omitempty,max=30"`
	Address    *string `json:"address" validate:"omitempty,max=255"`
	BirthDate  *string `json:"birth_date"`
}

// UpdateStudentStatusRequest changes a student's lifecycle status.
type UpdateStudentStatusRequest struct {
	Status models.StudentStatus `json:"status" validate:"required,oneof=ACTIVE INACTIVE GRADUATED"`
}

// StudentService handles student records.
type StudentService struct {
	repo      studentRepository
	history   studentHistory
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, history studentHistory, access *AccessService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, history: history, access: access, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, p models.Principal, id string) (*models.Student, error) {
	if err := s.access.AuthorizeStudentRead(p, id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *StudentService) load(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a student. National ids are unique.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	student := &models.Student{Status: models.StudentStatusActive}
	if err := s.apply(ctx, student, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, s.writeError(err, "failed to create student")
	}
	s.logger.Info("student created", zap.String("student_id", student.ID))
	return student, nil
}

// Update overwrites a student's profile. Status is changed through UpdateStatus.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*models.Student, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, student, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, s.writeError(err, "failed to update student")
	}
	return student, nil
}

func (s *StudentService) apply(ctx context.Context, student *models.Student, req StudentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	birth, err := parseOptionalDate(req.BirthDate)
	if err != nil {
		return err
	}
	nationalID := strings.TrimSpace(req.NationalID)
	exists, err := s.repo.ExistsByNationalID(ctx, nationalID, student.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check national id")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "national id already registered")
	}
	student.NationalID = nationalID
	student.FirstName = strings.TrimSpace(req.FirstName)
	student.LastName = strings.TrimSpace(req.LastName)
	student.Email = req.Email
	student.Phone = req.Phone
	student.Address = req.Address
	student.BirthDate = birth
	return nil
}

// UpdateStatus changes a student's lifecycle status.
func (s *StudentService) UpdateStatus(ctx context.Context, id string, req UpdateStudentStatusRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, s.writeError(err, "failed to update student status")
	}
	return s.load(ctx, id)
}

// Delete removes a student without enrollments.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStillReferenced) {
			return appErrors.Clone(appErrors.ErrConflict, "student has enrollments")
		}
		return s.writeError(err, "failed to delete student")
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

// History lists every enrollment of a student with offering details.
func (s *StudentService) History(ctx context.Context, p models.Principal, id string) ([]models.EnrollmentDetail, error) {
	if err := s.access.AuthorizeStudentRead(p, id); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	enrollments, err := s.history.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student history")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	return enrollments, nil
}

func (s *StudentService) writeError(err error, msg string) error {
	switch {
	case isNoRows(err):
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, "national id already registered")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
	}
}
