package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/repository"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
	"github.com/noah-isme/casa-azul-api/pkg/events"
)

type enrollmentLedger interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindByStudentCoursePeriod(ctx context.Context, studentID, courseID, periodID string) ([]models.EnrollmentDetail, error)
	Enroll(ctx context.Context, studentID, offeringID string) (*models.Enrollment, int, error)
	Withdraw(ctx context.Context, id string) (*models.Enrollment, error)
	WithdrawMany(ctx context.Context, ids []string) ([]models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type offeringLookup interface {
	FindByCoursePeriod(ctx context.Context, courseID, periodID string, section *string) ([]models.CourseOffering, error)
}

// EnrollRequest registers a student in one offering.
type EnrollRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	OfferingID string `json:"offering_id" validate:"required"`
}

// EnrollInCourseRequest registers a student in every offering of a course
// within a period, optionally limited to one section.
type EnrollInCourseRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	CourseID  string  `json:"course_id" validate:"required"`
	PeriodID  string  `json:"period_id" validate:"required"`
	Section   *string `json:"section" validate:"omitempty,max=10"`
}

// WithdrawCourseRequest withdraws a student from a course within a period.
type WithdrawCourseRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	PeriodID  string `json:"period_id" validate:"required"`
}

// UpdateEnrollmentStatusRequest changes an enrollment status.
type UpdateEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=ENROLLED WITHDRAWN FROZEN"`
}

// EnrollmentService exposes the enrollment ledger.
type EnrollmentService struct {
	ledger    enrollmentLedger
	students  studentReader
	offerings offeringLookup
	access    *AccessService
	notifier  *ChangeNotifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(ledger enrollmentLedger, students studentReader, offerings offeringLookup, access *AccessService, notifier *ChangeNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		ledger:    ledger,
		students:  students,
		offerings: offerings,
		access:    access,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return appErrors.Kind(err)
}

// enrollError maps ledger sentinels onto the error taxonomy.
func enrollError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "offering not found")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, "student already enrolled in offering")
	case errors.Is(err, repository.ErrClosed):
		return appErrors.Clone(appErrors.ErrConflict, "offering is closed for enrollment")
	case errors.Is(err, repository.ErrNoCapacity):
		return appErrors.Clone(appErrors.ErrCapacityExceeded, "no seats available in offering")
	case errors.Is(err, repository.ErrMissingReference):
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
}

// List returns enrollments. Teachers only see their own offerings.
func (s *EnrollmentService) List(ctx context.Context, p models.Principal, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	scope, err := s.access.TeacherScope(p)
	if err != nil {
		return nil, nil, err
	}
	if scope != "" {
		filter.TeacherID = scope
	}
	if p.IsStudent() {
		if p.StudentID == nil {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "account has no student profile")
		}
		filter.StudentID = *p.StudentID
	}
	enrollments, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a single enrollment the principal may read.
func (s *EnrollmentService) Get(ctx context.Context, p models.Principal, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeEnrollmentRead(p, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *EnrollmentService) load(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return loadEnrollment(ctx, s.ledger, id)
}

func (s *EnrollmentService) requireActiveStudent(ctx context.Context, id string) error {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status != models.StudentStatusActive {
		return appErrors.Clone(appErrors.ErrValidation, "student is not active")
	}
	return nil
}

// Enroll registers a student in an offering and takes one seat.
func (s *EnrollmentService) Enroll(ctx context.Context, p models.Principal, req EnrollRequest) (*dto.EnrollResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if err := s.requireActiveStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}
	enrollment, remaining, err := s.ledger.Enroll(ctx, req.StudentID, req.OfferingID)
	if err != nil {
		err = enrollError(err)
		s.metrics.RecordLedgerOp("enrollment", "enroll", outcome(err))
		return nil, err
	}
	s.metrics.RecordLedgerOp("enrollment", "enroll", "ok")
	s.notifier.Notify(ctx, events.EnrollmentCreated, p.UserID, enrollment)
	return &dto.EnrollResult{Enrollment: *enrollment, CapacityAvailable: remaining}, nil
}

// EnrollInCourse tries every matching offering. Successful enrollments stay
// committed; failures are reported per offering id.
func (s *EnrollmentService) EnrollInCourse(ctx context.Context, p models.Principal, req EnrollInCourseRequest) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if err := s.requireActiveStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}
	offerings, err := s.offerings.FindByCoursePeriod(ctx, req.CourseID, req.PeriodID, req.Section)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offerings")
	}
	if len(offerings) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no offerings for course in period")
	}

	result := models.NewBatchResult(len(offerings))
	for _, offering := range offerings {
		enrollment, _, err := s.ledger.Enroll(ctx, req.StudentID, offering.ID)
		if err != nil {
			err = enrollError(err)
			s.metrics.RecordLedgerOp("enrollment", "enroll", outcome(err))
			result.Fail(offering.ID, appErrors.Kind(err), appErrors.FromError(err).Message)
			continue
		}
		result.Succeeded++
		s.metrics.RecordLedgerOp("enrollment", "enroll", "ok")
		s.notifier.Notify(ctx, events.EnrollmentCreated, p.UserID, enrollment)
	}
	s.metrics.RecordBatchErrors("enroll_course", result.Errors)
	if len(result.Errors) > 0 {
		s.logger.Info("course enrollment partially applied",
			zap.String("student_id", req.StudentID),
			zap.String("course_id", req.CourseID),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", len(result.Errors)))
	}
	return result, nil
}

// UpdateStatus changes the status of an enrollment without touching seats.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if err := s.ledger.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	s.metrics.RecordLedgerOp("enrollment", "status", "ok")
	return s.load(ctx, id)
}

// Withdraw removes an enrollment and releases its seat.
func (s *EnrollmentService) Withdraw(ctx context.Context, p models.Principal, id string) (*models.Enrollment, error) {
	enrollment, err := s.ledger.Withdraw(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		} else {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
		}
		s.metrics.RecordLedgerOp("enrollment", "withdraw", outcome(err))
		return nil, err
	}
	s.metrics.RecordLedgerOp("enrollment", "withdraw", "ok")
	s.notifier.Notify(ctx, events.EnrollmentWithdrawn, p.UserID, enrollment)
	return enrollment, nil
}

// WithdrawAllForCourse withdraws the student from every offering of the
// course in the period and returns how many enrollments were removed.
func (s *EnrollmentService) WithdrawAllForCourse(ctx context.Context, p models.Principal, req WithdrawCourseRequest) (*dto.WithdrawCount, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid withdrawal payload")
	}
	current, err := s.ledger.FindByStudentCoursePeriod(ctx, req.StudentID, req.CourseID, req.PeriodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	if len(current) == 0 {
		return &dto.WithdrawCount{}, nil
	}
	ids := make([]string, 0, len(current))
	for _, enrollment := range current {
		ids = append(ids, enrollment.ID)
	}
	withdrawn, err := s.ledger.WithdrawMany(ctx, ids)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrConflict, "enrollments changed during withdrawal")
		} else {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollments")
		}
		s.metrics.RecordLedgerOp("enrollment", "withdraw", outcome(err))
		return nil, err
	}
	for i := range withdrawn {
		s.metrics.RecordLedgerOp("enrollment", "withdraw", "ok")
		s.notifier.Notify(ctx, events.EnrollmentWithdrawn, p.UserID, &withdrawn[i])
	}
	return &dto.WithdrawCount{Withdrawn: len(withdrawn)}, nil
}
