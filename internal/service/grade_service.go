package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
	"github.com/noah-isme/casa-azul-api/pkg/events"
)

type gradeLedger interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.GradeDetail, error)
	Create(ctx context.Context, grade *models.GradeEntry) error
	Update(ctx context.Context, grade *models.GradeEntry) error
	Delete(ctx context.Context, id string) error
}

type ledgerEnrollments interface {
	enrollmentReader
	MembersOf(ctx context.Context, offeringID string, enrollmentIDs []string) (map[string]bool, error)
}

type offeringReader interface {
	FindByID(ctx context.Context, id string) (*models.OfferingDetail, error)
}

// AddGradeRequest records one score for an enrollment.
type AddGradeRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	Label        string  `json:"label" validate:"required,max=100"`
	Score        float64 `json:"score"`
	GradedOn     string  `json:"graded_on" validate:"required"`
	Notes        *string `json:"notes" validate:"omitempty,max=500"`
}

// UpdateGradeRequest replaces the editable fields of a grade entry.
type UpdateGradeRequest struct {
	Label    string  `json:"label" validate:"required,max=100"`
	Score    float64 `json:"score"`
	GradedOn string  `json:"graded_on" validate:"required"`
	Notes    *string `json:"notes" validate:"omitempty,max=500"`
}

// BulkGradeEntry is one row of a bulk grade upload.
type BulkGradeEntry struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	Score        float64 `json:"score"`
	Notes        *string `json:"notes" validate:"omitempty,max=500"`
}

// BulkGradeRequest records the same label and date for many enrollments of
// one offering.
type BulkGradeRequest struct {
	OfferingID string           `json:"offering_id" validate:"required"`
	Label      string           `json:"label" validate:"required,max=100"`
	GradedOn   string           `json:"graded_on" validate:"required"`
	Entries    []BulkGradeEntry `json:"entries" validate:"required,min=1,dive"`
}

// GradeService exposes the grade ledger.
type GradeService struct {
	ledger      gradeLedger
	enrollments ledgerEnrollments
	offerings   offeringReader
	aggregate   *AggregationService
	access      *AccessService
	notifier    *ChangeNotifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeService constructs the grade service.
func NewGradeService(ledger gradeLedger, enrollments ledgerEnrollments, offerings offeringReader, aggregate *AggregationService, access *AccessService, notifier *ChangeNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		ledger:      ledger,
		enrollments: enrollments,
		offerings:   offerings,
		aggregate:   aggregate,
		access:      access,
		notifier:    notifier,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

func loadOffering(ctx context.Context, offerings offeringReader, id string) (*models.OfferingDetail, error) {
	offering, err := offerings.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return offering, nil
}

// List returns grade entries. Teachers see their offerings, students their
// own entries.
func (s *GradeService) List(ctx context.Context, p models.Principal, filter models.GradeFilter) ([]models.GradeDetail, *models.Pagination, error) {
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
	grades, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a grade entry the principal may read.
func (s *GradeService) Get(ctx context.Context, p models.Principal, id string) (*models.GradeDetail, error) {
	grade, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeRecordRead(p, grade.StudentID, grade.TeacherID); err != nil {
		return nil, err
	}
	return grade, nil
}

func (s *GradeService) load(ctx context.Context, id string) (*models.GradeDetail, error) {
	grade, err := s.ledger.FindDetailByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	return grade, nil
}

// Add records a grade for an enrollment of an offering the caller owns.
func (s *GradeService) Add(ctx context.Context, p models.Principal, req AddGradeRequest) (*models.GradeEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if err := s.aggregate.Policy().ValidateScore(req.Score); err != nil {
		return nil, err
	}
	gradedOn, err := parseDate(req.GradedOn)
	if err != nil {
		return nil, err
	}
	enrollment, err := loadEnrollment(ctx, s.enrollments, req.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, enrollment.TeacherID); err != nil {
		return nil, err
	}

	grade := &models.GradeEntry{
		EnrollmentID: enrollment.ID,
		Label:        strings.TrimSpace(req.Label),
		Score:        req.Score,
		GradedOn:     gradedOn,
		Notes:        req.Notes,
	}
	if err := s.ledger.Create(ctx, grade); err != nil {
		s.metrics.RecordLedgerOp("grade", "add", appErrors.ErrInternal.Code)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record grade")
	}
	s.metrics.RecordLedgerOp("grade", "add", "ok")
	s.notifier.Notify(ctx, events.GradesRecorded, p.UserID, map[string]interface{}{
		"offering_id": enrollment.OfferingID,
		"label":       grade.Label,
		"grades":      []models.GradeEntry{*grade},
	})
	return grade, nil
}

// Update edits a grade entry.
func (s *GradeService) Update(ctx context.Context, p models.Principal, id string, req UpdateGradeRequest) (*models.GradeEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if err := s.aggregate.Policy().ValidateScore(req.Score); err != nil {
		return nil, err
	}
	gradedOn, err := parseDate(req.GradedOn)
	if err != nil {
		return nil, err
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, current.TeacherID); err != nil {
		return nil, err
	}

	grade := current.GradeEntry
	grade.Label = strings.TrimSpace(req.Label)
	grade.Score = req.Score
	grade.GradedOn = gradedOn
	grade.Notes = req.Notes
	if err := s.ledger.Update(ctx, &grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}
	s.metrics.RecordLedgerOp("grade", "update", "ok")
	s.notifier.Notify(ctx, events.GradesRecorded, p.UserID, map[string]interface{}{
		"offering_id": current.OfferingID,
		"label":       grade.Label,
		"grades":      []models.GradeEntry{grade},
	})
	return &grade, nil
}

// Delete removes a grade entry.
func (s *GradeService) Delete(ctx context.Context, p models.Principal, id string) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.access.AuthorizeOffering(p, current.TeacherID); err != nil {
		return err
	}
	if err := s.ledger.Delete(ctx, id); err != nil {
		if isNoRows(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	s.metrics.RecordLedgerOp("grade", "delete", "ok")
	s.notifier.Notify(ctx, events.GradesRecorded, p.UserID, map[string]interface{}{
		"offering_id": current.OfferingID,
		"deleted":     id,
	})
	return nil
}

// Bulk records a label for many enrollments of one offering. Each row is
// committed on its own; rows with an out-of-range score or an enrollment of
// another offering are reported and skipped.
func (s *GradeService) Bulk(ctx context.Context, p models.Principal, req BulkGradeRequest) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk grade payload")
	}
	gradedOn, err := parseDate(req.GradedOn)
	if err != nil {
		return nil, err
	}
	offering, err := loadOffering(ctx, s.offerings, req.OfferingID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, offering.TeacherID); err != nil {
		return nil, err
	}

	ids := make([]string, len(req.Entries))
	for i, entry := range req.Entries {
		ids[i] = entry.EnrollmentID
	}
	members, err := s.enrollments.MembersOf(ctx, offering.ID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify enrollments")
	}

	label := strings.TrimSpace(req.Label)
	policy := s.aggregate.Policy()
	result := models.NewBatchResult(len(req.Entries))
	recorded := make([]models.GradeEntry, 0, len(req.Entries))
	for _, entry := range req.Entries {
		if err := policy.ValidateScore(entry.Score); err != nil {
			result.Fail(entry.EnrollmentID, appErrors.ErrValidation.Code, appErrors.FromError(err).Message)
			continue
		}
		if !members[entry.EnrollmentID] {
			result.Fail(entry.EnrollmentID, appErrors.ErrValidation.Code, "enrollment does not belong to offering")
			continue
		}
		grade := models.GradeEntry{
			EnrollmentID: entry.EnrollmentID,
			Label:        label,
			Score:        entry.Score,
			GradedOn:     gradedOn,
			Notes:        entry.Notes,
		}
		if err := s.ledger.Create(ctx, &grade); err != nil {
			s.logger.Warn("bulk grade row failed", zap.String("enrollment_id", entry.EnrollmentID), zap.Error(err))
			result.Fail(entry.EnrollmentID, appErrors.ErrInternal.Code, "failed to record grade")
			continue
		}
		result.Succeeded++
		recorded = append(recorded, grade)
	}

	s.metrics.RecordLedgerOp("grade", "bulk", "ok")
	s.metrics.RecordBatchErrors("grade_bulk", result.Errors)
	if result.Succeeded > 0 {
		s.notifier.Notify(ctx, events.GradesRecorded, p.UserID, map[string]interface{}{
			"offering_id": offering.ID,
			"label":       label,
			"grades":      recorded,
		})
	}
	return result, nil
}

// ByOffering summarises every enrollment of an offering.
func (s *GradeService) ByOffering(ctx context.Context, p models.Principal, offeringID string) ([]dto.EnrollmentGrades, error) {
	offering, err := loadOffering(ctx, s.offerings, offeringID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, offering.TeacherID); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByOffering(ctx, offering.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	return s.aggregate.Summarize(ctx, enrollments)
}

// ByStudent summarises every enrollment of a student.
func (s *GradeService) ByStudent(ctx context.Context, p models.Principal, studentID string) ([]dto.EnrollmentGrades, error) {
	if err := s.access.AuthorizeStudentRead(p, studentID); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	return s.aggregate.Summarize(ctx, enrollments)
}

// ByStudentOffering returns the grades of a student in one offering.
func (s *GradeService) ByStudentOffering(ctx context.Context, p models.Principal, studentID, offeringID string) (*dto.EnrollmentGrades, error) {
	summaries, err := s.ByStudent(ctx, p, studentID)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		if summaries[i].Enrollment.OfferingID == offeringID {
			return &summaries[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in offering")
}

// Average returns the rounded mean score of an enrollment.
func (s *GradeService) Average(ctx context.Context, p models.Principal, enrollmentID string) (*dto.EnrollmentAverage, error) {
	summary, err := s.aggregate.EnrollmentStatus(ctx, p, enrollmentID)
	if err != nil {
		return nil, err
	}
	return &dto.EnrollmentAverage{
		EnrollmentID: enrollmentID,
		Average:      summary.Average,
		Count:        len(summary.Grades),
	}, nil
}
