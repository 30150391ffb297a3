package service

import (
	"context"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type enrollmentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListByOffering(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type gradeReader interface {
	ListByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string][]models.GradeEntry, error)
}

type attendanceCounter interface {
	CountsByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string]models.AttendanceCounts, error)
}

// AggregationService derives averages, attendance percentages and academic
// status from the grade and attendance ledgers.
type AggregationService struct {
	enrollments enrollmentReader
	grades      gradeReader
	attendance  attendanceCounter
	access      *AccessService
	policy      AcademicPolicy
}

// NewAggregationService constructs the aggregation service.
func NewAggregationService(enrollments enrollmentReader, grades gradeReader, attendance attendanceCounter, access *AccessService, policy AcademicPolicy) *AggregationService {
	return &AggregationService{enrollments: enrollments, grades: grades, attendance: attendance, access: access, policy: policy}
}

// Policy returns the thresholds in use.
func (s *AggregationService) Policy() AcademicPolicy {
	return s.policy
}

// Summarize loads grades and attendance for the enrollments in two queries
// and derives each enrollment's average and status.
func (s *AggregationService) Summarize(ctx context.Context, enrollments []models.EnrollmentDetail) ([]dto.EnrollmentGrades, error) {
	summaries := make([]dto.EnrollmentGrades, 0, len(enrollments))
	if len(enrollments) == 0 {
		return summaries, nil
	}
	ids := make([]string, len(enrollments))
	for i, e := range enrollments {
		ids[i] = e.ID
	}
	grades, err := s.grades.ListByEnrollments(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	counts, err := s.attendance.CountsByEnrollments(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	for _, e := range enrollments {
		entries := grades[e.ID]
		if entries == nil {
			entries = []models.GradeEntry{}
		}
		average := AverageOf(entries)
		summaries = append(summaries, dto.EnrollmentGrades{
			Enrollment:           e,
			Grades:               entries,
			Average:              average,
			AttendancePercentage: AttendancePercentage(counts[e.ID]),
			Status:               s.policy.Status(len(entries), average, counts[e.ID]),
		})
	}
	return summaries, nil
}

// EnrollmentStatus returns the derived status of one enrollment.
func (s *AggregationService) EnrollmentStatus(ctx context.Context, p models.Principal, enrollmentID string) (*dto.EnrollmentGrades, error) {
	enrollment, err := loadEnrollment(ctx, s.enrollments, enrollmentID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeEnrollmentRead(p, enrollment); err != nil {
		return nil, err
	}
	summaries, err := s.Summarize(ctx, []models.EnrollmentDetail{*enrollment})
	if err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

func loadEnrollment(ctx context.Context, reader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}, id string) (*models.EnrollmentDetail, error) {
	detail, err := reader.FindDetailByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}
