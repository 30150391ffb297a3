package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type reportRepository interface {
	GeneralTotals(ctx context.Context) (dto.GeneralReport, error)
	GradeSummary(ctx context.Context, filter dto.GradeReportFilter, passing float64) (dto.GradeReport, error)
	StudentGrades(ctx context.Context, offeringID string) ([]dto.StudentGradeRow, error)
	StudentAttendance(ctx context.Context, offeringID string) ([]dto.StudentAttendanceRow, error)
}

type globalStats interface {
	GlobalAverage(ctx context.Context) (*float64, error)
	GlobalAttendance(ctx context.Context) (models.AttendanceCounts, error)
}

type offeringCounter interface {
	OfferingCounts(ctx context.Context, offeringID string) (models.AttendanceCounts, int, error)
}

// GradeReportRequest carries the optional grade report filters.
type GradeReportRequest struct {
	OfferingID string
	From       *string
	To         *string
}

// ReportService builds read-only academic reports.
type ReportService struct {
	repo       reportRepository
	stats      globalStats
	offerings  offeringReader
	attendance offeringCounter
	access     *AccessService
	policy     AcademicPolicy
	logger     *zap.Logger
	now        func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportRepository, stats globalStats, offerings offeringReader, attendance offeringCounter, access *AccessService, policy AcademicPolicy, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:       repo,
		stats:      stats,
		offerings:  offerings,
		attendance: attendance,
		access:     access,
		policy:     policy,
		logger:     logger,
		now:        time.Now,
	}
}

// General returns institution-wide totals.
func (s *ReportService) General(ctx context.Context) (*dto.GeneralReport, error) {
	report, err := s.repo.GeneralTotals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build general report")
	}
	average, err := s.stats.GlobalAverage(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute average")
	}
	if average != nil {
		report.GlobalAverage = roundTo(*average, 1)
	}
	counts, err := s.stats.GlobalAttendance(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute attendance")
	}
	report.AttendancePercentage = AttendancePercentage(counts)
	report.GeneratedAt = s.now().UTC()
	return &report, nil
}

// Grades aggregates grade entries, scoped to the teacher's offerings when
// the caller is a teacher.
func (s *ReportService) Grades(ctx context.Context, p models.Principal, req GradeReportRequest) (*dto.GradeReport, error) {
	scope, err := s.access.TeacherScope(p)
	if err != nil {
		return nil, err
	}
	filter := dto.GradeReportFilter{OfferingID: req.OfferingID, TeacherID: scope}
	if filter.From, err = parseOptionalDate(req.From); err != nil {
		return nil, err
	}
	if filter.To, err = parseOptionalDate(req.To); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if req.OfferingID != "" {
		if _, err := s.authorizedOffering(ctx, p, req.OfferingID); err != nil {
			return nil, err
		}
	}
	report, err := s.repo.GradeSummary(ctx, filter, s.policy.PassingGrade)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build grade report")
	}
	report.Average = roundTo(report.Average, 1)
	return &report, nil
}

// OfferingGrades lists per-student averages and statuses of an offering.
func (s *ReportService) OfferingGrades(ctx context.Context, p models.Principal, offeringID string) (*dto.OfferingGradeReport, error) {
	offering, err := s.authorizedOffering(ctx, p, offeringID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.StudentGrades(ctx, offering.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build grade report")
	}
	attendance, err := s.repo.StudentAttendance(ctx, offering.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build grade report")
	}
	counts := make(map[string]models.AttendanceCounts, len(attendance))
	for _, a := range attendance {
		counts[a.EnrollmentID] = models.AttendanceCounts{Total: a.Total, Present: a.Present, Absent: a.Absent, Justified: a.Justified}
	}

	report := &dto.OfferingGradeReport{
		OfferingID: offering.ID,
		CourseName: offering.CourseName,
		Section:    offering.Section,
		Students:   make([]dto.StudentGradeRow, 0, len(rows)),
	}
	var graded []float64
	for _, row := range rows {
		row.Average = roundTo(row.Average, 1)
		status := s.policy.Status(row.GradeCount, row.Average, counts[row.EnrollmentID])
		row.Status = string(status)
		switch status {
		case models.AcademicStatusApproved:
			report.Approved++
		case models.AcademicStatusInProgress:
			report.InProgress++
		default:
			report.Failed++
		}
		if row.GradeCount > 0 {
			graded = append(graded, row.Average)
		}
		report.Students = append(report.Students, row)
	}
	report.CourseAverage = Average(graded)
	return report, nil
}

// OfferingAttendance lists per-student attendance percentages of an offering.
func (s *ReportService) OfferingAttendance(ctx context.Context, p models.Principal, offeringID string) (*dto.OfferingAttendanceReport, error) {
	offering, err := s.authorizedOffering(ctx, p, offeringID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.StudentAttendance(ctx, offering.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build attendance report")
	}
	totals, dates, err := s.attendance.OfferingCounts(ctx, offering.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build attendance report")
	}
	report := &dto.OfferingAttendanceReport{
		OfferingID: offering.ID,
		CourseName: offering.CourseName,
		Section:    offering.Section,
		Students:   make([]dto.StudentAttendanceRow, 0, len(rows)),
		Percentage: AttendancePercentage(totals),
		Dates:      dates,
	}
	for _, row := range rows {
		row.Percentage = AttendancePercentage(models.AttendanceCounts{Total: row.Total, Present: row.Present})
		report.Students = append(report.Students, row)
	}
	return report, nil
}

func (s *ReportService) authorizedOffering(ctx context.Context, p models.Principal, id string) (*models.OfferingDetail, error) {
	offering, err := loadOffering(ctx, s.offerings, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, offering.TeacherID); err != nil {
		return nil, err
	}
	return offering, nil
}
