package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type stubReportRepo struct {
	filter  dto.GradeReportFilter
	passing float64
}

func (s *stubReportRepo) GeneralTotals(context.Context) (dto.GeneralReport, error) {
	return dto.GeneralReport{Students: 10, Teachers: 2, Offerings: 3, Enrollments: 25}, nil
}

func (s *stubReportRepo) GradeSummary(_ context.Context, filter dto.GradeReportFilter, passing float64) (dto.GradeReport, error) {
	s.filter, s.passing = filter, passing
	return dto.GradeReport{TotalEntries: 4, Average: 4.875, Max: 6.5, Min: 3.0, Approved: 3, Failed: 1}, nil
}

func (s *stubReportRepo) StudentGrades(context.Context, string) ([]dto.StudentGradeRow, error) {
	return []dto.StudentGradeRow{
		{EnrollmentID: "e-1", StudentName: "Ana Rojas", GradeCount: 3, Average: 5.0},
		{EnrollmentID: "e-2", StudentName: "Luis Vera", GradeCount: 2, Average: 3.44},
		{EnrollmentID: "e-3", StudentName: "Sofia Paz", GradeCount: 2, Average: 6.0},
		{EnrollmentID: "e-4", StudentName: "Tomas Diaz"},
	}, nil
}

func (s *stubReportRepo) StudentAttendance(context.Context, string) ([]dto.StudentAttendanceRow, error) {
	return []dto.StudentAttendanceRow{
		{EnrollmentID: "e-1", Total: 4, Present: 4},
		{EnrollmentID: "e-3", Total: 4, Present: 2, Absent: 2},
	}, nil
}

type stubGlobalStats struct{}

func (stubGlobalStats) GlobalAverage(context.Context) (*float64, error) {
	v := 5.04
	return &v, nil
}

func (stubGlobalStats) GlobalAttendance(context.Context) (models.AttendanceCounts, error) {
	return models.AttendanceCounts{Total: 8, Present: 6}, nil
}

type stubOfferingCounter struct{}

func (stubOfferingCounter) OfferingCounts(context.Context, string) (models.AttendanceCounts, int, error) {
	return models.AttendanceCounts{Total: 8, Present: 6, Absent: 2}, 4, nil
}

func newReportFixture() (*ReportService, *stubReportRepo) {
	repo := &stubReportRepo{}
	svc := NewReportService(repo, stubGlobalStats{}, offeringsFixture(), stubOfferingCounter{}, newTestAccess(), DefaultAcademicPolicy(), nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestGeneralReport(t *testing.T) {
	svc, _ := newReportFixture()
	report, err := svc.General(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, report.Students)
	assert.Equal(t, 5.0, report.GlobalAverage)
	assert.Equal(t, 75.0, report.AttendancePercentage)
}

func TestGradeReportScopesTeacher(t *testing.T) {
	svc, repo := newReportFixture()
	ctx := context.Background()

	report, err := svc.Grades(ctx, teacherPrincipal("t-1"), GradeReportRequest{From: strPtr("2024-03-01"), To: strPtr("2024-06-30")})
	require.NoError(t, err)
	assert.Equal(t, 4.9, report.Average)
	assert.Equal(t, "t-1", repo.filter.TeacherID)
	assert.Equal(t, 4.0, repo.passing)
	require.NotNil(t, repo.filter.From)

	_, err = svc.Grades(ctx, teacherPrincipal("t-1"), GradeReportRequest{OfferingID: "off-2"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Grades(ctx, adminPrincipal(), GradeReportRequest{From: strPtr("2024-06-30"), To: strPtr("2024-03-01")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestOfferingGradeReport(t *testing.T) {
	svc, _ := newReportFixture()
	report, err := svc.OfferingGrades(context.Background(), adminPrincipal(), "off-1")
	require.NoError(t, err)
	require.Len(t, report.Students, 4)
	assert.Equal(t, "APPROVED", report.Students[0].Status)
	assert.Equal(t, 3.4, report.Students[1].Average)
	assert.Equal(t, "FAILED_BY_GRADES", report.Students[1].Status)
	assert.Equal(t, "FAILED_BY_ATTENDANCE", report.Students[2].Status)
	assert.Equal(t, "IN_PROGRESS", report.Students[3].Status)
	assert.Equal(t, 1, report.Approved)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.InProgress)
	assert.Equal(t, 4.8, report.CourseAverage)
}

func TestOfferingAttendanceReport(t *testing.T) {
	svc, _ := newReportFixture()
	report, err := svc.OfferingAttendance(context.Background(), teacherPrincipal("t-1"), "off-1")
	require.NoError(t, err)
	assert.Equal(t, 75.0, report.Percentage)
	assert.Equal(t, 4, report.Dates)
	assert.Equal(t, 100.0, report.Students[0].Percentage)
	assert.Equal(t, 50.0, report.Students[1].Percentage)

	_, err = svc.OfferingAttendance(context.Background(), teacherPrincipal("t-2"), "off-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
