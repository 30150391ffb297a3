package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type dashboardRepository interface {
	Totals(ctx context.Context) (dto.AdminTotals, error)
	EnrollmentsByStatus(ctx context.Context) (map[string]int, error)
	GlobalAverage(ctx context.Context) (*float64, error)
	GlobalAttendance(ctx context.Context) (models.AttendanceCounts, error)
	RecentEnrollments(ctx context.Context, limit int) ([]models.EnrollmentDetail, error)
	TeacherOfferings(ctx context.Context, teacherID, periodID string, day time.Time) ([]dto.TeacherOfferingSummary, error)
}

type activePeriodFinder interface {
	FindActive(ctx context.Context) (*models.AcademicPeriod, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL               time.Duration
	RecentEnrollmentsLimit int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo    dashboardRepository
	Periods activePeriodFinder
	Access  *AccessService
	Cache   *CacheService
	Logger  *zap.Logger
	Config  DashboardServiceConfig
}

// DashboardService composes the admin and teacher dashboards.
type DashboardService struct {
	repo    dashboardRepository
	periods activePeriodFinder
	access  *AccessService
	cache   *CacheService
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentEnrollmentsLimit <= 0 {
		cfg.RecentEnrollmentsLimit = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:    params.Repo,
		periods: params.Periods,
		access:  params.Access,
		cache:   params.Cache,
		logger:  logger,
		now:     time.Now,
		cfg:     cfg,
	}
}

// Admin returns the system-wide dashboard and whether it came from cache.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	const cacheKey = "dash:admin"
	var cached dto.AdminDashboardResponse
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	summary, err := s.composeAdmin(ctx)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

func (s *DashboardService) composeAdmin(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load totals")
	}
	byStatus, err := s.repo.EnrollmentsByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	for _, status := range []models.EnrollmentStatus{models.EnrollmentStatusEnrolled, models.EnrollmentStatusWithdrawn, models.EnrollmentStatusFrozen} {
		if _, ok := byStatus[string(status)]; !ok {
			byStatus[string(status)] = 0
		}
	}
	average, err := s.repo.GlobalAverage(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute average")
	}
	attendance, err := s.repo.GlobalAttendance(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute attendance")
	}
	recent, err := s.repo.RecentEnrollments(ctx, s.cfg.RecentEnrollmentsLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent enrollments")
	}
	if recent == nil {
		recent = []models.EnrollmentDetail{}
	}
	period, err := s.activePeriod(ctx)
	if err != nil {
		return nil, err
	}

	summary := &dto.AdminDashboardResponse{
		Totals:              totals,
		EnrollmentsByStatus: byStatus,
		GlobalAttendance:    AttendancePercentage(attendance),
		ActivePeriod:        period,
		RecentEnrollments:   recent,
		GeneratedAt:         s.now().UTC(),
	}
	if average != nil {
		summary.GlobalAverage = roundTo(*average, 1)
	}
	return summary, nil
}

// Teacher returns the dashboard of a teacher for date. Teachers always get
// their own; admins must name the teacher.
func (s *DashboardService) Teacher(ctx context.Context, p models.Principal, teacherID string, date time.Time) (*dto.TeacherDashboardResponse, bool, error) {
	scope, err := s.access.TeacherScope(p)
	if err != nil {
		return nil, false, err
	}
	switch {
	case scope != "" && teacherID != "" && teacherID != scope:
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "you can only view your own dashboard")
	case scope != "":
		teacherID = scope
	case !p.IsAdmin():
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "dashboard is only available to staff")
	case teacherID == "":
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
	}

	date = date.UTC()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	cacheKey := fmt.Sprintf("dash:teacher:%s:%s", teacherID, day.Format(dateLayout))
	var cached dto.TeacherDashboardResponse
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	summary, err := s.composeTeacher(ctx, teacherID, day)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

func (s *DashboardService) composeTeacher(ctx context.Context, teacherID string, day time.Time) (*dto.TeacherDashboardResponse, error) {
	summary := &dto.TeacherDashboardResponse{
		TeacherID:   teacherID,
		Date:        day.Format(dateLayout),
		Offerings:   []dto.TeacherOfferingSummary{},
		GeneratedAt: s.now().UTC(),
	}
	period, err := s.activePeriod(ctx)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return summary, nil
	}
	summary.ActivePeriod = period

	offerings, err := s.repo.TeacherOfferings(ctx, teacherID, period.ID, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher offerings")
	}
	for i := range offerings {
		offerings[i].Pending = !offerings[i].TakenToday
		if offerings[i].Pending {
			summary.PendingCount++
		}
	}
	if offerings != nil {
		summary.Offerings = offerings
	}
	return summary, nil
}

// activePeriod returns nil when no period is flagged active.
func (s *DashboardService) activePeriod(ctx context.Context) (*models.AcademicPeriod, error) {
	period, err := s.periods.FindActive(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active period")
	}
	return period, nil
}
