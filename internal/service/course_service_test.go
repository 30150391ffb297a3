package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/repository"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type mockCourseRepo struct {
	items    map[string]*models.Course
	enrolled map[string]bool
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var out []models.Course
	for _, c := range m.items {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.items[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	for _, c := range m.items {
		if c.Code == course.Code {
			return repository.ErrDuplicate
		}
	}
	course.ID = "course-new"
	cp := *course
	m.items[course.ID] = &cp
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	cp := *course
	m.items[course.ID] = &cp
	return nil
}

func (m *mockCourseRepo) HasEnrollments(ctx context.Context, id string) (bool, error) {
	return m.enrolled[id], nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func TestCourseServiceCreateNormalisesCode(t *testing.T) {
	repo := &mockCourseRepo{items: map[string]*models.Course{"course-1": {ID: "course-1", Code: "MAT101"}}}
	svc := NewCourseService(repo, nil, nil)

	course, err := svc.Create(context.Background(), CourseRequest{Code: " bio201 ", Name: "Biology", Credits: 4, Level: "secondary"})
	require.NoError(t, err)
	assert.Equal(t, "BIO201", course.Code)

	_, err = svc.Create(context.Background(), CourseRequest{Code: "mat101", Name: "Math", Credits: 4, Level: "secondary"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Create(context.Background(), CourseRequest{Code: "X", Name: "X", Credits: -1, Level: "secondary"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCourseServiceDeleteRefusesEnrolledCourse(t *testing.T) {
	repo := &mockCourseRepo{
		items:    map[string]*models.Course{"course-1": {ID: "course-1"}, "course-2": {ID: "course-2"}},
		enrolled: map[string]bool{"course-1": true},
	}
	svc := NewCourseService(repo, nil, nil)

	assert.ErrorIs(t, svc.Delete(context.Background(), "course-1"), appErrors.ErrConflict)
	require.NoError(t, svc.Delete(context.Background(), "course-2"))
	assert.ErrorIs(t, svc.Delete(context.Background(), "course-2"), appErrors.ErrNotFound)
}

type mockPeriodRepo struct {
	items  map[string]*models.AcademicPeriod
	active string
}

func (m *mockPeriodRepo) List(ctx context.Context) ([]models.AcademicPeriod, error) {
	var out []models.AcademicPeriod
	for _, p := range m.items {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockPeriodRepo) FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	if p, ok := m.items[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPeriodRepo) FindActive(ctx context.Context) (*models.AcademicPeriod, error) {
	return m.FindByID(ctx, m.active)
}

func (m *mockPeriodRepo) Create(ctx context.Context, period *models.AcademicPeriod) error {
	for _, p := range m.items {
		if p.Year == period.Year && p.Term == period.Term {
			return repository.ErrDuplicate
		}
	}
	period.ID = "period-new"
	cp := *period
	m.items[period.ID] = &cp
	return nil
}

func (m *mockPeriodRepo) Update(ctx context.Context, period *models.AcademicPeriod) error {
	cp := *period
	m.items[period.ID] = &cp
	return nil
}

func TestPeriodService(t *testing.T) {
	repo := &mockPeriodRepo{items: map[string]*models.AcademicPeriod{
		"period-1": {ID: "period-1", Year: 2026, Term: 1, Active: true},
	}}
	svc := NewPeriodService(repo, nil, nil)

	_, err := svc.Active(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	repo.active = "period-1"
	active, err := svc.Active(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2026, active.Year)

	period, err := svc.Create(context.Background(), PeriodRequest{Name: "2026-2", Year: 2026, Term: 2, StartDate: "2026-08-01", EndDate: "2026-12-15"})
	require.NoError(t, err)
	assert.Equal(t, time.August, period.StartDate.Month())

	_, err = svc.Create(context.Background(), PeriodRequest{Name: "dup", Year: 2026, Term: 1, StartDate: "2026-03-01", EndDate: "2026-07-01"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Create(context.Background(), PeriodRequest{Name: "bad", Year: 2027, Term: 1, StartDate: "2027-07-01", EndDate: "2027-03-01"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	catalog := NewCatalogService(stubCatalogRepo{}, svc)
	periods, err := catalog.Periods(context.Background())
	require.NoError(t, err)
	assert.Len(t, periods, 2)
	roles, err := catalog.Roles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Role{}, roles)
}

type stubCatalogRepo struct{}

func (stubCatalogRepo) ListRoles(ctx context.Context) ([]models.Role, error) { return nil, nil }

func (stubCatalogRepo) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	return []models.Permission{{Slug: models.PermGradesView}}, nil
}
