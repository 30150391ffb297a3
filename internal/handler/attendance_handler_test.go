package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/service"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type fakeAttendanceSrv struct {
	taken      map[string]bool
	lastDelete string
	lastFilter models.AttendanceFilter
}

func (f *fakeAttendanceSrv) List(_ context.Context, _ models.Principal, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.AttendanceDetail{}, models.NewPagination(1, 20, 0), nil
}

func (f *fakeAttendanceSrv) Get(context.Context, models.Principal, string) (*models.AttendanceDetail, error) {
	return &models.AttendanceDetail{}, nil
}

func (f *fakeAttendanceSrv) Take(context.Context, models.Principal, service.TakeAttendanceRequest) (*models.AttendanceRecord, error) {
	return &models.AttendanceRecord{ID: "a-1", Present: true}, nil
}

func (f *fakeAttendanceSrv) Update(context.Context, models.Principal, string, service.UpdateAttendanceRequest) (*models.AttendanceRecord, error) {
	return &models.AttendanceRecord{}, nil
}

func (f *fakeAttendanceSrv) Bulk(_ context.Context, _ models.Principal, req service.BulkAttendanceRequest) (*models.BatchResult, error) {
	key := req.OfferingID + "|" + req.Date
	if f.taken[key] {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already taken for this date")
	}
	f.taken[key] = true
	result := models.NewBatchResult(len(req.Records))
	result.Succeeded = len(req.Records)
	return result, nil
}

func (f *fakeAttendanceSrv) DeleteByDate(_ context.Context, _ models.Principal, offeringID, rawDate string) (*dto.DeleteCount, error) {
	f.lastDelete = offeringID + "|" + rawDate
	return &dto.DeleteCount{Deleted: 3}, nil
}

func (f *fakeAttendanceSrv) ByOffering(context.Context, models.Principal, string) ([]dto.EnrollmentAttendance, error) {
	return []dto.EnrollmentAttendance{}, nil
}

func (f *fakeAttendanceSrv) Percentage(context.Context, models.Principal, string) (*dto.EnrollmentAttendance, error) {
	return &dto.EnrollmentAttendance{Percentage: 75}, nil
}

func (f *fakeAttendanceSrv) Roster(context.Context, models.Principal, string, string) (*dto.RosterAttendance, error) {
	return &dto.RosterAttendance{OfferingID: "off-1"}, nil
}

func (f *fakeAttendanceSrv) Statistics(context.Context, models.Principal, string) (*dto.OfferingAttendanceStats, error) {
	return &dto.OfferingAttendanceStats{OfferingID: "off-1", Dates: 4}, nil
}

func TestAttendanceHandlerBulkTwiceConflicts(t *testing.T) {
	h := NewAttendanceHandler(&fakeAttendanceSrv{taken: map[string]bool{}})
	r := authedRouter(teacherClaims())
	r.POST("/attendance/bulk", h.Bulk)
	body := `{"offering_id":"off-1","date":"2026-10-18","records":[{"enrollment_id":"e-1","present":true}]}`

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/attendance/bulk", body).Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/attendance/bulk", body).Code)
}

func TestAttendanceHandlerOfferingRoutes(t *testing.T) {
	srv := &fakeAttendanceSrv{taken: map[string]bool{}}
	h := NewAttendanceHandler(srv)
	r := authedRouter(teacherClaims())
	r.DELETE("/offerings/:id/attendance", h.DeleteByDate)
	r.GET("/offerings/:id/attendance/statistics", h.Statistics)
	r.GET("/enrollments/:id/attendance", h.Percentage)

	rec := do(r, http.MethodDelete, "/offerings/off-1/attendance?date=2026-10-18", "")
	assert.Equal(t, float64(3), decode(t, rec).Data["deleted"])
	assert.Equal(t, "off-1|2026-10-18", srv.lastDelete)

	rec = do(r, http.MethodGet, "/offerings/off-1/attendance/statistics", "")
	assert.Equal(t, float64(4), decode(t, rec).Data["dates"])

	rec = do(r, http.MethodGet, "/enrollments/e-1/attendance", "")
	assert.Equal(t, float64(75), decode(t, rec).Data["percentage"])
}

func TestAttendanceHandlerListPresentFilter(t *testing.T) {
	srv := &fakeAttendanceSrv{}
	h := NewAttendanceHandler(srv)
	r := authedRouter(adminClaims())
	r.GET("/attendance", h.List)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/attendance?present=false", "").Code)
	if assert.NotNil(t, srv.lastFilter.Present) {
		assert.False(t, *srv.lastFilter.Present)
	}
}
