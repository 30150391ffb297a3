package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/service"
)

type fakeReportSrv struct {
	lastGrades service.GradeReportRequest
}

func (f *fakeReportSrv) General(context.Context) (*dto.GeneralReport, error) {
	return &dto.GeneralReport{Students: 12, GlobalAverage: 5.1}, nil
}

func (f *fakeReportSrv) Grades(_ context.Context, _ models.Principal, req service.GradeReportRequest) (*dto.GradeReport, error) {
	f.lastGrades = req
	return &dto.GradeReport{TotalEntries: 3}, nil
}

func (f *fakeReportSrv) OfferingGrades(context.Context, models.Principal, string) (*dto.OfferingGradeReport, error) {
	return &dto.OfferingGradeReport{OfferingID: "off-1", Approved: 2}, nil
}

func (f *fakeReportSrv) OfferingAttendance(context.Context, models.Principal, string) (*dto.OfferingAttendanceReport, error) {
	return &dto.OfferingAttendanceReport{OfferingID: "off-1", Percentage: 87.5}, nil
}

func TestReportHandlerRoutes(t *testing.T) {
	srv := &fakeReportSrv{}
	h := NewReportHandler(srv)
	r := authedRouter(adminClaims())
	r.GET("/reports/general", h.General)
	r.GET("/reports/grades", h.Grades)
	r.GET("/reports/offerings/:id/grades", h.OfferingGrades)
	r.GET("/reports/offerings/:id/attendance", h.OfferingAttendance)

	rec := do(r, http.MethodGet, "/reports/general", "")
	assert.Equal(t, float64(12), decode(t, rec).Data["students"])

	rec = do(r, http.MethodGet, "/reports/grades?offering_id=off-1&from=2026-01-01", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "off-1", srv.lastGrades.OfferingID)
	require.NotNil(t, srv.lastGrades.From)
	assert.Equal(t, "2026-01-01", *srv.lastGrades.From)
	assert.Nil(t, srv.lastGrades.To)

	rec = do(r, http.MethodGet, "/reports/offerings/off-1/grades", "")
	assert.Equal(t, float64(2), decode(t, rec).Data["approved"])

	rec = do(r, http.MethodGet, "/reports/offerings/off-1/attendance", "")
	assert.Equal(t, 87.5, decode(t, rec).Data["percentage"])
}
