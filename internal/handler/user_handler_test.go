package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/service"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type fakeUserSrv struct {
	lastFilter models.UserFilter
	lastActor  models.Principal
}

func (f *fakeUserSrv) List(_ context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.User{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

func (f *fakeUserSrv) Get(context.Context, string) (*models.User, error) {
	return &models.User{ID: "u-2"}, nil
}

func (f *fakeUserSrv) Create(_ context.Context, req service.CreateUserRequest) (*models.User, error) {
	if req.Role == models.RoleTeacher && req.TeacherID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher accounts require teacher_id only")
	}
	return &models.User{ID: "u-9", Email: req.Email, Role: req.Role}, nil
}

func (f *fakeUserSrv) Update(context.Context, string, service.UpdateUserRequest) (*models.User, error) {
	return &models.User{}, nil
}

func (f *fakeUserSrv) Deactivate(_ context.Context, actor models.Principal, id string) error {
	f.lastActor = actor
	if actor.UserID == id {
		return appErrors.Clone(appErrors.ErrConflict, "cannot deactivate your own account")
	}
	return nil
}

func TestUserHandlerRoutes(t *testing.T) {
	srv := &fakeUserSrv{}
	h := NewUserHandler(srv)
	r := authedRouter(adminClaims())
	r.GET("/users", h.List)
	r.POST("/users", h.Create)
	r.DELETE("/users/:id", h.Deactivate)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/users?role=TEACHER&active=true", "").Code)
	assert.Equal(t, models.RoleTeacher, srv.lastFilter.Role)
	if assert.NotNil(t, srv.lastFilter.Active) {
		assert.True(t, *srv.lastFilter.Active)
	}

	rec := do(r, http.MethodPost, "/users", `{"email":"p@casaazul.cl","full_name":"P","role":"teacher","password":"secret123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(r, http.MethodPost, "/users", `{"email":"p@casaazul.cl","full_name":"P","role":"teacher","teacher_id":"t-1","password":"secret123"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/users/u-2", "").Code)
	assert.Equal(t, "u-0", srv.lastActor.UserID)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodDelete, "/users/u-0", "").Code)
}
