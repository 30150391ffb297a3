package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	teacherID := "t-1"
	switch token {
	case "teacher":
		return &models.JWTClaims{UserID: "u-1", Role: models.RoleTeacher, TeacherID: &teacherID}, nil
	case "student":
		return &models.JWTClaims{UserID: "u-2", Role: models.RoleStudent}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type stubChecker struct{}

func (stubChecker) Require(ctx context.Context, p models.Principal, slug string) error {
	if p.Role == models.RoleTeacher && slug == models.PermGradesRecord {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "missing permission "+slug)
}

func newProtectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWT(stubValidator{}))
	r.POST("/grades", RequirePermission(stubChecker{}, models.PermGradesRecord), func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.String(http.StatusOK, *p.TeacherID)
	})
	r.GET("/admin", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingAndInvalidTokens(t *testing.T) {
	r := newProtectedRouter()

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/grades", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/grades", "forged").Code)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/grades", nil)
	req.Header.Set("Authorization", "Basic teacher")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequirePermission(t *testing.T) {
	r := newProtectedRouter()

	w := serve(r, http.MethodPost, "/grades", "teacher")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t-1", w.Body.String())

	w = serve(r, http.MethodPost, "/grades", "student")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/admin", "teacher").Code)
}

type recordingObserver struct {
	path   string
	status int
}

func (o *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.path, o.status = path, status
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/students/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	serve(r, http.MethodGet, "/students/42", "")
	assert.Equal(t, "/students/:id", observer.path)
	assert.Equal(t, http.StatusAccepted, observer.status)

	serve(r, http.MethodGet, "/nowhere", "")
	assert.Equal(t, "unmatched", observer.path)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	r := gin.New()
	r.Use(ResponseMeta())
	r.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = Meta(c)
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodGet, "/", "")
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}
