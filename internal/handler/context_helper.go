package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casa-azul-api/internal/middleware"
	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
	"github.com/noah-isme/casa-azul-api/pkg/response"
)

const dateLayout = "2006-01-02"

// principal writes 401 and returns false when the request is anonymous.
func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return p, ok
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

// page reads page and limit query parameters. Repositories clamp the values.
func page(c *gin.Context) (int, int) {
	p, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return p, size
}

func dateQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" must use YYYY-MM-DD"))
		return nil, false
	}
	return &t, true
}
