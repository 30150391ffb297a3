package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casa-azul-api/internal/models"
)

func TestCatalogRepositoryPermissionSlugs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.slug = $1 ORDER BY p.slug")).
		WithArgs(models.RoleStudent).
		WillReturnRows(sqlmock.NewRows([]string{"slug"}).AddRow("attendance.view").AddRow("grades.view"))

	slugs, err := repo.PermissionSlugs(context.Background(), models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, []string{"attendance.view", "grades.view"}, slugs)
	require.NoError(t, mock.ExpectationsWereMet())
}
