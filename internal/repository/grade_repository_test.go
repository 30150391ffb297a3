package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casa-azul-api/internal/models"
)

func TestGradeRepositoryListByEnrollmentsGroups(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	day := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "label", "score", "graded_on", "notes", "created_at", "updated_at"}).
		AddRow("g-1", "enr-1", "Test 1", 4.0, day, nil, day, day).
		AddRow("g-2", "enr-1", "Test 2", 6.0, day, nil, day, day).
		AddRow("g-3", "enr-2", "Test 1", 5.5, day, nil, day, day)
	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_entries g WHERE g.enrollment_id IN ($1,$2)")).
		WithArgs("enr-1", "enr-2").
		WillReturnRows(rows)

	grouped, err := repo.ListByEnrollments(context.Background(), []string{"enr-1", "enr-2"})
	require.NoError(t, err)
	assert.Len(t, grouped["enr-1"], 2)
	assert.Len(t, grouped["enr-2"], 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListScopedToTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE o.teacher_id = $1 AND g.graded_on >= $2 ORDER BY g.graded_on DESC LIMIT 20 OFFSET 0")).
		WithArgs("t-1", from).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM grade_entries g")).
		WithArgs("t-1", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	grades, total, err := repo.List(context.Background(), models.GradeFilter{TeacherID: "t-1", From: &from})
	require.NoError(t, err)
	assert.Empty(t, grades)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
