package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casa-azul-api/internal/dto"
)

func TestReportRepositoryGradeSummaryFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FILTER (WHERE g.score >= $1) AS approved")).
		WithArgs(4.0, "off-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_entries", "average", "max_score", "min_score", "approved", "failed"}).
			AddRow(3, 5.0, 6.0, 4.0, 3, 0))

	report, err := repo.GradeSummary(context.Background(), dto.GradeReportFilter{OfferingID: "off-1"}, 4.0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalEntries)
	assert.Equal(t, 6.0, report.Max)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryStudentAttendance(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN attendance_records a ON a.enrollment_id = e.id")).
		WithArgs("off-1").
		WillReturnRows(sqlmock.NewRows([]string{"enrollment_id", "student_id", "student_name", "total", "present", "absent", "justified"}).
			AddRow("enr-1", "stu-1", "Ana Rojas", 4, 3, 1, 0))

	rows, err := repo.StudentAttendance(context.Background(), "off-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Present)
}
