package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casa-azul-api/internal/models"
)

func TestAttendanceRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.AttendanceRecord{EnrollmentID: "enr-1", Date: time.Now()})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestAttendanceRepositoryDeleteByOfferingDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_records a USING enrollments e")).
		WithArgs("off-1", day).
		WillReturnResult(sqlmock.NewResult(0, 12))

	deleted, err := repo.DeleteByOfferingDate(context.Background(), "off-1", day)
	require.NoError(t, err)
	assert.Equal(t, 12, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCountsByEnrollments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.enrollment_id IN ($1) GROUP BY a.enrollment_id")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"enrollment_id", "total", "present", "absent", "justified"}).
			AddRow("enr-1", 4, 3, 1, 1))

	counts, err := repo.CountsByEnrollments(context.Background(), []string{"enr-1"})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceCounts{Total: 4, Present: 3, Absent: 1, Justified: 1}, counts["enr-1"])
}

func TestAttendanceRepositoryCountForOfferingDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.offering_id = $1 AND a.date = $2")).
		WithArgs("off-1", day).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountForOfferingDate(context.Background(), "off-1", day)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
