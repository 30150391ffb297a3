package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casa-azul-api/internal/models"
)

func seatRows(max, available int, open bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"capacity_max", "capacity_available", "open"}).AddRow(max, available, open)
}

func TestEnrollmentRepositoryEnrollTakesSeat(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity_max, capacity_available, open FROM course_offerings WHERE id = $1 FOR UPDATE")).
		WithArgs("off-1").
		WillReturnRows(seatRows(30, 3, true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND offering_id = $2)")).
		WithArgs("stu-1", "off-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_offerings SET capacity_available = capacity_available - 1")).
		WithArgs("off-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, remaining, err := repo.Enroll(context.Background(), "stu-1", "off-1")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	assert.NotEmpty(t, enrollment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollUnknownStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("off-1").
		WillReturnRows(seatRows(30, 3, true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM enrollments")).
		WithArgs("stu-404", "off-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	_, _, err := repo.Enroll(context.Background(), "stu-404", "off-1")
	assert.ErrorIs(t, err, ErrMissingReference)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollFullOffering(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("off-1").
		WillReturnRows(seatRows(30, 0, true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM enrollments")).
		WithArgs("stu-1", "off-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, _, err := repo.Enroll(context.Background(), "stu-1", "off-1")
	assert.ErrorIs(t, err, ErrNoCapacity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollDuplicateBeforeCapacity(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("off-1").
		WillReturnRows(seatRows(30, 0, true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM enrollments")).
		WithArgs("stu-1", "off-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, _, err := repo.Enroll(context.Background(), "stu-1", "off-1")
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollRaceOnUniqueIndex(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnRows(seatRows(30, 5, true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, _, err := repo.Enroll(context.Background(), "stu-1", "off-1")
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollMissingOffering(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := repo.Enroll(context.Background(), "stu-1", "off-x")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEnrollmentRepositoryWithdrawReleasesSeat(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "offering_id", "status", "enrolled_at", "created_at", "updated_at"}).
			AddRow("enr-1", "stu-1", "off-1", "ENROLLED", now, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("off-1").
		WillReturnRows(seatRows(30, 29, true))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("capacity_available = LEAST(capacity_available + 1, capacity_max)")).
		WithArgs("off-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, err := repo.Withdraw(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "off-1", enrollment.OfferingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMembersOf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM enrollments WHERE offering_id = $1 AND id IN ($2,$3)")).
		WithArgs("off-1", "enr-1", "enr-9").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("enr-1"))

	members, err := repo.MembersOf(context.Background(), "off-1", []string{"enr-1", "enr-9"})
	require.NoError(t, err)
	assert.True(t, members["enr-1"])
	assert.False(t, members["enr-9"])
}
