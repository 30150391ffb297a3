package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/repository"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

type mockAttendanceLedger struct {
	records  []models.AttendanceRecord
	offering map[string]string
	inserts  int
}

func newMockAttendanceLedger(enrollments *mockLedgerEnrollments) *mockAttendanceLedger {
	m := &mockAttendanceLedger{offering: map[string]string{}}
	for _, e := range enrollments.items {
		m.offering[e.ID] = e.OfferingID
	}
	return m
}

func (m *mockAttendanceLedger) List(_ context.Context, _ models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	out := make([]models.AttendanceDetail, len(m.records))
	for i, r := range m.records {
		out[i] = models.AttendanceDetail{AttendanceRecord: r, OfferingID: m.offering[r.EnrollmentID]}
	}
	return out, len(out), nil
}

func (m *mockAttendanceLedger) FindDetailByID(_ context.Context, id string) (*models.AttendanceDetail, error) {
	for _, r := range m.records {
		if r.ID == id {
			teacher := "t-1"
			if m.offering[r.EnrollmentID] == "off-2" {
				teacher = "t-2"
			}
			return &models.AttendanceDetail{AttendanceRecord: r, OfferingID: m.offering[r.EnrollmentID], TeacherID: &teacher}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceLedger) Exists(_ context.Context, enrollmentID string, date time.Time) (bool, error) {
	for _, r := range m.records {
		if r.EnrollmentID == enrollmentID && r.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAttendanceLedger) CountForOfferingDate(_ context.Context, offeringID string, date time.Time) (int, error) {
	n := 0
	for _, r := range m.records {
		if m.offering[r.EnrollmentID] == offeringID && r.Date.Equal(date) {
			n++
		}
	}
	return n, nil
}

func (m *mockAttendanceLedger) Create(ctx context.Context, record *models.AttendanceRecord) error {
	if exists, _ := m.Exists(ctx, record.EnrollmentID, record.Date); exists {
		return repository.ErrDuplicate
	}
	m.inserts++
	record.ID = fmt.Sprintf("a-%d", m.inserts)
	m.records = append(m.records, *record)
	return nil
}

func (m *mockAttendanceLedger) Update(_ context.Context, record *models.AttendanceRecord) error {
	for i := range m.records {
		if m.records[i].ID == record.ID {
			m.records[i] = *record
		}
	}
	return nil
}

func (m *mockAttendanceLedger) DeleteByOfferingDate(_ context.Context, offeringID string, date time.Time) (int, error) {
	kept := m.records[:0]
	deleted := 0
	for _, r := range m.records {
		if m.offering[r.EnrollmentID] == offeringID && r.Date.Equal(date) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

func (m *mockAttendanceLedger) ListByOfferingDate(_ context.Context, offeringID string, date time.Time) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, r := range m.records {
		if m.offering[r.EnrollmentID] == offeringID && r.Date.Equal(date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockAttendanceLedger) ListByEnrollment(_ context.Context, enrollmentID string) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, r := range m.records {
		if r.EnrollmentID == enrollmentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func tally(records []models.AttendanceRecord) models.AttendanceCounts {
	var c models.AttendanceCounts
	for _, r := range records {
		c.Total++
		if r.Present {
			c.Present++
			continue
		}
		c.Absent++
		if r.Justified {
			c.Justified++
		}
	}
	return c
}

func (m *mockAttendanceLedger) CountsByEnrollments(ctx context.Context, ids []string) (map[string]models.AttendanceCounts, error) {
	out := map[string]models.AttendanceCounts{}
	for _, id := range ids {
		records, _ := m.ListByEnrollment(ctx, id)
		if len(records) > 0 {
			out[id] = tally(records)
		}
	}
	return out, nil
}

func (m *mockAttendanceLedger) OfferingCounts(_ context.Context, offeringID string) (models.AttendanceCounts, int, error) {
	var records []models.AttendanceRecord
	dates := map[time.Time]bool{}
	for _, r := range m.records {
		if m.offering[r.EnrollmentID] == offeringID {
			records = append(records, r)
			dates[r.Date] = true
		}
	}
	return tally(records), len(dates), nil
}

func newAttendanceFixture() (*AttendanceService, *mockAttendanceLedger, *recordingPublisher) {
	enrollments := ledgerEnrollmentsFixture()
	ledger := newMockAttendanceLedger(enrollments)
	pub := &recordingPublisher{}
	svc := NewAttendanceService(ledger, enrollments, offeringsFixture(), newTestAccess(), NewChangeNotifier(pub, nil, nil, nil), nil, nil, nil)
	return svc, ledger, pub
}

func TestTakeAttendanceConflictsOnSameDate(t *testing.T) {
	svc, ledger, _ := newAttendanceFixture()
	ctx := context.Background()

	_, err := svc.Take(ctx, teacherPrincipal("t-1"), TakeAttendanceRequest{EnrollmentID: "e-1", Date: "2024-03-11", Present: true})
	require.NoError(t, err)

	_, err = svc.Take(ctx, teacherPrincipal("t-1"), TakeAttendanceRequest{EnrollmentID: "e-1", Date: "2024-03-11", Present: false})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Take(ctx, teacherPrincipal("t-1"), TakeAttendanceRequest{EnrollmentID: "e-3", Date: "2024-03-11", Present: true})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Len(t, ledger.records, 1)
}

func TestBulkAttendanceSecondCallRejectedWholesale(t *testing.T) {
	svc, ledger, pub := newAttendanceFixture()
	ctx := context.Background()
	req := BulkAttendanceRequest{
		OfferingID: "off-1",
		Date:       "2024-03-12",
		Records: []BulkAttendanceEntry{
			{EnrollmentID: "e-1", Present: true},
			{EnrollmentID: "e-2", Present: false, Justified: true},
		},
	}

	result, err := svc.Bulk(ctx, teacherPrincipal("t-1"), req)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Empty(t, result.Errors)
	inserted := ledger.inserts

	_, err = svc.Bulk(ctx, teacherPrincipal("t-1"), req)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, inserted, ledger.inserts)
	assert.Len(t, pub.types, 1)
}

func TestBulkAttendanceRowErrors(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	result, err := svc.Bulk(context.Background(), adminPrincipal(), BulkAttendanceRequest{
		OfferingID: "off-1",
		Date:       "2024-03-13",
		Records: []BulkAttendanceEntry{
			{EnrollmentID: "e-1", Present: true},
			{EnrollmentID: "e-1", Present: false},
			{EnrollmentID: "e-3", Present: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, appErrors.ErrConflict.Code, result.Errors[0].Kind)
	assert.Equal(t, "e-3", result.Errors[1].Item)
	assert.Equal(t, appErrors.ErrValidation.Code, result.Errors[1].Kind)
}

func TestAttendancePercentageAndDeleteByDate(t *testing.T) {
	svc, ledger, _ := newAttendanceFixture()
	ctx := context.Background()
	for i, present := range []bool{true, true, false, true} {
		_, err := svc.Take(ctx, adminPrincipal(), TakeAttendanceRequest{
			EnrollmentID: "e-1", Date: fmt.Sprintf("2024-03-%02d", i+1), Present: present,
		})
		require.NoError(t, err)
	}

	pct, err := svc.Percentage(ctx, studentPrincipal("s-1"), "e-1")
	require.NoError(t, err)
	assert.Equal(t, 75.0, pct.Percentage)
	assert.Equal(t, 4, pct.Counts.Total)
	assert.Len(t, pct.Records, 4)

	empty, err := svc.Percentage(ctx, adminPrincipal(), "e-2")
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.Percentage)

	stats, err := svc.Statistics(ctx, teacherPrincipal("t-1"), "off-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Dates)

	deleted, err := svc.DeleteByDate(ctx, teacherPrincipal("t-1"), "off-1", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted.Deleted)
	assert.Len(t, ledger.records, 3)

	_, err = svc.DeleteByDate(ctx, teacherPrincipal("t-2"), "off-1", "2024-03-02")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestAttendanceRoster(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()
	_, err := svc.Take(ctx, adminPrincipal(), TakeAttendanceRequest{EnrollmentID: "e-2", Date: "2024-03-20", Present: true})
	require.NoError(t, err)

	sheet, err := svc.Roster(ctx, teacherPrincipal("t-1"), "off-1", "2024-03-20")
	require.NoError(t, err)
	assert.True(t, sheet.Taken)
	require.Len(t, sheet.Entries, 2)
	assert.Nil(t, sheet.Entries[0].Record)
	require.NotNil(t, sheet.Entries[1].Record)
	assert.True(t, sheet.Entries[1].Record.Present)

	byOffering, err := svc.ByOffering(ctx, adminPrincipal(), "off-1")
	require.NoError(t, err)
	require.Len(t, byOffering, 2)
	assert.Equal(t, 100.0, byOffering[1].Percentage)
}

func TestUpdateAttendance(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()
	record, err := svc.Take(ctx, adminPrincipal(), TakeAttendanceRequest{EnrollmentID: "e-1", Date: "2024-03-20"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, teacherPrincipal("t-1"), record.ID, UpdateAttendanceRequest{Present: false, Justified: true})
	require.NoError(t, err)
	assert.True(t, updated.Justified)

	_, err = svc.Update(ctx, teacherPrincipal("t-2"), record.ID, UpdateAttendanceRequest{Present: true})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Update(ctx, adminPrincipal(), "missing", UpdateAttendanceRequest{Present: true})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
