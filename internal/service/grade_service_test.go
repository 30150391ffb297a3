package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
	"github.com/noah-isme/casa-azul-api/pkg/events"
)

type mockLedgerEnrollments struct {
	items []models.EnrollmentDetail
}

func (m *mockLedgerEnrollments) FindDetailByID(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	for i := range m.items {
		if m.items[i].ID == id {
			d := m.items[i]
			return &d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockLedgerEnrollments) ListByOffering(_ context.Context, offeringID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.items {
		if e.OfferingID == offeringID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockLedgerEnrollments) ListByStudent(_ context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.items {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockLedgerEnrollments) MembersOf(_ context.Context, offeringID string, ids []string) (map[string]bool, error) {
	members := map[string]bool{}
	for _, id := range ids {
		for _, e := range m.items {
			if e.ID == id && e.OfferingID == offeringID {
				members[id] = true
			}
		}
	}
	return members, nil
}

type mockOfferingRoster struct {
	offerings map[string]models.OfferingDetail
}

func (m *mockOfferingRoster) FindByID(_ context.Context, id string) (*models.OfferingDetail, error) {
	o, ok := m.offerings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &o, nil
}

func (m *mockOfferingRoster) Roster(_ context.Context, offeringID string) ([]models.RosterEntry, error) {
	return []models.RosterEntry{
		{EnrollmentID: "e-1", StudentID: "s-1", FirstName: "Ana", LastName: "Rojas"},
		{EnrollmentID: "e-2", StudentID: "s-2", FirstName: "Luis", LastName: "Vera"},
	}, nil
}

type mockGradeLedger struct {
	grades  map[string]models.GradeEntry
	owners  map[string]models.EnrollmentDetail
	failFor string
	seq     int
}

func (m *mockGradeLedger) List(_ context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error) {
	var out []models.GradeDetail
	for _, g := range m.grades {
		owner := m.owners[g.EnrollmentID]
		if filter.StudentID != "" && owner.StudentID != filter.StudentID {
			continue
		}
		out = append(out, models.GradeDetail{GradeEntry: g, StudentID: owner.StudentID, OfferingID: owner.OfferingID, TeacherID: owner.TeacherID})
	}
	return out, len(out), nil
}

func (m *mockGradeLedger) FindDetailByID(_ context.Context, id string) (*models.GradeDetail, error) {
	g, ok := m.grades[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	owner := m.owners[g.EnrollmentID]
	return &models.GradeDetail{GradeEntry: g, StudentID: owner.StudentID, OfferingID: owner.OfferingID, TeacherID: owner.TeacherID}, nil
}

func (m *mockGradeLedger) ListByEnrollments(_ context.Context, ids []string) (map[string][]models.GradeEntry, error) {
	out := map[string][]models.GradeEntry{}
	for _, id := range ids {
		for seq := 1; seq <= m.seq; seq++ {
			if g, ok := m.grades[fmt.Sprintf("g-%d", seq)]; ok && g.EnrollmentID == id {
				out[id] = append(out[id], g)
			}
		}
	}
	return out, nil
}

func (m *mockGradeLedger) Create(_ context.Context, grade *models.GradeEntry) error {
	if grade.EnrollmentID == m.failFor {
		return fmt.Errorf("insert failed")
	}
	m.seq++
	grade.ID = fmt.Sprintf("g-%d", m.seq)
	m.grades[grade.ID] = *grade
	return nil
}

func (m *mockGradeLedger) Update(_ context.Context, grade *models.GradeEntry) error {
	m.grades[grade.ID] = *grade
	return nil
}

func (m *mockGradeLedger) Delete(_ context.Context, id string) error {
	if _, ok := m.grades[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.grades, id)
	return nil
}

type stubAttendanceCounter struct {
	counts map[string]models.AttendanceCounts
}

func (s stubAttendanceCounter) CountsByEnrollments(_ context.Context, _ []string) (map[string]models.AttendanceCounts, error) {
	return s.counts, nil
}

func ledgerEnrollmentsFixture() *mockLedgerEnrollments {
	return &mockLedgerEnrollments{items: []models.EnrollmentDetail{
		{Enrollment: models.Enrollment{ID: "e-1", StudentID: "s-1", OfferingID: "off-1"}, TeacherID: strPtr("t-1")},
		{Enrollment: models.Enrollment{ID: "e-2", StudentID: "s-2", OfferingID: "off-1"}, TeacherID: strPtr("t-1")},
		{Enrollment: models.Enrollment{ID: "e-3", StudentID: "s-1", OfferingID: "off-2"}, TeacherID: strPtr("t-2")},
	}}
}

func offeringsFixture() *mockOfferingRoster {
	return &mockOfferingRoster{offerings: map[string]models.OfferingDetail{
		"off-1": {CourseOffering: models.CourseOffering{ID: "off-1", TeacherID: strPtr("t-1")}},
		"off-2": {CourseOffering: models.CourseOffering{ID: "off-2", TeacherID: strPtr("t-2")}},
	}}
}

func newGradeFixture(counts map[string]models.AttendanceCounts) (*GradeService, *mockGradeLedger, *recordingPublisher) {
	enrollments := ledgerEnrollmentsFixture()
	owners := map[string]models.EnrollmentDetail{}
	for _, e := range enrollments.items {
		owners[e.ID] = e
	}
	ledger := &mockGradeLedger{grades: map[string]models.GradeEntry{}, owners: owners}
	access := newTestAccess()
	aggregate := NewAggregationService(enrollments, ledger, stubAttendanceCounter{counts: counts}, access, DefaultAcademicPolicy())
	pub := &recordingPublisher{}
	svc := NewGradeService(ledger, enrollments, offeringsFixture(), aggregate, access, NewChangeNotifier(pub, nil, nil, nil), nil, nil, nil)
	return svc, ledger, pub
}

func TestAddGrade(t *testing.T) {
	svc, ledger, pub := newGradeFixture(nil)
	ctx := context.Background()

	grade, err := svc.Add(ctx, teacherPrincipal("t-1"), AddGradeRequest{EnrollmentID: "e-1", Label: " Quiz 1 ", Score: 6.5, GradedOn: "2024-04-02"})
	require.NoError(t, err)
	assert.Equal(t, "Quiz 1", grade.Label)
	assert.Equal(t, "2024-04-02", grade.GradedOn.Format(dateLayout))
	assert.Len(t, ledger.grades, 1)
	assert.Equal(t, []string{events.GradesRecorded}, pub.types)
}

func TestAddGradeRejections(t *testing.T) {
	svc, ledger, _ := newGradeFixture(nil)
	ctx := context.Background()

	_, err := svc.Add(ctx, teacherPrincipal("t-1"), AddGradeRequest{EnrollmentID: "e-1", Label: "Quiz", Score: 7.5, GradedOn: "2024-04-02"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Add(ctx, teacherPrincipal("t-1"), AddGradeRequest{EnrollmentID: "e-1", Label: "Quiz", Score: 0.9, GradedOn: "2024-04-02"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Add(ctx, teacherPrincipal("t-1"), AddGradeRequest{EnrollmentID: "e-1", Label: "Quiz", Score: 5, GradedOn: "02/04/2024"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Add(ctx, teacherPrincipal("t-1"), AddGradeRequest{EnrollmentID: "e-3", Label: "Quiz", Score: 5, GradedOn: "2024-04-02"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Add(ctx, studentPrincipal("s-1"), AddGradeRequest{EnrollmentID: "e-1", Label: "Quiz", Score: 5, GradedOn: "2024-04-02"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Add(ctx, adminPrincipal(), AddGradeRequest{EnrollmentID: "missing", Label: "Quiz", Score: 5, GradedOn: "2024-04-02"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	assert.Empty(t, ledger.grades)
}

func TestBulkGradesPartialSuccess(t *testing.T) {
	svc, ledger, pub := newGradeFixture(nil)
	ledger.failFor = "e-broken"

	result, err := svc.Bulk(context.Background(), teacherPrincipal("t-1"), BulkGradeRequest{
		OfferingID: "off-1",
		Label:      "Midterm",
		GradedOn:   "2024-05-10",
		Entries: []BulkGradeEntry{
			{EnrollmentID: "e-1", Score: 5.5},
			{EnrollmentID: "e-2", Score: 8.0},
			{EnrollmentID: "e-3", Score: 4.0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, models.BatchItemError{Item: "e-2", Kind: "VALIDATION_ERROR", Message: "score must be between 1.0 and 7.0"}, result.Errors[0])
	assert.Equal(t, models.BatchItemError{Item: "e-3", Kind: "VALIDATION_ERROR", Message: "enrollment does not belong to offering"}, result.Errors[1])
	assert.Len(t, ledger.grades, 1)
	assert.Len(t, pub.types, 1)
}

func TestBulkGradesForeignOffering(t *testing.T) {
	svc, _, _ := newGradeFixture(nil)
	_, err := svc.Bulk(context.Background(), teacherPrincipal("t-1"), BulkGradeRequest{
		OfferingID: "off-2", Label: "Midterm", GradedOn: "2024-05-10",
		Entries: []BulkGradeEntry{{EnrollmentID: "e-3", Score: 5}},
	})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestGradeAverageAndStatus(t *testing.T) {
	svc, _, _ := newGradeFixture(map[string]models.AttendanceCounts{"e-1": {Total: 10, Present: 9, Absent: 1}})
	ctx := context.Background()
	for _, score := range []float64{4.0, 6.0, 5.0} {
		_, err := svc.Add(ctx, adminPrincipal(), AddGradeRequest{EnrollmentID: "e-1", Label: "Quiz", Score: score, GradedOn: "2024-04-02"})
		require.NoError(t, err)
	}

	avg, err := svc.Average(ctx, studentPrincipal("s-1"), "e-1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, avg.Average)
	assert.Equal(t, 3, avg.Count)

	empty, err := svc.Average(ctx, adminPrincipal(), "e-2")
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.Average)

	_, err = svc.Average(ctx, studentPrincipal("s-2"), "e-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	summaries, err := svc.ByOffering(ctx, teacherPrincipal("t-1"), "off-1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, models.AcademicStatusApproved, summaries[0].Status)
	assert.Equal(t, 90.0, summaries[0].AttendancePercentage)
	assert.Equal(t, models.AcademicStatusInProgress, summaries[1].Status)

	one, err := svc.ByStudentOffering(ctx, studentPrincipal("s-1"), "s-1", "off-1")
	require.NoError(t, err)
	assert.Equal(t, "e-1", one.Enrollment.ID)

	_, err = svc.ByStudentOffering(ctx, studentPrincipal("s-1"), "s-1", "off-9")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.ByStudent(ctx, studentPrincipal("s-2"), "s-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestUpdateAndDeleteGrade(t *testing.T) {
	svc, ledger, _ := newGradeFixture(nil)
	ctx := context.Background()
	grade, err := svc.Add(ctx, teacherPrincipal("t-1"), AddGradeRequest{EnrollmentID: "e-1", Label: "Quiz", Score: 3, GradedOn: "2024-04-02"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, teacherPrincipal("t-1"), grade.ID, UpdateGradeRequest{Label: "Quiz", Score: 4.5, GradedOn: "2024-04-03"})
	require.NoError(t, err)
	assert.Equal(t, 4.5, updated.Score)

	assert.ErrorIs(t, svc.Delete(ctx, teacherPrincipal("t-2"), grade.ID), appErrors.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, teacherPrincipal("t-1"), grade.ID))
	assert.Empty(t, ledger.grades)
	assert.ErrorIs(t, svc.Delete(ctx, adminPrincipal(), grade.ID), appErrors.ErrNotFound)
}

func TestListGradesScopesStudent(t *testing.T) {
	svc, _, _ := newGradeFixture(nil)
	ctx := context.Background()
	_, err := svc.Add(ctx, adminPrincipal(), AddGradeRequest{EnrollmentID: "e-1", Label: "Quiz", Score: 5, GradedOn: "2024-04-02"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, adminPrincipal(), AddGradeRequest{EnrollmentID: "e-2", Label: "Quiz", Score: 5, GradedOn: "2024-04-02"})
	require.NoError(t, err)

	items, _, err := svc.List(ctx, studentPrincipal("s-2"), models.GradeFilter{StudentID: "s-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "s-2", items[0].StudentID)
}
