package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/repository"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
	"github.com/noah-isme/casa-azul-api/pkg/events"
)

type attendanceLedger interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.AttendanceDetail, error)
	Exists(ctx context.Context, enrollmentID string, date time.Time) (bool, error)
	CountForOfferingDate(ctx context.Context, offeringID string, date time.Time) (int, error)
	Create(ctx context.Context, record *models.AttendanceRecord) error
	Update(ctx context.Context, record *models.AttendanceRecord) error
	DeleteByOfferingDate(ctx context.Context, offeringID string, date time.Time) (int, error)
	ListByOfferingDate(ctx context.Context, offeringID string, date time.Time) ([]models.AttendanceRecord, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error)
	CountsByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string]models.AttendanceCounts, error)
	OfferingCounts(ctx context.Context, offeringID string) (models.AttendanceCounts, int, error)
}

type offeringRoster interface {
	offeringReader
	Roster(ctx context.Context, offeringID string) ([]models.RosterEntry, error)
}

// TakeAttendanceRequest records presence of one enrollment on a date.
type TakeAttendanceRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	Date         string  `json:"date" validate:"required"`
	Present      bool    `json:"present"`
	Justified    bool    `json:"justified"`
	Notes        *string `json:"notes" validate:"omitempty,max=500"`
}

// UpdateAttendanceRequest edits a recorded attendance.
type UpdateAttendanceRequest struct {
	Present   bool    `json:"present"`
	Justified bool    `json:"justified"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

// BulkAttendanceEntry is one row of an attendance sheet.
type BulkAttendanceEntry struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	Present      bool    `json:"present"`
	Justified    bool    `json:"justified"`
	Notes        *string `json:"notes" validate:"omitempty,max=500"`
}

// BulkAttendanceRequest records an offering's attendance sheet for a date.
type BulkAttendanceRequest struct {
	OfferingID string                `json:"offering_id" validate:"required"`
	Date       string                `json:"date" validate:"required"`
	Records    []BulkAttendanceEntry `json:"records" validate:"required,min=1,dive"`
}

// AttendanceService exposes the attendance ledger.
type AttendanceService struct {
	ledger      attendanceLedger
	enrollments ledgerEnrollments
	offerings   offeringRoster
	access      *AccessService
	notifier    *ChangeNotifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(ledger attendanceLedger, enrollments ledgerEnrollments, offerings offeringRoster, access *AccessService, notifier *ChangeNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		ledger:      ledger,
		enrollments: enrollments,
		offerings:   offerings,
		access:      access,
		notifier:    notifier,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// List returns attendance records scoped to the principal.
func (s *AttendanceService) List(ctx context.Context, p models.Principal, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	scope, err := s.access.TeacherScope(p)
	if err != nil {
		return nil, nil, err
	}
	if scope != "" {
		filter.TeacherID = scope
	}
	if p.IsStudent() {
		if p.StudentID == nil {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "account has no student profile")
		}
		filter.StudentID = *p.StudentID
	}
	records, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one attendance record.
func (s *AttendanceService) Get(ctx context.Context, p models.Principal, id string) (*models.AttendanceDetail, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeRecordRead(p, record.StudentID, record.TeacherID); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *AttendanceService) load(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	record, err := s.ledger.FindDetailByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return record, nil
}

// Take records attendance for one enrollment. A record already present for
// the date is a conflict; it must be deleted before retaking.
func (s *AttendanceService) Take(ctx context.Context, p models.Principal, req TakeAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	enrollment, err := loadEnrollment(ctx, s.enrollments, req.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, enrollment.TeacherID); err != nil {
		return nil, err
	}
	exists, err := s.ledger.Exists(ctx, enrollment.ID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if exists {
		s.metrics.RecordLedgerOp("attendance", "take", appErrors.ErrConflict.Code)
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already taken for this date")
	}

	record := &models.AttendanceRecord{
		EnrollmentID: enrollment.ID,
		Date:         date,
		Present:      req.Present,
		Justified:    req.Justified,
		Notes:        req.Notes,
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.RecordLedgerOp("attendance", "take", appErrors.ErrConflict.Code)
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already taken for this date")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	s.metrics.RecordLedgerOp("attendance", "take", "ok")
	s.notifier.Notify(ctx, events.AttendanceTaken, p.UserID, map[string]interface{}{
		"offering_id": enrollment.OfferingID,
		"date":        date.Format(dateLayout),
		"records":     []models.AttendanceRecord{*record},
	})
	return record, nil
}

// Update edits presence, justification and notes of a record.
func (s *AttendanceService) Update(ctx context.Context, p models.Principal, id string, req UpdateAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, current.TeacherID); err != nil {
		return nil, err
	}
	record := current.AttendanceRecord
	record.Present = req.Present
	record.Justified = req.Justified
	record.Notes = req.Notes
	if err := s.ledger.Update(ctx, &record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	s.metrics.RecordLedgerOp("attendance", "update", "ok")
	s.notifier.Notify(ctx, events.AttendanceTaken, p.UserID, map[string]interface{}{
		"offering_id": current.OfferingID,
		"date":        record.Date.Format(dateLayout),
		"records":     []models.AttendanceRecord{record},
	})
	return &record, nil
}

// Bulk records a whole attendance sheet. If any record already exists for
// the offering on the date the entire sheet is refused; otherwise rows are
// inserted one by one and failures are reported per enrollment.
func (s *AttendanceService) Bulk(ctx context.Context, p models.Principal, req BulkAttendanceRequest) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance sheet")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	offering, err := loadOffering(ctx, s.offerings, req.OfferingID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, offering.TeacherID); err != nil {
		return nil, err
	}

	taken, err := s.ledger.CountForOfferingDate(ctx, offering.ID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if taken > 0 {
		s.metrics.RecordLedgerOp("attendance", "bulk", appErrors.ErrConflict.Code)
		return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already taken for this offering and date")
	}

	ids := make([]string, len(req.Records))
	for i, row := range req.Records {
		ids[i] = row.EnrollmentID
	}
	members, err := s.enrollments.MembersOf(ctx, offering.ID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify enrollments")
	}

	result := models.NewBatchResult(len(req.Records))
	recorded := make([]models.AttendanceRecord, 0, len(req.Records))
	for _, row := range req.Records {
		if !members[row.EnrollmentID] {
			result.Fail(row.EnrollmentID, appErrors.ErrValidation.Code, "enrollment does not belong to offering")
			continue
		}
		record := models.AttendanceRecord{
			EnrollmentID: row.EnrollmentID,
			Date:         date,
			Present:      row.Present,
			Justified:    row.Justified,
			Notes:        row.Notes,
		}
		if err := s.ledger.Create(ctx, &record); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				result.Fail(row.EnrollmentID, appErrors.ErrConflict.Code, "attendance already taken for this date")
				continue
			}
			s.logger.Warn("attendance row failed", zap.String("enrollment_id", row.EnrollmentID), zap.Error(err))
			result.Fail(row.EnrollmentID, appErrors.ErrInternal.Code, "failed to record attendance")
			continue
		}
		result.Succeeded++
		recorded = append(recorded, record)
	}

	s.metrics.RecordLedgerOp("attendance", "bulk", "ok")
	s.metrics.RecordBatchErrors("attendance_bulk", result.Errors)
	if result.Succeeded > 0 {
		s.notifier.Notify(ctx, events.AttendanceTaken, p.UserID, map[string]interface{}{
			"offering_id": offering.ID,
			"date":        date.Format(dateLayout),
			"records":     recorded,
		})
	}
	return result, nil
}

// DeleteByDate removes an offering's attendance sheet for a date.
func (s *AttendanceService) DeleteByDate(ctx context.Context, p models.Principal, offeringID, rawDate string) (*dto.DeleteCount, error) {
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, err
	}
	offering, err := loadOffering(ctx, s.offerings, offeringID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, offering.TeacherID); err != nil {
		return nil, err
	}
	deleted, err := s.ledger.DeleteByOfferingDate(ctx, offering.ID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	s.metrics.RecordLedgerOp("attendance", "delete_date", "ok")
	if deleted > 0 {
		s.notifier.Notify(ctx, events.AttendanceTaken, p.UserID, map[string]interface{}{
			"offering_id": offering.ID,
			"date":        date.Format(dateLayout),
			"deleted":     deleted,
		})
	}
	return &dto.DeleteCount{Deleted: deleted}, nil
}

// ByOffering returns per-student attendance tallies of an offering.
func (s *AttendanceService) ByOffering(ctx context.Context, p models.Principal, offeringID string) ([]dto.EnrollmentAttendance, error) {
	offering, err := loadOffering(ctx, s.offerings, offeringID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, offering.TeacherID); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByOffering(ctx, offering.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	return s.summarize(ctx, enrollments)
}

// ByStudent returns attendance tallies for each enrollment of a student.
func (s *AttendanceService) ByStudent(ctx context.Context, p models.Principal, studentID string) ([]dto.EnrollmentAttendance, error) {
	if err := s.access.AuthorizeStudentRead(p, studentID); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	return s.summarize(ctx, enrollments)
}

func (s *AttendanceService) summarize(ctx context.Context, enrollments []models.EnrollmentDetail) ([]dto.EnrollmentAttendance, error) {
	out := make([]dto.EnrollmentAttendance, 0, len(enrollments))
	if len(enrollments) == 0 {
		return out, nil
	}
	ids := make([]string, len(enrollments))
	for i, e := range enrollments {
		ids[i] = e.ID
	}
	counts, err := s.ledger.CountsByEnrollments(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}
	for _, e := range enrollments {
		c := counts[e.ID]
		out = append(out, dto.EnrollmentAttendance{Enrollment: e, Counts: c, Percentage: AttendancePercentage(c)})
	}
	return out, nil
}

// Percentage returns the attendance of one enrollment with its records.
func (s *AttendanceService) Percentage(ctx context.Context, p models.Principal, enrollmentID string) (*dto.EnrollmentAttendance, error) {
	enrollment, err := loadEnrollment(ctx, s.enrollments, enrollmentID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeEnrollmentRead(p, enrollment); err != nil {
		return nil, err
	}
	records, err := s.ledger.ListByEnrollment(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	var counts models.AttendanceCounts
	for _, r := range records {
		counts.Total++
		switch {
		case r.Present:
			counts.Present++
		case r.Justified:
			counts.Absent++
			counts.Justified++
		default:
			counts.Absent++
		}
	}
	return &dto.EnrollmentAttendance{
		Enrollment: *enrollment,
		Counts:     counts,
		Percentage: AttendancePercentage(counts),
		Records:    records,
	}, nil
}

// Roster returns the offering's students with the record taken on date, if any.
func (s *AttendanceService) Roster(ctx context.Context, p models.Principal, offeringID, rawDate string) (*dto.RosterAttendance, error) {
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, err
	}
	offering, err := loadOffering(ctx, s.offerings, offeringID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, offering.TeacherID); err != nil {
		return nil, err
	}
	roster, err := s.offerings.Roster(ctx, offering.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	records, err := s.ledger.ListByOfferingDate(ctx, offering.ID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	byEnrollment := make(map[string]models.AttendanceRecord, len(records))
	for _, r := range records {
		byEnrollment[r.EnrollmentID] = r
	}

	sheet := &dto.RosterAttendance{OfferingID: offering.ID, Date: date, Taken: len(records) > 0, Entries: make([]dto.RosterAttendanceEntry, 0, len(roster))}
	for _, student := range roster {
		entry := dto.RosterAttendanceEntry{Student: student}
		if r, ok := byEnrollment[student.EnrollmentID]; ok {
			record := r
			entry.Record = &record
		}
		sheet.Entries = append(sheet.Entries, entry)
	}
	return sheet, nil
}

// Statistics returns offering-wide attendance figures.
func (s *AttendanceService) Statistics(ctx context.Context, p models.Principal, offeringID string) (*dto.OfferingAttendanceStats, error) {
	offering, err := loadOffering(ctx, s.offerings, offeringID)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeOffering(p, offering.TeacherID); err != nil {
		return nil, err
	}
	counts, dates, err := s.ledger.OfferingCounts(ctx, offering.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}
	return &dto.OfferingAttendanceStats{
		OfferingID: offering.ID,
		Counts:     counts,
		Percentage: AttendancePercentage(counts),
		Dates:      dates,
	}, nil
}
