package models

// AcademicStatus is the derived outcome of an enrollment.
type AcademicStatus string

const (
	AcademicStatusApproved           AcademicStatus = "APPROVED"
	AcademicStatusFailedByGrades     AcademicStatus = "FAILED_BY_GRADES"
	AcademicStatusFailedByAttendance AcademicStatus = "FAILED_BY_ATTENDANCE"
	AcademicStatusInProgress         AcademicStatus = "IN_PROGRESS"
)

// BatchItemError reports why one item of a batch was not applied. Kind is an
// error code such as CONFLICT or CAPACITY_EXCEEDED.
type BatchItemError struct {
	Item    string `json:"item"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// BatchResult summarises a best-effort batch.
type BatchResult struct {
	Succeeded int              `json:"succeeded"`
	Total     int              `json:"total"`
	Errors    []BatchItemError `json:"errors"`
}

// NewBatchResult returns a result with a non-nil error list.
func NewBatchResult(total int) *BatchResult {
	return &BatchResult{Total: total, Errors: []BatchItemError{}}
}

// Fail records an item error.
func (b *BatchResult) Fail(item, kind, message string) {
	b.Errors = append(b.Errors, BatchItemError{Item: item, Kind: kind, Message: message})
}
