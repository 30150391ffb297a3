package service

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/pkg/config"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// AcademicPolicy holds the grading scale and pass thresholds.
type AcademicPolicy struct {
	MinScore             float64
	MaxScore             float64
	PassingGrade         float64
	MinAttendancePercent float64
}

// DefaultAcademicPolicy is the 1.0-7.0 scale with a 4.0 pass mark and 75%
// minimum attendance.
func DefaultAcademicPolicy() AcademicPolicy {
	return AcademicPolicy{MinScore: 1.0, MaxScore: 7.0, PassingGrade: 4.0, MinAttendancePercent: 75}
}

// PolicyFromConfig builds the policy from configuration.
func PolicyFromConfig(cfg config.AcademicConfig) AcademicPolicy {
	return AcademicPolicy{
		MinScore:             cfg.MinScore,
		MaxScore:             cfg.MaxScore,
		PassingGrade:         cfg.PassingGrade,
		MinAttendancePercent: cfg.MinAttendancePercent,
	}
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Average is the mean of scores rounded to one decimal, or 0 with no scores.
func Average(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return roundTo(sum/float64(len(scores)), 1)
}

// AverageOf averages the scores of grade entries.
func AverageOf(grades []models.GradeEntry) float64 {
	scores := make([]float64, len(grades))
	for i, g := range grades {
		scores[i] = g.Score
	}
	return Average(scores)
}

// AttendancePercentage is present/total*100 rounded to two decimals, or 0
// with no records.
func AttendancePercentage(counts models.AttendanceCounts) float64 {
	if counts.Total == 0 {
		return 0
	}
	return roundTo(float64(counts.Present)/float64(counts.Total)*100, 2)
}

// Status derives the outcome of an enrollment. The grade axis is checked
// before the attendance axis. An enrollment without grades is in progress,
// and attendance only fails an enrollment once records exist.
func (p AcademicPolicy) Status(gradeCount int, average float64, attendance models.AttendanceCounts) models.AcademicStatus {
	if gradeCount == 0 {
		return models.AcademicStatusInProgress
	}
	if average < p.PassingGrade {
		return models.AcademicStatusFailedByGrades
	}
	if attendance.Total > 0 && AttendancePercentage(attendance) < p.MinAttendancePercent {
		return models.AcademicStatusFailedByAttendance
	}
	return models.AcademicStatusApproved
}

// ValidateScore checks score against the scale.
func (p AcademicPolicy) ValidateScore(score float64) error {
	if math.IsNaN(score) || score < p.MinScore || score > p.MaxScore {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score must be between %.1f and %.1f", p.MinScore, p.MaxScore))
	}
	return nil
}

func parseDate(raw string) (time.Time, error) {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must use YYYY-MM-DD")
	}
	return d, nil
}

func parseOptionalDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := parseDate(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
