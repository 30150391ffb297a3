package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
)

func TestAverage(t *testing.T) {
	assert.Equal(t, 5.0, Average([]float64{4.0, 6.0, 5.0}))
	assert.Equal(t, 0.0, Average(nil))
	assert.Equal(t, 5.3, Average([]float64{4.5, 5.5, 6.0}))
	assert.Equal(t, 4.5, Average([]float64{4.0, 5.0}))
}

func TestAttendancePercentage(t *testing.T) {
	assert.Equal(t, 75.0, AttendancePercentage(models.AttendanceCounts{Total: 4, Present: 3, Absent: 1}))
	assert.Equal(t, 0.0, AttendancePercentage(models.AttendanceCounts{}))
	assert.Equal(t, 66.67, AttendancePercentage(models.AttendanceCounts{Total: 3, Present: 2, Absent: 1}))
}

func TestStatus(t *testing.T) {
	p := DefaultAcademicPolicy()
	ninety := models.AttendanceCounts{Total: 10, Present: 9, Absent: 1}
	half := models.AttendanceCounts{Total: 10, Present: 5, Absent: 5}

	cases := []struct {
		name       string
		gradeCount int
		average    float64
		attendance models.AttendanceCounts
		want       models.AcademicStatus
	}{
		{"failing grades with good attendance", 2, 3.5, ninety, models.AcademicStatusFailedByGrades},
		{"grades checked before attendance", 2, 3.5, half, models.AcademicStatusFailedByGrades},
		{"low attendance", 3, 5.0, half, models.AcademicStatusFailedByAttendance},
		{"approved", 3, 4.0, ninety, models.AcademicStatusApproved},
		{"approved without attendance records", 1, 6.0, models.AttendanceCounts{}, models.AcademicStatusApproved},
		{"no grades yet", 0, 0, half, models.AcademicStatusInProgress},
		{"exactly at attendance threshold", 1, 4.5, models.AttendanceCounts{Total: 4, Present: 3, Absent: 1}, models.AcademicStatusApproved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.Status(tc.gradeCount, tc.average, tc.attendance))
		})
	}
}

func TestValidateScore(t *testing.T) {
	p := DefaultAcademicPolicy()
	assert.NoError(t, p.ValidateScore(1.0))
	assert.NoError(t, p.ValidateScore(7.0))
	err := p.ValidateScore(7.1)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "between 1.0 and 7.0")
	assert.ErrorIs(t, p.ValidateScore(0.9), appErrors.ErrValidation)
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2024-04-02")
	assert.NoError(t, err)
	assert.Equal(t, 2, d.Day())

	_, err = parseDate("02/04/2024")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
