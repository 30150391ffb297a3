package errors

import (
	"database/sql"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrCapacityExceeded, "offering is full")
	assert.Equal(t, "offering is full", err.Message)
	assert.Equal(t, "no seats available", ErrCapacityExceeded.Message)
	assert.True(t, stdErrors.Is(fmt.Errorf("enroll: %w", err), ErrCapacityExceeded))
	assert.False(t, stdErrors.Is(err, ErrConflict))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "CONFLICT", Kind(Clone(ErrConflict, "duplicate")))
	assert.Equal(t, "INTERNAL_ERROR", Kind(stdErrors.New("boom")))
}
