package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormatting(t *testing.T) {
	cause := stderrors.New("connection reset")

	err := Storage("append payment", cause)
	assert.Equal(t, "STORAGE: append payment: connection reset", err.Error())
	assert.NotEmpty(t, err.StackTrace())
	assert.ErrorIs(t, err, cause)

	coded := Conflict("application already exists", nil).WithCode(CodeDuplicateApplication)
	assert.Equal(t, "CONFLICT(DuplicateApplication): application already exists", coded.Error())
}

func TestTypeAndCodeThroughWrapping(t *testing.T) {
	base := Precondition("candidate is not hired", nil).WithCode(CodeCandidateNotHired)
	wrapped := fmt.Errorf("record payment: %w", base)

	assert.Equal(t, ErrTypePrecondition, TypeOf(wrapped))
	assert.Equal(t, CodeCandidateNotHired, CodeOf(wrapped))
	assert.True(t, IsType(wrapped, ErrTypePrecondition))
	assert.True(t, IsCode(wrapped, CodeCandidateNotHired))

	var de *DomainError
	require.True(t, As(wrapped, &de))
	assert.Equal(t, "candidate is not hired", de.Message)
}

func TestForeignErrors(t *testing.T) {
	err := stderrors.New("boom")

	assert.Equal(t, ErrTypeInternal, TypeOf(err))
	assert.Equal(t, CodeNone, CodeOf(err))
	assert.False(t, IsType(nil, ErrTypeInternal))
}

func TestDefaultCodes(t *testing.T) {
	assert.Equal(t, CodeNotFound, NotFound("missing", nil).Code)
	assert.Equal(t, CodeForbidden, Unauthorized("nope", nil).Code)
	assert.Equal(t, CodeNone, Validation("bad", nil).Code)
}
