package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneOverridesMessageOnly(t *testing.T) {
	clone := Clone(ErrIllegalTransition, "Only pending claims can be approved by coordinators.")
	assert.Equal(t, ErrIllegalTransition.Code, clone.Code)
	assert.Equal(t, http.StatusConflict, clone.Status)
	assert.Equal(t, "Only pending claims can be approved by coordinators.", clone.Message)

	// The shared sentinel must stay untouched.
	assert.NotEqual(t, clone.Message, ErrIllegalTransition.Message)

	same := Clone(ErrClaimNotFound, "")
	assert.Equal(t, ErrClaimNotFound.Message, same.Message)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	wrapped := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed to fetch claim")

	require.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "failed to fetch claim")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	plain := fmt.Errorf("boom")
	converted := FromError(plain)
	assert.Equal(t, ErrInternal.Code, converted.Code)
	assert.Equal(t, http.StatusInternalServerError, converted.Status)

	typed := FromError(Clone(ErrFileTooLarge, ""))
	assert.Equal(t, ErrFileTooLarge.Code, typed.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, typed.Status)
}

func TestIsMatchesByCode(t *testing.T) {
	assert.True(t, Is(Clone(ErrClaimNotFound, "Claim not found."), ErrClaimNotFound))
	assert.True(t, Is(Wrap(fmt.Errorf("x"), ErrInvalidReason.Code, ErrInvalidReason.Status, "reason missing"), ErrInvalidReason))
	assert.False(t, Is(ErrClaimNotFound, ErrIllegalTransition))
	assert.False(t, Is(fmt.Errorf("plain"), ErrClaimNotFound))
	assert.False(t, Is(nil, ErrClaimNotFound))
}
