package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendHTTP_Code(t *testing.T) {
	err := BackendHTTP(503, "service unavailable", nil)

	assert.Equal(t, "backend_503", err.Code)
	assert.Equal(t, KindBackendHTTP, err.Kind)
	assert.Equal(t, "503", err.Details["status"])
	assert.Equal(t, "service unavailable", err.Details["body"])
	assert.False(t, err.Retryable)
}

func TestTransport_Retryable(t *testing.T) {
	err := Transport(CodeTimeout, "request timed out", nil)

	assert.True(t, IsRetryable(err))
	assert.Equal(t, CodeTimeout, GetCode(err))
}

func TestValidation_NotRetryable(t *testing.T) {
	err := Validationf("top_k must be positive, got %d", -1)

	assert.False(t, IsRetryable(err))
	assert.Equal(t, KindValidation, err.Kind)
	assert.Contains(t, err.Message, "-1")
}

func TestUnwrap_PreservesCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Internal("store write failed", cause)

	assert.ErrorIs(t, err, cause)
}

func TestIs_MatchesByCode(t *testing.T) {
	err := NotFound("run fusion-abc not found")

	assert.ErrorIs(t, err, NotFound("anything"))
	assert.NotErrorIs(t, err, Precondition("anything"))
}

func TestGetCode_WrappedChain(t *testing.T) {
	inner := Precondition("representatives already registered")
	wrapped := fmt.Errorf("register: %w", inner)

	assert.Equal(t, CodePrecondition, GetCode(wrapped))
	assert.Equal(t, KindPrecondition, GetKind(wrapped))
}

func TestGetCode_PlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, GetCode(stderrors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := Integrity("cannot resolve identifier").WithDetail("id", "XX9999")

	require.NotNil(t, err.Details)
	assert.Equal(t, "XX9999", err.Details["id"])
}
