package scheduler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionError_Error(t *testing.T) {
	err := newConnectionError("start classifier", errors.New("refused"))
	assert.Equal(t, "CONNECTION_FAILED: start classifier: refused", err.Error())

	err = &SessionError{Code: ErrCodeLog, Message: "disk full"}
	assert.Equal(t, "LOG_FAILED: disk full", err.Error())
}

func TestSessionError_Predicates(t *testing.T) {
	wrapped := fmt.Errorf("presenter: %w", newActiveError())
	assert.True(t, IsActiveError(wrapped))
	assert.False(t, IsConnectionError(wrapped))
	assert.ErrorIs(t, wrapped, ErrSessionActive)

	cause := errors.New("permission denied")
	logErr := newLogError("/tmp/x.txt", cause)
	assert.True(t, IsLogError(logErr))
	assert.ErrorIs(t, logErr, cause)

	policyErr := newPolicyError(errors.New("tick interval must be positive"))
	assert.True(t, IsPolicyError(policyErr))
	assert.False(t, IsLogError(policyErr))
	assert.Equal(t, "INVALID_POLICY: invalid policy: tick interval must be positive", policyErr.Error())

	assert.False(t, IsActiveError(errors.New("plain")))
	assert.False(t, IsLogError(nil))
}
