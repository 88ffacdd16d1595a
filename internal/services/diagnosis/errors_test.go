package diagnosis

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError_MatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewTimeoutError(KeyFastInference, 30, errors.New("deadline")))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrConnectionFailed)
	assert.True(t, IsKind(err, KindTimeout))
	assert.False(t, IsKind(errors.New("plain"), KindTimeout))
	assert.Contains(t, err.Error(), "exceeded 30s timeout")
}

func TestProviderError_UnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewConnectionFailedError(KeyFastInference, "request failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "from fast-inference")
}

func TestProviderError_UserMessageHidesDetails(t *testing.T) {
	err := NewInvalidResponseError(KeyFastInference, `raw "sk-secret" payload`, nil)
	assert.NotContains(t, err.UserMessage(), "sk-secret")
	assert.Contains(t, NewRateLimitedError("x", nil).UserMessage(), "try again")
}
