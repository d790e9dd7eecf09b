package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		rawCode int
		want    ErrorKind
	}{
		{0, KindNone},
		{2, KindResourceMissing},
		{13, KindAuthenticationFailed},
		{17, KindAlreadyBound},
		{60, KindTimedOutHost},
		{64, KindHostUnreachable},
		{65, KindHostUnreachable},
		{80, KindAuthenticationFailed},
		{-6003, KindResourceMissing},
		{9999, KindUnknownProviderCode},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.rawCode), "raw code %d", tt.rawCode)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusMounted, KindNone.StatusFor())
	assert.Equal(t, StatusMounted, KindAlreadyBound.StatusFor())
	assert.Equal(t, StatusUnreachable, KindHostUnreachable.StatusFor())
	assert.Equal(t, StatusUnreachable, KindTimedOutHost.StatusFor())
	assert.Equal(t, StatusInvalidCredentials, KindAuthenticationFailed.StatusFor())
	assert.Equal(t, StatusObstructingDirectory, KindLocalObstruction.StatusFor())
	assert.Equal(t, StatusErrorOnMount, KindMalformedResource.StatusFor())
	assert.Equal(t, StatusErrorOnMount, KindResourceMissing.StatusFor())
	assert.Equal(t, StatusErrorOnMount, KindUnknownProviderCode.StatusFor())
}

func TestRetryable(t *testing.T) {
	assert.True(t, KindHostUnreachable.Retryable())
	assert.True(t, KindTimedOutHost.Retryable())
	assert.False(t, KindAuthenticationFailed.Retryable())
	assert.False(t, KindResourceMissing.Retryable())
}
