package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerTripsAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Second, 5*time.Minute)
	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.RecordFailure())
	assert.True(t, cb.RecordFailure())
	assert.True(t, cb.Tripped())
}

func TestCircuitBreakerResetsOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Second, time.Minute)
	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Tripped())
	cb.RecordSuccess()
	assert.False(t, cb.Tripped())
	assert.Equal(t, 0, cb.Consecutive())
}

func TestCircuitBreakerBackoffCapsAtMax(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Second, 4*time.Second)
	for i := 0; i < 10; i++ {
		cb.RecordFailure()
	}
	assert.Equal(t, 4*time.Second, cb.Backoff())
}

func TestCircuitBreakerDefaultsThresholdWhenZero(t *testing.T) {
	cb := NewCircuitBreaker(0, time.Second, time.Minute)
	cb.RecordFailure()
	cb.RecordFailure()
	assert.False(t, cb.Tripped())
	cb.RecordFailure()
	assert.True(t, cb.Tripped())
}
