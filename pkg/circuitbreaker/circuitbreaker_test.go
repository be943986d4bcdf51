package circuitbreaker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})

	for i := 0; i < 10; i++ {
		assert.NoError(t, cb.Execute(func() error { return nil }))
	}
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 3, Timeout: time.Minute})
	boom := fmt.Errorf("boom")

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	}

	// Open: calls are rejected without running the function.
	ran := false
	err := cb.Execute(func() error { ran = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, ran)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})
	boom := fmt.Errorf("boom")

	assert.Error(t, cb.Execute(func() error { return boom }))
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Error(t, cb.Execute(func() error { return boom }))

	// One success in between kept the breaker closed.
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

func TestBreakerProbesAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 1, Timeout: 10 * time.Millisecond})
	boom := fmt.Errorf("boom")

	assert.Error(t, cb.Execute(func() error { return boom }))
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrOpen)

	time.Sleep(20 * time.Millisecond)

	// The probe succeeds and closes the breaker again.
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 1, Timeout: 10 * time.Millisecond})
	boom := fmt.Errorf("boom")

	assert.Error(t, cb.Execute(func() error { return boom }))
	time.Sleep(20 * time.Millisecond)

	// The half-open probe fails and snaps the breaker open again.
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrOpen)
}

func TestSettingsDefaults(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "defaults"})
	assert.Equal(t, 5, cb.maxFailures)
	assert.Equal(t, 30*time.Second, cb.timeout)
}
