package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})
	cb.now = func() time.Time { return now }

	fail := errors.New("fail")
	calls := 0
	failing := func() error { calls++; return fail }
	ok := func() error { calls++; return nil }

	assert.ErrorIs(t, cb.Execute(failing), fail)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(failing), fail)
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(ok), ErrOpen)
	assert.Equal(t, 2, calls)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())

	// a failed trial call reopens immediately
	assert.ErrorIs(t, cb.Execute(failing), fail)
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Minute)
	assert.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())
	assert.Equal(t, "test", cb.Name())
}

func openBreaker(t *testing.T, now *time.Time) *CircuitBreaker {
	t.Helper()
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 1, Timeout: time.Minute})
	cb.now = func() time.Time { return *now }
	require.Error(t, cb.Execute(func() error { return errors.New("fail") }))
	require.Equal(t, StateOpen, cb.State())
	*now = now.Add(2 * time.Minute)
	require.Equal(t, StateHalfOpen, cb.State())
	return cb
}

func TestCircuitBreaker_SingleHalfOpenTrial(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := openBreaker(t, &now)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	calls := 0
	assert.ErrorIs(t, cb.Execute(func() error { calls++; return nil }), ErrOpen)
	assert.Equal(t, 0, calls)
	assert.Equal(t, StateHalfOpen, cb.State())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Execute(func() error { calls++; return nil }))
	assert.Equal(t, 1, calls)
}

func TestCircuitBreaker_PanickingTrialReopens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := openBreaker(t, &now)

	assert.Panics(t, func() {
		_ = cb.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Minute)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}
