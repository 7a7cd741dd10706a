package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errGateway = errors.New("gateway timeout")

func fallar() error { return errGateway }
func pasar() error  { return nil }

func TestCBAbreTrasUmbralDeFallos(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(fallar), errGateway)
		assert.Equal(t, CBClosed, cb.State())
	}
	assert.ErrorIs(t, cb.Execute(fallar), errGateway)
	assert.Equal(t, CBOpen, cb.State())

	// Open: the function is not even invoked.
	invocado := false
	err := cb.Execute(func() error { invocado = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, invocado)
}

func TestCBExitoReiniciaContadorEnCerrado(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Minute})

	require.Error(t, cb.Execute(fallar))
	require.NoError(t, cb.Execute(pasar))
	require.Error(t, cb.Execute(fallar))
	// One failure after the reset is below the threshold of two.
	assert.Equal(t, CBClosed, cb.State())
}

func TestCBMedioAbiertoTrasTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 20 * time.Millisecond})

	require.Error(t, cb.Execute(fallar))
	require.Equal(t, CBOpen, cb.State())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, CBHalfOpen, cb.State())

	// Two probe successes close the breaker again.
	require.NoError(t, cb.Execute(pasar))
	assert.Equal(t, CBHalfOpen, cb.State())
	require.NoError(t, cb.Execute(pasar))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCBProbeFallidoReabre(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: 20 * time.Millisecond})

	require.Error(t, cb.Execute(fallar))
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, CBHalfOpen, cb.State())

	require.ErrorIs(t, cb.Execute(fallar), errGateway)
	assert.Equal(t, CBOpen, cb.State())
}

func TestCBDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	assert.Equal(t, 5, cb.failureThreshold)
	assert.Equal(t, 2, cb.successThreshold)
	assert.Equal(t, time.Minute, cb.openTimeout)
	assert.Equal(t, CBClosed, cb.State())
}
