package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsecutiveErrorsTripBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxConsecutiveErrors: 3})

	require.NoError(t, cb.AllowTrading())
	cb.OnError()
	cb.OnError()
	require.NoError(t, cb.AllowTrading())

	cb.OnError()
	assert.ErrorIs(t, cb.AllowTrading(), ErrCircuitBreakerOpen)
	assert.True(t, cb.Halted())
}

func TestSuccessResetsErrorCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxConsecutiveErrors: 2})
	cb.OnError()
	cb.OnSuccess()
	cb.OnError()
	assert.NoError(t, cb.AllowTrading())
}

func TestDailyLossTripsBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{DailyLossLimit: 1000})
	cb.AddPnL(-600)
	require.NoError(t, cb.AllowTrading())
	cb.AddPnL(-500)
	assert.ErrorIs(t, cb.AllowTrading(), ErrCircuitBreakerOpen)
}

func TestManualHaltAndResume(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	cb.Halt()
	assert.ErrorIs(t, cb.AllowTrading(), ErrCircuitBreakerOpen)
	cb.Resume()
	assert.NoError(t, cb.AllowTrading())
}

func TestZeroConfigNeverTrips(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	for i := 0; i < 100; i++ {
		cb.OnError()
	}
	cb.AddPnL(-1e9)
	assert.NoError(t, cb.AllowTrading())
}

func TestNilBreakerIsNoop(t *testing.T) {
	var cb *CircuitBreaker
	assert.NoError(t, cb.AllowTrading())
	cb.OnError()
	cb.AddPnL(-1)
	cb.Halt()
	assert.False(t, cb.Halted())
}
