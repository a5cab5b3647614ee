package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLifecycleHappyPath(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusConfirmed))
	assert.True(t, CanTransition(StatusConfirmed, StatusShipping))
	assert.True(t, CanTransition(StatusShipping, StatusDelivered))
}

func TestCancelledReachableFromAnyNonTerminal(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusConfirmed, StatusShipping} {
		assert.Truef(t, CanTransition(from, StatusCancelled), "from=%s", from)
	}
}

func TestTerminalStatesHaveNoExit(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusShipping, StatusDelivered, StatusCancelled}
	for _, to := range all {
		assert.Falsef(t, CanTransition(StatusDelivered, to), "delivered -> %s", to)
		assert.Falsef(t, CanTransition(StatusCancelled, to), "cancelled -> %s", to)
	}
}

func TestNoSkippingStages(t *testing.T) {
	assert.False(t, CanTransition(StatusPending, StatusShipping))
	assert.False(t, CanTransition(StatusPending, StatusDelivered))
	assert.False(t, CanTransition(StatusConfirmed, StatusDelivered))
	assert.False(t, CanTransition(StatusShipping, StatusConfirmed))
}
