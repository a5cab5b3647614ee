package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateUnpaid, StatePaid))
	assert.True(t, CanTransition(StatePaid, StateRefunded))

	// monotonic: paid never slides back to unpaid
	assert.False(t, CanTransition(StatePaid, StateUnpaid))
	assert.False(t, CanTransition(StateRefunded, StatePaid))
	assert.False(t, CanTransition(StateRefunded, StateUnpaid))
	assert.False(t, CanTransition(StateUnpaid, StateRefunded))

	// self transitions are not in the map; callers treat same-state as no-op
	assert.False(t, CanTransition(StatePaid, StatePaid))
}
