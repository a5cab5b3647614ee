package payment

type State string

const (
	StateUnpaid   State = "unpaid"
	StatePaid     State = "paid"
	StateRefunded State = "refunded"
)

// Transitions are monotonic: once paid an order never silently becomes unpaid
// again, it can only move on to refunded.
var validNext = map[State]map[State]bool{
	StateUnpaid:   {StatePaid: true},
	StatePaid:     {StateRefunded: true},
	StateRefunded: {},
}

func CanTransition(from, to State) bool {
	return validNext[from][to]
}
