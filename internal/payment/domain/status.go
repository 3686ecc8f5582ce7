package domain

// Signal is the canonical meaning of a gateway status, independent of gateway vocabulary.
type Signal string

const (
	SignalApproved  Signal = "approved"
	SignalPending   Signal = "pending"
	SignalOverdue   Signal = "overdue"
	SignalCancelled Signal = "cancelled"
	SignalRefunded  Signal = "refunded"
	SignalUnknown   Signal = "unknown"
)

// NextStatus reconciles a gateway signal against the stored status. Paid is only ever
// left through a refund, so late or out-of-order callbacks cannot undo a confirmation.
func NextStatus(current Status, signal Signal) (Status, bool) {
	next := current
	switch {
	case signal == SignalRefunded:
		next = StatusRefunded
	case current == StatusPaid:
		next = StatusPaid
	case signal == SignalApproved:
		next = StatusPaid
	case signal == SignalPending:
		next = StatusPending
	case signal == SignalCancelled:
		next = StatusCancelled
	case signal == SignalOverdue:
		next = StatusOverdue
	}
	return next, next != current
}

// Preserved reports whether the guard ignored a signal that would have moved a paid
// charge elsewhere.
func Preserved(current Status, signal Signal) bool {
	if current != StatusPaid {
		return false
	}
	switch signal {
	case SignalPending, SignalCancelled, SignalOverdue:
		return true
	default:
		return false
	}
}

// ManualTransitionAllowed guards operator edits: leaving paid for anything but refunded
// needs force.
func ManualTransitionAllowed(current, target Status, force bool) bool {
	if current != StatusPaid || force {
		return true
	}
	return target == StatusPaid || target == StatusRefunded
}
