package appointment

// allowedTransitions maps a current status to the set of legal next statuses.
// Terminal statuses have no entry: nothing moves out of them.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransition reports whether the state machine permits from -> to,
// independent of who is asking.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// clientMayRequest reports whether a client may ask for the target status on
// their own appointment. Cancellation is the only client-initiated transition.
func clientMayRequest(to Status) bool {
	return to == StatusCancelled
}

// providerMayRequest reports whether a provider may ask for the target status
// on their own appointment.
func providerMayRequest(to Status) bool {
	switch to {
	case StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	default:
		return false
	}
}
