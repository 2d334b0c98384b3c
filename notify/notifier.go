// Package notify is the fire-and-forget notification collaborator. The core
// only enqueues events; delivery fan-out and read-state tracking live outside
// this service. A notifier failure is logged by the caller and never rolls
// back the write that produced the event.
package notify

import "context"

// Event types emitted by the booking core.
const (
	TypeBooked    = "appointment.booked"
	TypeCancelled = "appointment.cancelled"
	TypeVerified  = "provider.verified"
)

// Event is one notification addressed to a principal.
type Event struct {
	Type        string
	RecipientID string
	Partition   string
	Payload     map[string]any
}

// Notifier enqueues a notification for later delivery.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
