package appointment

import (
	"fmt"
	"strconv"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

// Terminal reports whether no further transition is permitted from s. Only
// non-terminal appointments (pending, confirmed) block a conflicting slot.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}

func validStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}

// SessionKind is who attends the session.
type SessionKind string

const (
	KindIndividual SessionKind = "individual"
	KindGroup      SessionKind = "group"
	KindCouple     SessionKind = "couple"
)

func validKind(k SessionKind) bool {
	switch k {
	case KindIndividual, KindGroup, KindCouple:
		return true
	default:
		return false
	}
}

// SessionMode is how the session is delivered.
type SessionMode string

const (
	ModeVideo    SessionMode = "video"
	ModeAudio    SessionMode = "audio"
	ModeChat     SessionMode = "chat"
	ModeInPerson SessionMode = "in-person"
)

func validMode(m SessionMode) bool {
	switch m {
	case ModeVideo, ModeAudio, ModeChat, ModeInPerson:
		return true
	default:
		return false
	}
}

// Duration bounds in minutes.
const (
	MinDuration = 30
	MaxDuration = 180
)

// Appointment mirrors the appointments table. StartTime and EndTime are
// wall-clock HH:MM strings on Date; EndTime is always derived from
// StartTime + Duration and Amount is frozen at booking time.
type Appointment struct {
	ID                 string
	ClientID           string
	ProviderID         string
	Date               time.Time
	StartTime          string
	EndTime            string
	Duration           int
	Kind               SessionKind
	Mode               SessionMode
	Status             Status
	Notes              *string
	CancellationReason *string
	Rating             *int
	Review             *string
	Amount             float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Slot is one bookable (start, end) candidate from the business-hours grid.
type Slot struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

const minutesPerDay = 24 * 60

// parseClock converts an HH:MM wall-clock string into minutes since midnight.
func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("appointment: time %q is not HH:MM", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("appointment: time %q is not HH:MM", s)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, fmt.Errorf("appointment: time %q is not HH:MM", s)
	}
	// 24:00 is the end-of-day sentinel for sessions finishing exactly at
	// midnight; it is never a valid start time (callers bound starts at 23:59
	// via duration checks).
	if h == 24 && m == 0 {
		return minutesPerDay, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("appointment: time %q out of range", s)
	}
	return h*60 + m, nil
}

// formatClock renders minutes since midnight as HH:MM.
func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
