package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"careslot/auth"
	"careslot/notify"
)

var (
	// ErrInvalidInput signals malformed or out-of-range booking fields. It is
	// always raised before any store access.
	ErrInvalidInput = errors.New("appointment: invalid input")
	// ErrProviderUnavailable signals a provider that is missing, deactivated
	// or not yet verified.
	ErrProviderUnavailable = errors.New("appointment: provider not found or unavailable")
	// ErrInvalidTransition signals a status change the state machine forbids.
	ErrInvalidTransition = errors.New("appointment: invalid status transition")
	// ErrNotReviewable signals a review attempt on an appointment that is not
	// the caller's completed session.
	ErrNotReviewable = errors.New("appointment: not found or not completed")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service orchestrates booking, status transitions, slot derivation and
// rating aggregation.
type Service struct {
	pool        TxBeginner
	repo        Repository
	notifier    notify.Notifier
	logger      *slog.Logger
	idGenerator func() string
	now         func() time.Time
}

// NewService creates a booking service. notifier may be nil when no
// notification collaborator is wired.
func NewService(pool TxBeginner, repo Repository, notifier notify.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pool:        pool,
		repo:        repo,
		notifier:    notifier,
		logger:      logger,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// BookParams contains booking data supplied by a client.
type BookParams struct {
	ProviderID string      `json:"provider_id"`
	Date       string      `json:"date"`
	StartTime  string      `json:"start_time"`
	Duration   int         `json:"duration"`
	Kind       SessionKind `json:"session_type"`
	Mode       SessionMode `json:"session_mode"`
	Notes      *string     `json:"notes,omitempty"`
}

// Book creates a new pending appointment. The conflict check and the insert
// run in one transaction under a provider row lock, with the overlap exclusion
// constraint as backstop, so of two racing bookings for overlapping intervals
// at most one commits; the other observes ErrSlotUnavailable.
func (s *Service) Book(ctx context.Context, clientID string, params BookParams) (Appointment, error) {
	date, startMin, endMin, err := validateBooking(params)
	if err != nil {
		return Appointment{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	provider, err := s.repo.ProviderForBooking(ctx, tx, params.ProviderID)
	if err != nil {
		return Appointment{}, err
	}
	if !provider.Active || !provider.Verified {
		return Appointment{}, ErrProviderUnavailable
	}

	conflict, err := s.repo.HasConflict(ctx, tx, params.ProviderID, date, startMin, endMin)
	if err != nil {
		return Appointment{}, err
	}
	if conflict {
		return Appointment{}, ErrSlotUnavailable
	}

	// Amount is computed at the current rate and frozen; later rate changes
	// never touch existing appointments.
	amount := provider.HourlyRate * float64(params.Duration) / 60

	appt, err := s.repo.Insert(ctx, tx, Appointment{
		ID:         s.idGenerator(),
		ClientID:   clientID,
		ProviderID: params.ProviderID,
		Date:       date,
		StartTime:  formatClock(startMin),
		EndTime:    formatClock(endMin),
		Duration:   params.Duration,
		Kind:       params.Kind,
		Mode:       params.Mode,
		Status:     StatusPending,
		Notes:      params.Notes,
		Amount:     amount,
	})
	if err != nil {
		return Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Appointment{}, fmt.Errorf("appointment: commit booking: %w", err)
	}

	s.emit(ctx, notify.Event{
		Type:        notify.TypeBooked,
		RecipientID: appt.ProviderID,
		Partition:   string(auth.PartitionProvider),
		Payload: map[string]any{
			"appointment_id": appt.ID,
			"date":           params.Date,
			"start_time":     appt.StartTime,
		},
	})

	return appt, nil
}

// SetStatus applies one state-machine transition on behalf of the given
// principal. Ownership misses surface as ErrNotFound so authorization never
// reveals whether the appointment exists.
func (s *Service) SetStatus(ctx context.Context, appointmentID string, principal auth.Principal, next Status, notes, cancellationReason *string) (Appointment, error) {
	if !validStatus(next) {
		return Appointment{}, fmt.Errorf("%w: status %q", ErrInvalidInput, next)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := s.repo.GetForUpdate(ctx, tx, appointmentID)
	if err != nil {
		return Appointment{}, err
	}

	switch principal.Partition {
	case auth.PartitionProvider:
		if appt.ProviderID != principal.ID() {
			return Appointment{}, ErrNotFound
		}
		if !providerMayRequest(next) {
			return Appointment{}, ErrInvalidTransition
		}
	case auth.PartitionClient:
		if appt.ClientID != principal.ID() {
			return Appointment{}, ErrNotFound
		}
		if !clientMayRequest(next) {
			return Appointment{}, ErrInvalidTransition
		}
	default:
		return Appointment{}, auth.ErrForbidden
	}

	if !CanTransition(appt.Status, next) {
		return Appointment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, next)
	}

	updated, err := s.repo.UpdateStatus(ctx, tx, appointmentID, next, notes, cancellationReason)
	if err != nil {
		return Appointment{}, err
	}

	if next == StatusCompleted {
		if err := s.repo.IncrementProviderSessions(ctx, tx, appt.ProviderID); err != nil {
			return Appointment{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Appointment{}, fmt.Errorf("appointment: commit transition: %w", err)
	}

	if next == StatusCancelled {
		recipient, partition := appt.ProviderID, auth.PartitionProvider
		if principal.Partition == auth.PartitionProvider {
			recipient, partition = appt.ClientID, auth.PartitionClient
		}
		s.emit(ctx, notify.Event{
			Type:        notify.TypeCancelled,
			RecipientID: recipient,
			Partition:   string(partition),
			Payload:     map[string]any{"appointment_id": appt.ID},
		})
	}

	return updated, nil
}

// Cancel is a convenience wrapper restricted to the cancelled transition,
// used by clients cancelling their own booking.
func (s *Service) Cancel(ctx context.Context, appointmentID string, principal auth.Principal, reason *string) (Appointment, error) {
	return s.SetStatus(ctx, appointmentID, principal, StatusCancelled, nil, reason)
}

// Get returns an appointment visible to the principal (its client, its
// provider, or any admin).
func (s *Service) Get(ctx context.Context, appointmentID string, principal auth.Principal) (Appointment, error) {
	appt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	switch principal.Partition {
	case auth.PartitionClient:
		if appt.ClientID != principal.ID() {
			return Appointment{}, ErrNotFound
		}
	case auth.PartitionProvider:
		if appt.ProviderID != principal.ID() {
			return Appointment{}, ErrNotFound
		}
	case auth.PartitionAdmin:
	default:
		return Appointment{}, auth.ErrForbidden
	}
	return appt, nil
}

// emit fires a notification without letting a collaborator failure affect the
// committed core write.
func (s *Service) emit(ctx context.Context, event notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("notification emit failed",
			slog.String("type", event.Type),
			slog.String("error", err.Error()))
	}
}

// validateBooking performs all static input checks before any store access.
func validateBooking(params BookParams) (date time.Time, startMin, endMin int, err error) {
	if params.ProviderID == "" {
		return time.Time{}, 0, 0, fmt.Errorf("%w: provider_id is required", ErrInvalidInput)
	}
	date, err = time.Parse("2006-01-02", params.Date)
	if err != nil {
		return time.Time{}, 0, 0, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	startMin, err = parseClock(params.StartTime)
	if err != nil {
		return time.Time{}, 0, 0, fmt.Errorf("%w: start_time must be HH:MM", ErrInvalidInput)
	}
	if params.Duration < MinDuration || params.Duration > MaxDuration {
		return time.Time{}, 0, 0, fmt.Errorf("%w: duration must be %d-%d minutes", ErrInvalidInput, MinDuration, MaxDuration)
	}
	if !validKind(params.Kind) {
		return time.Time{}, 0, 0, fmt.Errorf("%w: session_type %q", ErrInvalidInput, params.Kind)
	}
	if !validMode(params.Mode) {
		return time.Time{}, 0, 0, fmt.Errorf("%w: session_mode %q", ErrInvalidInput, params.Mode)
	}
	if params.Notes != nil && len(*params.Notes) > 1000 {
		return time.Time{}, 0, 0, fmt.Errorf("%w: notes too long", ErrInvalidInput)
	}

	endMin = startMin + params.Duration
	// Sessions must not cross midnight; end time stays on the booking date.
	if endMin > minutesPerDay {
		return time.Time{}, 0, 0, fmt.Errorf("%w: session would cross midnight", ErrInvalidInput)
	}
	return date, startMin, endMin, nil
}
