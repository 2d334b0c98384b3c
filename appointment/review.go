package appointment

import (
	"context"
	"errors"
	"fmt"
)

// AttachReview writes a rating and optional review text onto the client's own
// completed appointment, then recomputes the provider's aggregate rating as
// the arithmetic mean over every rated completed appointment. The recompute
// is a full scan rather than an incremental running mean: it costs more per
// write but cannot drift, including when an existing rating is overwritten.
func (s *Service) AttachReview(ctx context.Context, appointmentID, clientID string, rating int, review *string) (Appointment, error) {
	if rating < 1 || rating > 5 {
		return Appointment{}, fmt.Errorf("%w: rating must be 1-5", ErrInvalidInput)
	}
	if review != nil && len(*review) > 1000 {
		return Appointment{}, fmt.Errorf("%w: review too long", ErrInvalidInput)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := s.repo.GetForUpdate(ctx, tx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Appointment{}, ErrNotReviewable
		}
		return Appointment{}, err
	}
	if appt.ClientID != clientID || appt.Status != StatusCompleted {
		return Appointment{}, ErrNotReviewable
	}

	updated, err := s.repo.SetReview(ctx, tx, appointmentID, rating, review)
	if err != nil {
		return Appointment{}, err
	}

	ratings, err := s.repo.CompletedRatings(ctx, tx, appt.ProviderID)
	if err != nil {
		return Appointment{}, err
	}
	var sum int
	for _, r := range ratings {
		sum += r
	}
	var mean float64
	if len(ratings) > 0 {
		mean = float64(sum) / float64(len(ratings))
	}
	if err := s.repo.SetProviderRating(ctx, tx, appt.ProviderID, mean); err != nil {
		return Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Appointment{}, fmt.Errorf("appointment: commit review: %w", err)
	}
	return updated, nil
}
