package appointment

import (
	"context"
	"fmt"
	"time"
)

// Business-hours grid: one candidate slot per hour, 09:00 through 17:00
// starts, each one hour long.
const (
	businessDayStartHour = 9
	businessDayEndHour   = 18
)

// AvailableSlots derives the bookable slots for a provider on a calendar
// date: the fixed hourly grid minus candidates whose start matches a
// non-terminal appointment's start. The grid deliberately ignores the
// provider's declared weekly availability template, so callers must not
// assume slots reflect the provider's working hours.
func (s *Service) AvailableSlots(ctx context.Context, providerID string, date string) ([]Slot, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}

	exists, err := s.repo.ProviderExists(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrProviderUnavailable
	}

	starts, err := s.repo.BookedStarts(ctx, providerID, day)
	if err != nil {
		return nil, err
	}
	booked := make(map[string]bool, len(starts))
	for _, start := range starts {
		booked[start] = true
	}

	slots := []Slot{}
	for hour := businessDayStartHour; hour < businessDayEndHour; hour++ {
		start := formatClock(hour * 60)
		if booked[start] {
			continue
		}
		slots = append(slots, Slot{Start: start, End: formatClock((hour + 1) * 60)})
	}
	return slots, nil
}
