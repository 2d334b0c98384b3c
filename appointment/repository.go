package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that the appointment does not exist, or does not
	// belong to the caller. The two cases are indistinguishable on purpose.
	ErrNotFound = errors.New("appointment: not found")
	// ErrSlotUnavailable signals that the requested interval overlaps a
	// non-terminal appointment for the same provider and date.
	ErrSlotUnavailable = errors.New("appointment: time slot is not available")
)

// ProviderInfo is the provider projection the booking transaction needs.
type ProviderInfo struct {
	ID         string
	HourlyRate float64
	Active     bool
	Verified   bool
}

// Repository defines the data access required by the booking service. Methods
// taking a pgx.Tx participate in the caller's transaction.
type Repository interface {
	// ProviderForBooking loads and row-locks the provider, serializing
	// concurrent bookings for the same provider.
	ProviderForBooking(ctx context.Context, tx pgx.Tx, providerID string) (ProviderInfo, error)
	// HasConflict reports whether a non-terminal appointment for the provider
	// on the date overlaps [startMin, endMin) in minutes since midnight.
	HasConflict(ctx context.Context, tx pgx.Tx, providerID string, date time.Time, startMin, endMin int) (bool, error)
	Insert(ctx context.Context, tx pgx.Tx, appt Appointment) (Appointment, error)
	Get(ctx context.Context, id string) (Appointment, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Appointment, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status Status, notes, cancellationReason *string) (Appointment, error)
	SetReview(ctx context.Context, tx pgx.Tx, id string, rating int, review *string) (Appointment, error)
	// CompletedRatings returns every rating attached to the provider's
	// completed appointments, for the full-scan mean recompute.
	CompletedRatings(ctx context.Context, tx pgx.Tx, providerID string) ([]int, error)
	SetProviderRating(ctx context.Context, tx pgx.Tx, providerID string, rating float64) error
	IncrementProviderSessions(ctx context.Context, tx pgx.Tx, providerID string) error
	// BookedStarts returns the start times (HH:MM) of non-terminal
	// appointments for the provider on the date.
	BookedStarts(ctx context.Context, providerID string, date time.Time) ([]string, error)
	ProviderExists(ctx context.Context, providerID string) (bool, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const apptColumns = `id, client_id, provider_id, date, start_time, end_time, duration, kind, mode, status,
    notes, cancellation_reason, rating, review, amount, created_at, updated_at`

func (r *PGRepository) ProviderForBooking(ctx context.Context, tx pgx.Tx, providerID string) (ProviderInfo, error) {
	const query = `SELECT id, hourly_rate, active, verified FROM providers WHERE id = $1 FOR UPDATE`

	var info ProviderInfo
	err := tx.QueryRow(ctx, query, providerID).Scan(&info.ID, &info.HourlyRate, &info.Active, &info.Verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProviderInfo{}, ErrProviderUnavailable
		}
		return ProviderInfo{}, fmt.Errorf("appointment: load provider: %w", err)
	}
	return info, nil
}

func (r *PGRepository) HasConflict(ctx context.Context, tx pgx.Tx, providerID string, date time.Time, startMin, endMin int) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM appointments
            WHERE provider_id = $1 AND date = $2
              AND status IN ('pending', 'confirmed')
              AND start_min < $4 AND end_min > $3
        )
    `

	var conflict bool
	if err := tx.QueryRow(ctx, query, providerID, date, startMin, endMin).Scan(&conflict); err != nil {
		return false, fmt.Errorf("appointment: conflict check: %w", err)
	}
	return conflict, nil
}

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, appt Appointment) (Appointment, error) {
	startMin, err := parseClock(appt.StartTime)
	if err != nil {
		return Appointment{}, err
	}
	endMin, err := parseClock(appt.EndTime)
	if err != nil {
		return Appointment{}, err
	}

	const insertSQL = `
        INSERT INTO appointments (id, client_id, provider_id, date, start_time, end_time, start_min, end_min,
            duration, kind, mode, status, notes, amount)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING ` + apptColumns

	row := tx.QueryRow(ctx, insertSQL,
		appt.ID, appt.ClientID, appt.ProviderID, appt.Date, appt.StartTime, appt.EndTime,
		startMin, endMin, appt.Duration, appt.Kind, appt.Mode, appt.Status, appt.Notes, appt.Amount)

	created, err := scanAppointment(row)
	if err != nil {
		// The partial exclusion constraint is the backstop for two bookings
		// racing past the conflict check; the loser lands here.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			return Appointment{}, ErrSlotUnavailable
		}
		return Appointment{}, fmt.Errorf("appointment: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("appointment: get: %w", err)
	}
	return appt, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Appointment, error) {
	row := tx.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("appointment: get for update: %w", err)
	}
	return appt, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status Status, notes, cancellationReason *string) (Appointment, error) {
	const updateSQL = `
        UPDATE appointments
        SET status = $1,
            notes = COALESCE($2, notes),
            cancellation_reason = COALESCE($3, cancellation_reason),
            updated_at = now()
        WHERE id = $4
        RETURNING ` + apptColumns

	appt, err := scanAppointment(tx.QueryRow(ctx, updateSQL, status, notes, cancellationReason, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("appointment: update status: %w", err)
	}
	return appt, nil
}

func (r *PGRepository) SetReview(ctx context.Context, tx pgx.Tx, id string, rating int, review *string) (Appointment, error) {
	const updateSQL = `
        UPDATE appointments
        SET rating = $1, review = $2, updated_at = now()
        WHERE id = $3
        RETURNING ` + apptColumns

	appt, err := scanAppointment(tx.QueryRow(ctx, updateSQL, rating, review, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("appointment: set review: %w", err)
	}
	return appt, nil
}

func (r *PGRepository) CompletedRatings(ctx context.Context, tx pgx.Tx, providerID string) ([]int, error) {
	const query = `
        SELECT rating FROM appointments
        WHERE provider_id = $1 AND status = 'completed' AND rating IS NOT NULL
    `

	rows, err := tx.Query(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("appointment: completed ratings: %w", err)
	}
	defer rows.Close()

	var ratings []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

func (r *PGRepository) SetProviderRating(ctx context.Context, tx pgx.Tx, providerID string, rating float64) error {
	if _, err := tx.Exec(ctx, `UPDATE providers SET rating = $1, updated_at = now() WHERE id = $2`, rating, providerID); err != nil {
		return fmt.Errorf("appointment: set provider rating: %w", err)
	}
	return nil
}

func (r *PGRepository) IncrementProviderSessions(ctx context.Context, tx pgx.Tx, providerID string) error {
	if _, err := tx.Exec(ctx, `UPDATE providers SET total_sessions = total_sessions + 1, updated_at = now() WHERE id = $1`, providerID); err != nil {
		return fmt.Errorf("appointment: increment sessions: %w", err)
	}
	return nil
}

func (r *PGRepository) BookedStarts(ctx context.Context, providerID string, date time.Time) ([]string, error) {
	const query = `
        SELECT start_time FROM appointments
        WHERE provider_id = $1 AND date = $2 AND status IN ('pending', 'confirmed')
    `

	rows, err := r.pool.Query(ctx, query, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("appointment: booked starts: %w", err)
	}
	defer rows.Close()

	var starts []string
	for rows.Next() {
		var start string
		if err := rows.Scan(&start); err != nil {
			return nil, err
		}
		starts = append(starts, start)
	}
	return starts, rows.Err()
}

func (r *PGRepository) ProviderExists(ctx context.Context, providerID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE id = $1)`, providerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("appointment: provider exists: %w", err)
	}
	return exists, nil
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.ClientID, &a.ProviderID, &a.Date, &a.StartTime, &a.EndTime, &a.Duration,
		&a.Kind, &a.Mode, &a.Status, &a.Notes, &a.CancellationReason, &a.Rating, &a.Review,
		&a.Amount, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}
