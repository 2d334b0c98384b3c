package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Outbox persists events as notification rows for an external delivery worker
// to pick up.
type Outbox struct {
	pool *pgxpool.Pool
}

func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

func (o *Outbox) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}
	_, err = o.pool.Exec(ctx, `
        INSERT INTO notifications (recipient_id, recipient_partition, type, payload)
        VALUES ($1, $2, $3, $4::jsonb)
    `, event.RecipientID, event.Partition, event.Type, payload)
	if err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	return nil
}
