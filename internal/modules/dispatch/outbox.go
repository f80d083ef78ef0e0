// README: Durable dispatch outbox (Postgres) and the retrying delivery worker.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"courio/internal/config"
	"courio/internal/modules/order"
	"courio/internal/types"
)

// Kind is the sync operation an outbox entry retries.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
)

// Entry is one pending sync intent.
type Entry struct {
	ID            int64
	OrderID       types.ID
	Kind          Kind
	Fields        map[string]interface{}
	Attempts      int
	NextAttemptAt time.Time
}

const outboxSchema = `
CREATE TABLE IF NOT EXISTS dispatch_outbox (
    id              BIGSERIAL PRIMARY KEY,
    order_id        TEXT        NOT NULL,
    kind            TEXT        NOT NULL,
    fields          JSONB,
    attempts        INT         NOT NULL DEFAULT 0,
    next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    dead            BOOLEAN     NOT NULL DEFAULT false,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS dispatch_outbox_due_idx
    ON dispatch_outbox (next_attempt_at) WHERE NOT dead;
`

// Outbox stores failed sync intents in Postgres and replays them from a
// background worker. Rows that exhaust their attempts are parked (dead) for
// out-of-band reconciliation instead of being dropped.
type Outbox struct {
	db       *pgxpool.Pool
	store    order.Store
	provider Provider
	cfg      config.OutboxConfig
	log      *zap.Logger
}

func NewOutbox(db *pgxpool.Pool, store order.Store, provider Provider, cfg config.OutboxConfig, log *zap.Logger) *Outbox {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	return &Outbox{db: db, store: store, provider: provider, cfg: cfg, log: log}
}

// EnsureSchema creates the outbox table if it does not exist.
func (ob *Outbox) EnsureSchema(ctx context.Context) error {
	if _, err := ob.db.Exec(ctx, outboxSchema); err != nil {
		return fmt.Errorf("creating dispatch_outbox schema: %w", err)
	}
	return nil
}

// Enqueue records a sync intent for later delivery.
func (ob *Outbox) Enqueue(ctx context.Context, e Entry) error {
	var fields []byte
	if e.Fields != nil {
		raw, err := json.Marshal(e.Fields)
		if err != nil {
			return fmt.Errorf("encoding outbox fields: %w", err)
		}
		fields = raw
	}
	_, err := ob.db.Exec(ctx, `
        INSERT INTO dispatch_outbox (order_id, kind, fields)
        VALUES ($1, $2, $3)`,
		string(e.OrderID), string(e.Kind), fields,
	)
	if err != nil {
		return fmt.Errorf("inserting outbox entry: %w", err)
	}
	return nil
}

// RunWorker polls for due entries until the context is cancelled.
func (ob *Outbox) RunWorker(ctx context.Context) {
	tick := time.Duration(ob.cfg.TickSeconds) * time.Second
	if tick <= 0 {
		tick = 15 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ob.processDue(ctx); err != nil {
				ob.log.Error("outbox pass failed", zap.Error(err))
			}
		}
	}
}

// processDue claims a batch of due entries with SKIP LOCKED so concurrent
// workers never double-deliver, attempts each, and reschedules failures with
// exponential backoff.
func (ob *Outbox) processDue(ctx context.Context) error {
	tx, err := ob.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning outbox tx: %w", err)
	}
	defer tx.Rollback(ctx)

	entries, err := claimDue(ctx, tx, ob.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := ob.deliver(ctx, e); err != nil {
			ob.log.Warn("outbox delivery failed",
				zap.Int64("entry_id", e.ID),
				zap.String("order_id", string(e.OrderID)),
				zap.Int("attempts", e.Attempts+1),
				zap.Error(err))
			if err := reschedule(ctx, tx, e, ob.cfg.MaxAttempts); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.Exec(ctx, `DELETE FROM dispatch_outbox WHERE id = $1`, e.ID); err != nil {
			return fmt.Errorf("removing delivered outbox entry: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func claimDue(ctx context.Context, tx pgx.Tx, batch int) ([]Entry, error) {
	rows, err := tx.Query(ctx, `
        SELECT id, order_id, kind, fields, attempts
        FROM dispatch_outbox
        WHERE NOT dead AND next_attempt_at <= now()
        ORDER BY next_attempt_at
        LIMIT $1
        FOR UPDATE SKIP LOCKED`, batch,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var orderID, kind string
		var fields []byte
		if err := rows.Scan(&e.ID, &orderID, &kind, &fields, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scanning outbox entry: %w", err)
		}
		e.OrderID = types.ID(orderID)
		e.Kind = Kind(kind)
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &e.Fields); err != nil {
				return nil, fmt.Errorf("decoding outbox fields: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func reschedule(ctx context.Context, tx pgx.Tx, e Entry, maxAttempts int) error {
	attempts := e.Attempts + 1
	if attempts >= maxAttempts {
		_, err := tx.Exec(ctx, `
            UPDATE dispatch_outbox SET attempts = $1, dead = true WHERE id = $2`,
			attempts, e.ID,
		)
		if err != nil {
			return fmt.Errorf("parking dead outbox entry: %w", err)
		}
		return nil
	}
	_, err := tx.Exec(ctx, `
        UPDATE dispatch_outbox
        SET attempts = $1, next_attempt_at = now() + ($2 * interval '1 second')
        WHERE id = $3`,
		attempts, backoffDelay(attempts).Seconds(), e.ID,
	)
	if err != nil {
		return fmt.Errorf("rescheduling outbox entry: %w", err)
	}
	return nil
}

// deliver replays one intent against the provider. Create intents re-read the
// order so the replay pushes current state, not the state at failure time.
func (ob *Outbox) deliver(ctx context.Context, e Entry) error {
	switch e.Kind {
	case KindCreate:
		o, err := ob.store.Get(ctx, e.OrderID)
		if errors.Is(err, order.ErrNotFound) {
			// Order deleted since; nothing left to sync.
			return nil
		}
		if err != nil {
			return err
		}
		if o.DispatchOrderNumber != "" {
			return nil
		}
		res, err := ob.provider.CreateOrder(ctx, e.OrderID, o)
		if err != nil {
			return err
		}
		if res.ProviderOrderID == "" {
			return nil
		}
		return ob.store.SetDispatchOrderNumber(ctx, e.OrderID, res.ProviderOrderID)
	case KindUpdate:
		return ob.provider.UpdateOrder(ctx, e.OrderID, e.Fields)
	}
	return fmt.Errorf("unknown outbox kind %q", e.Kind)
}

const (
	backoffBase = 30 * time.Second
	backoffCap  = 30 * time.Minute
)

// backoffDelay doubles per attempt from the base, capped.
func backoffDelay(attempts int) time.Duration {
	d := backoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}
