package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/davicafu/pujalab/internal/shared/domain"
	"github.com/google/uuid"
)

// Mutation es el cambio de estado que debe confirmarse junto a sus eventos.
type Mutation func(ctx context.Context, tx *sql.Tx) error

// OutboxRepo implementa domain.OutboxRepository y domain.OutboxJanitor sobre database/sql.
type OutboxRepo struct {
	store *Store

	mu   sync.Mutex
	last int64
}

func NewOutboxRepo(store *Store) *OutboxRepo {
	return &OutboxRepo{store: store}
}

// OutboxSchema devuelve las sentencias de creación de la tabla outbox.
func OutboxSchema(d Dialect) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS outbox (
			id VARCHAR(64) PRIMARY KEY,
			aggregate_type VARCHAR(64) NOT NULL,
			aggregate_id VARCHAR(64) NOT NULL,
			event_type VARCHAR(128) NOT NULL,
			payload TEXT NOT NULL,
			enqueued_at BIGINT NOT NULL,
			dispatched_at BIGINT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NULL
		)`,
		d.CreateIndex("idx_outbox_pending", "outbox", "dispatched_at", "enqueued_at"),
	}
}

// RecordAndStage aplica la mutación y encola los eventos en la misma transacción.
// Si cualquiera de los dos falla no queda nada persistido.
func (r *OutboxRepo) RecordAndStage(ctx context.Context, mutate Mutation, evts ...domain.OutboxEvent) error {
	return r.store.WithTx(ctx, func(tx *sql.Tx) error {
		if mutate != nil {
			if err := mutate(ctx, tx); err != nil {
				return err
			}
		}
		return r.InsertOutboxTx(ctx, tx, evts...)
	})
}

// InsertOutboxTx encola eventos dentro de una transacción ya abierta.
func (r *OutboxRepo) InsertOutboxTx(ctx context.Context, tx *sql.Tx, evts ...domain.OutboxEvent) error {
	query := r.store.Q(`INSERT INTO outbox (id,aggregate_type,aggregate_id,event_type,payload,enqueued_at,attempts)
		 VALUES (?,?,?,?,?,?,0)`)

	for _, evt := range evts {
		if _, err := tx.ExecContext(ctx, query,
			evt.ID.String(), evt.AggregateType, evt.AggregateID, evt.EventType,
			string(evt.Payload), r.nextEnqueue(evt.CreatedAt),
		); err != nil {
			return fmt.Errorf("failed to insert outbox event %s: %w", evt.ID, err)
		}
	}
	return nil
}

// nextEnqueue garantiza un orden de encolado estrictamente creciente dentro del proceso.
func (r *OutboxRepo) nextEnqueue(at time.Time) int64 {
	if at.IsZero() {
		at = time.Now()
	}
	n := ToNanos(at)

	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= r.last {
		n = r.last + 1
	}
	r.last = n
	return n
}

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload, enqueued_at, dispatched_at, attempts, last_error`

// FetchPendingOutbox obtiene los eventos no despachados en orden de encolado.
func (r *OutboxRepo) FetchPendingOutbox(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.store.DB.QueryContext(ctx, r.store.Q(
		`SELECT `+outboxColumns+`
		 FROM outbox
		 WHERE dispatched_at IS NULL
		 ORDER BY enqueued_at, id
		 LIMIT ?`), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOutbox(rows)
}

// MarkOutboxDispatched marca un evento como confirmado por el broker.
func (r *OutboxRepo) MarkOutboxDispatched(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.store.DB.ExecContext(ctx,
		r.store.Q(`UPDATE outbox SET dispatched_at = ? WHERE id = ? AND dispatched_at IS NULL`),
		ToNanos(at), id.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("pending outbox event not found: %s", id)
	}
	return nil
}

func (r *OutboxRepo) RecordOutboxFailure(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.store.DB.ExecContext(ctx,
		r.store.Q(`UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?`),
		reason, id.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *OutboxRepo) FetchPurgeable(ctx context.Context, dispatchedBefore, enqueuedBefore time.Time, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.store.DB.QueryContext(ctx, r.store.Q(
		`SELECT `+outboxColumns+`
		 FROM outbox
		 WHERE (dispatched_at IS NOT NULL AND dispatched_at < ?)
		    OR (dispatched_at IS NULL AND enqueued_at < ?)
		 ORDER BY enqueued_at, id
		 LIMIT ?`), ToNanos(dispatchedBefore), ToNanos(enqueuedBefore), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOutbox(rows)
}

func (r *OutboxRepo) DeleteOutbox(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	_, err := r.store.DB.ExecContext(ctx, r.store.Q(`DELETE FROM outbox WHERE id IN (`+placeholders+`)`), args...)
	return err
}

func scanOutbox(rows *sql.Rows) ([]domain.OutboxEvent, error) {
	var out []domain.OutboxEvent
	for rows.Next() {
		var (
			evt        domain.OutboxEvent
			id         string
			payload    string
			enqueued   int64
			dispatched sql.NullInt64
			lastErr    sql.NullString
		)
		if err := rows.Scan(&id, &evt.AggregateType, &evt.AggregateID, &evt.EventType, &payload,
			&enqueued, &dispatched, &evt.Attempts, &lastErr); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in outbox row: %w", err)
		}
		evt.ID = parsed
		evt.Payload = []byte(payload)
		evt.CreatedAt = FromNanos(enqueued)
		evt.DispatchedAt = TimePtr(dispatched)
		evt.LastError = lastErr.String
		out = append(out, evt)
	}
	return out, rows.Err()
}

// Verificación en tiempo de compilación.
var (
	_ domain.OutboxRepository = (*OutboxRepo)(nil)
	_ domain.OutboxJanitor    = (*OutboxRepo)(nil)
)
