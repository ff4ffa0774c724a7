package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
	"github.com/davicafu/pujalab/internal/shared/infra/relayer"
)

// OutboxArchive guarda en ClickHouse el histórico de eventos purgados de outbox.
type OutboxArchive struct {
	db      *sql.DB
	service string
}

// NewOutboxArchive abre la conexión y comprueba que ClickHouse responde.
func NewOutboxArchive(addr, dbName, service string) (*OutboxArchive, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	return &OutboxArchive{db: conn, service: service}, nil
}

// InitSchema crea la tabla de archivo si no existe.
func (a *OutboxArchive) InitSchema(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS outbox_archive (
			id UUID,
			service LowCardinality(String),
			aggregate_type LowCardinality(String),
			aggregate_id String,
			event_type LowCardinality(String),
			payload String,
			enqueued_at DateTime64(9),
			dispatched_at Nullable(DateTime64(9)),
			attempts UInt32,
			last_error String,
			archived_at DateTime64(3)
		) ENGINE = MergeTree
		ORDER BY (service, event_type, enqueued_at)`)
	return err
}

// Archive inserta un lote. ClickHouse funciona mejor con inserciones en lotes.
func (a *OutboxArchive) Archive(ctx context.Context, records []sharedDomain.OutboxEvent) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO outbox_archive
		(id, service, aggregate_type, aggregate_id, event_type, payload, enqueued_at, dispatched_at, attempts, last_error, archived_at)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	archivedAt := time.Now().UTC()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.ID,
			a.service,
			r.AggregateType,
			r.AggregateID,
			r.EventType,
			string(r.Payload),
			r.CreatedAt,
			r.DispatchedAt,
			uint32(r.Attempts),
			r.LastError,
			archivedAt,
		); err != nil {
			// Si un registro falla, hacemos rollback de todo el lote.
			tx.Rollback()
			return fmt.Errorf("failed to archive outbox event %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

func (a *OutboxArchive) Close() error {
	return a.db.Close()
}

var _ relayer.Archiver = (*OutboxArchive)(nil)
