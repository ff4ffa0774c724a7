package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davicafu/pujalab/internal/shared/infra/platform/db/sqldb"
)

// NewSQLiteStore abre una base SQLite en memoria con el esquema indicado.
// Se cierra sola al terminar el test.
func NewSQLiteStore(t *testing.T, schema []string) *sqldb.Store {
	t.Helper()
	ctx := context.Background()

	db, err := sqldb.Open(ctx, sqldb.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := sqldb.NewStore(db, sqldb.SQLite)
	require.NoError(t, store.Migrate(ctx, schema))
	return store
}

// PendingOutbox devuelve los eventos aún no despachados, en orden de encolado.
func PendingOutbox(t *testing.T, store *sqldb.Store) []string {
	t.Helper()
	rows, err := store.DB.Query(`SELECT event_type FROM outbox WHERE dispatched_at IS NULL ORDER BY enqueued_at, id`)
	require.NoError(t, err)
	defer rows.Close()

	var types []string
	for rows.Next() {
		var eventType string
		require.NoError(t, rows.Scan(&eventType))
		types = append(types, eventType)
	}
	require.NoError(t, rows.Err())
	return types
}
