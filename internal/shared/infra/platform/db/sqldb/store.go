package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Store agrupa la conexión y su dialecto. Lo comparten el outbox y los repositorios de dominio.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{DB: db, Dialect: dialect}
}

// Q adapta una consulta escrita con '?' al dialecto.
func (s *Store) Q(query string) string {
	return s.Dialect.Rebind(query)
}

// WithTx ejecuta fn en una transacción; cualquier error la deshace.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Migrate crea las tablas indicadas. Los índices duplicados en MySQL se ignoran.
func (s *Store) Migrate(ctx context.Context, statements []string) error {
	for _, stmt := range statements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			if s.Dialect == MySQL && strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Los instantes se guardan como nanosegundos UTC en BIGINT en los tres motores.

func ToNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func FromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func NullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: ToNanos(*t), Valid: true}
}

func TimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := FromNanos(n.Int64)
	return &t
}

func NullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func IntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func NullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
