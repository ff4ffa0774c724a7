package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/pujalab/internal/auction/domain"
	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
	sharedDB "github.com/davicafu/pujalab/internal/shared/infra/platform/db/sqldb"
)

type AuctionRepo struct {
	store  *sharedDB.Store
	outbox *sharedDB.OutboxRepo
}

func NewAuctionRepo(store *sharedDB.Store, outbox *sharedDB.OutboxRepo) *AuctionRepo {
	return &AuctionRepo{store: store, outbox: outbox}
}

// Schema devuelve las tablas del catálogo, outbox incluida.
func Schema(d sharedDB.Dialect) []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS auctions (
			id VARCHAR(64) PRIMARY KEY,
			seller VARCHAR(255) NOT NULL,
			winner VARCHAR(255) NULL,
			sold_amount BIGINT NULL,
			current_high_bid BIGINT NULL,
			reserve_price BIGINT NOT NULL,
			status VARCHAR(32) NOT NULL,
			auction_end BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			make VARCHAR(255) NOT NULL,
			model VARCHAR(255) NOT NULL,
			color VARCHAR(255) NOT NULL,
			year INTEGER NOT NULL,
			mileage INTEGER NOT NULL,
			image_url TEXT NOT NULL
		)`,
		d.CreateIndex("idx_auctions_updated_at", "auctions", "updated_at"),
	}
	return append(stmts, sharedDB.OutboxSchema(d)...)
}

const auctionColumns = `id, seller, winner, sold_amount, current_high_bid, reserve_price, status,
	auction_end, created_at, updated_at, make, model, color, year, mileage, image_url`

// ------------------ Métodos ------------------

// Create inserta la subasta y su AuctionCreated en la misma transacción.
func (r *AuctionRepo) Create(ctx context.Context, a *domain.Auction, evt sharedDomain.OutboxEvent) error {
	return r.outbox.RecordAndStage(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, r.store.Q(`SELECT 1 FROM auctions WHERE id = ?`), a.ID.String()).Scan(&exists)
		if err == nil {
			return domain.ErrAuctionAlreadyExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		_, err = tx.ExecContext(ctx, r.store.Q(`INSERT INTO auctions (`+auctionColumns+`)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
			a.ID.String(), a.Seller, sharedDB.NullableString(a.Winner), sharedDB.NullableInt(a.SoldAmount),
			sharedDB.NullableInt(a.CurrentHighBid), a.ReservePrice, string(a.Status),
			sharedDB.ToNanos(a.AuctionEnd), sharedDB.ToNanos(a.CreatedAt), sharedDB.ToNanos(a.UpdatedAt),
			a.Item.Make, a.Item.Model, a.Item.Color, a.Item.Year, a.Item.Mileage, a.Item.ImageURL,
		)
		return err
	}, evt)
}

func (r *AuctionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	row := r.store.DB.QueryRowContext(ctx,
		r.store.Q(`SELECT `+auctionColumns+` FROM auctions WHERE id = ?`), id.String())

	a, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Update guarda los datos del vehículo y encola los eventos indicados.
func (r *AuctionRepo) Update(ctx context.Context, a *domain.Auction, evts ...sharedDomain.OutboxEvent) error {
	return r.outbox.RecordAndStage(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.store.Q(
			`UPDATE auctions SET make=?, model=?, color=?, year=?, mileage=?, image_url=?, updated_at=? WHERE id=?`),
			a.Item.Make, a.Item.Model, a.Item.Color, a.Item.Year, a.Item.Mileage, a.Item.ImageURL,
			sharedDB.ToNanos(a.UpdatedAt), a.ID.String(),
		)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return domain.ErrAuctionNotFound
		}
		return nil
	}, evts...)
}

func (r *AuctionRepo) ListUpdatedSince(ctx context.Context, since *time.Time) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions`
	var args []interface{}
	if since != nil {
		query += ` WHERE updated_at > ?`
		args = append(args, sharedDB.ToNanos(*since))
	}
	query += ` ORDER BY make, model, id`

	rows, err := r.store.DB.QueryContext(ctx, r.store.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RaiseCurrentHighBid es una actualización condicional: nunca baja la puja ni toca subastas cerradas.
func (r *AuctionRepo) RaiseCurrentHighBid(ctx context.Context, id uuid.UUID, amount int, at time.Time) (bool, error) {
	res, err := r.store.DB.ExecContext(ctx, r.store.Q(
		`UPDATE auctions SET current_high_bid = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND (current_high_bid IS NULL OR current_high_bid < ?)`),
		amount, sharedDB.ToNanos(at), id.String(), string(domain.StatusLive), amount,
	)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func (r *AuctionRepo) FinishIfLive(ctx context.Context, a *domain.Auction) (bool, error) {
	res, err := r.store.DB.ExecContext(ctx, r.store.Q(
		`UPDATE auctions SET status = ?, winner = ?, sold_amount = ?, updated_at = ?
		 WHERE id = ? AND status = ?`),
		string(a.Status), sharedDB.NullableString(a.Winner), sharedDB.NullableInt(a.SoldAmount),
		sharedDB.ToNanos(a.UpdatedAt), a.ID.String(), string(domain.StatusLive),
	)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(s scanner) (*domain.Auction, error) {
	var (
		a                                domain.Auction
		idStr, status                    string
		winner                           sql.NullString
		soldAmount, currentHighBid       sql.NullInt64
		auctionEnd, createdAt, updatedAt int64
	)
	if err := s.Scan(&idStr, &a.Seller, &winner, &soldAmount, &currentHighBid, &a.ReservePrice, &status,
		&auctionEnd, &createdAt, &updatedAt,
		&a.Item.Make, &a.Item.Model, &a.Item.Color, &a.Item.Year, &a.Item.Mileage, &a.Item.ImageURL,
	); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid auction id %q: %w", idStr, err)
	}
	a.ID = id
	a.Status = domain.Status(status)
	a.Winner = winner.String
	a.SoldAmount = sharedDB.IntPtr(soldAmount)
	a.CurrentHighBid = sharedDB.IntPtr(currentHighBid)
	a.AuctionEnd = sharedDB.FromNanos(auctionEnd)
	a.CreatedAt = sharedDB.FromNanos(createdAt)
	a.UpdatedAt = sharedDB.FromNanos(updatedAt)
	return &a, nil
}

// Verificación estática
var _ domain.AuctionRepository = (*AuctionRepo)(nil)
