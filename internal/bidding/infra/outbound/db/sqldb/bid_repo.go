package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/pujalab/internal/bidding/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
	sharedDB "github.com/davicafu/pujalab/internal/shared/infra/platform/db/sqldb"
)

type BidRepo struct {
	store  *sharedDB.Store
	outbox *sharedDB.OutboxRepo
}

func NewBidRepo(store *sharedDB.Store, outbox *sharedDB.OutboxRepo) *BidRepo {
	return &BidRepo{store: store, outbox: outbox}
}

// Schema devuelve las tablas del servicio de pujas, outbox incluida.
func Schema(d sharedDB.Dialect) []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS auction_refs (
			id VARCHAR(64) PRIMARY KEY,
			seller VARCHAR(255) NOT NULL,
			auction_end BIGINT NOT NULL,
			reserve_price BIGINT NOT NULL,
			finished INTEGER NOT NULL DEFAULT 0,
			final_status VARCHAR(32) NULL,
			winner VARCHAR(255) NULL,
			sold_amount BIGINT NULL
		)`,
		d.CreateIndex("idx_auction_refs_pending", "auction_refs", "finished", "auction_end"),
		`CREATE TABLE IF NOT EXISTS bids (
			id VARCHAR(64) PRIMARY KEY,
			auction_id VARCHAR(64) NOT NULL,
			bidder VARCHAR(255) NOT NULL,
			amount BIGINT NOT NULL,
			bid_time BIGINT NOT NULL,
			status VARCHAR(32) NOT NULL
		)`,
		d.CreateIndex("idx_bids_auction_amount", "bids", "auction_id", "amount"),
	}
	return append(stmts, sharedDB.OutboxSchema(d)...)
}

const refColumns = `id, seller, auction_end, reserve_price, finished, final_status, winner, sold_amount`

const bidColumns = `id, auction_id, bidder, amount, bid_time, status`

func (r *BidRepo) SaveAuctionRefIfAbsent(ctx context.Context, ref domain.AuctionRef) (bool, error) {
	query := r.store.Dialect.InsertIgnore("auction_refs", []string{"id", "seller", "auction_end", "reserve_price", "finished"})
	res, err := r.store.DB.ExecContext(ctx, r.store.Q(query),
		ref.ID.String(), ref.Seller, sharedDB.ToNanos(ref.AuctionEnd), ref.ReservePrice, boolToInt(ref.Finished),
	)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func (r *BidRepo) GetAuctionRef(ctx context.Context, id uuid.UUID) (*domain.AuctionRef, error) {
	row := r.store.DB.QueryRowContext(ctx, r.store.Q(`SELECT `+refColumns+` FROM auction_refs WHERE id = ?`), id.String())
	ref, err := scanRef(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ref, nil
}

// PlaceBid serializa las pujas de una misma subasta con un bloqueo de fila.
func (r *BidRepo) PlaceBid(ctx context.Context, auctionID uuid.UUID, place domain.PlaceFunc) (*domain.Bid, error) {
	var placed *domain.Bid
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			r.store.Q(`SELECT `+refColumns+` FROM auction_refs WHERE id = ?`+r.store.Dialect.ForUpdate()), auctionID.String())
		ref, err := scanRef(row)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAuctionNotFound
		}
		if err != nil {
			return err
		}

		winning, err := r.highestAccepted(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		var highest *int
		if winning != nil {
			highest = &winning.Amount
		}

		bid, evts, err := place(*ref, highest)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.store.Q(`INSERT INTO bids (`+bidColumns+`) VALUES (?,?,?,?,?,?)`),
			bid.ID.String(), bid.AuctionID.String(), bid.Bidder, bid.Amount, sharedDB.ToNanos(bid.BidTime), bid.Status,
		); err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}
		if err := r.outbox.InsertOutboxTx(ctx, tx, evts...); err != nil {
			return err
		}
		placed = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func (r *BidRepo) BidsForAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	rows, err := r.store.DB.QueryContext(ctx,
		r.store.Q(`SELECT `+bidColumns+` FROM bids WHERE auction_id = ? ORDER BY bid_time DESC, id`), auctionID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BidRepo) FindExpiredUnfinalized(ctx context.Context, now time.Time, limit int) ([]domain.AuctionRef, error) {
	rows, err := r.store.DB.QueryContext(ctx, r.store.Q(
		`SELECT `+refColumns+` FROM auction_refs
		 WHERE finished = 0 AND auction_end <= ?
		 ORDER BY auction_end, id
		 LIMIT ?`), sharedDB.ToNanos(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuctionRef
	for rows.Next() {
		ref, err := scanRef(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ref)
	}
	return out, rows.Err()
}

// Finalize gana el cierre con un UPDATE condicional; si otra instancia ya lo hizo no toca nada.
func (r *BidRepo) Finalize(ctx context.Context, auctionID uuid.UUID, finalize domain.FinalizeFunc) (bool, error) {
	won := false
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			r.store.Q(`UPDATE auction_refs SET finished = 1 WHERE id = ? AND finished = 0`), auctionID.String())
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return nil
		}

		ref, err := scanRef(tx.QueryRowContext(ctx,
			r.store.Q(`SELECT `+refColumns+` FROM auction_refs WHERE id = ?`), auctionID.String()))
		if err != nil {
			return err
		}
		winning, err := r.highestAccepted(ctx, tx, auctionID)
		if err != nil {
			return err
		}

		outcome, evts, err := finalize(*ref, winning)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.store.Q(
			`UPDATE auction_refs SET final_status = ?, winner = ?, sold_amount = ? WHERE id = ?`),
			outcome.Status, sharedDB.NullableString(outcome.Winner), sharedDB.NullableInt(outcome.Amount), auctionID.String(),
		); err != nil {
			return err
		}
		if err := r.outbox.InsertOutboxTx(ctx, tx, evts...); err != nil {
			return err
		}
		won = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

// highestAccepted lee la puja aceptada más alta dentro de la transacción.
func (r *BidRepo) highestAccepted(ctx context.Context, tx *sql.Tx, auctionID uuid.UUID) (*domain.Bid, error) {
	row := tx.QueryRowContext(ctx, r.store.Q(
		`SELECT `+bidColumns+` FROM bids
		 WHERE auction_id = ? AND status IN (?, ?)
		 ORDER BY amount DESC, bid_time ASC
		 LIMIT 1`),
		auctionID.String(), sharedEvents.BidStatusAccepted, sharedEvents.BidStatusAcceptedBelowReserve,
	)
	b, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRef(s scanner) (*domain.AuctionRef, error) {
	var (
		ref                 domain.AuctionRef
		idStr               string
		auctionEnd          int64
		finished            int
		finalStatus, winner sql.NullString
		soldAmount          sql.NullInt64
	)
	if err := s.Scan(&idStr, &ref.Seller, &auctionEnd, &ref.ReservePrice, &finished, &finalStatus, &winner, &soldAmount); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid auction id %q: %w", idStr, err)
	}
	ref.ID = id
	ref.AuctionEnd = sharedDB.FromNanos(auctionEnd)
	ref.Finished = finished != 0
	ref.FinalStatus = finalStatus.String
	ref.Winner = winner.String
	ref.SoldAmount = sharedDB.IntPtr(soldAmount)
	return &ref, nil
}

func scanBid(s scanner) (*domain.Bid, error) {
	var (
		b                 domain.Bid
		idStr, auctionStr string
		bidTime           int64
	)
	if err := s.Scan(&idStr, &auctionStr, &b.Bidder, &b.Amount, &bidTime, &b.Status); err != nil {
		return nil, err
	}
	var err error
	if b.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid bid id %q: %w", idStr, err)
	}
	if b.AuctionID, err = uuid.Parse(auctionStr); err != nil {
		return nil, fmt.Errorf("invalid auction id %q: %w", auctionStr, err)
	}
	b.BidTime = sharedDB.FromNanos(bidTime)
	return &b, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domain.BidRepository = (*BidRepo)(nil)
