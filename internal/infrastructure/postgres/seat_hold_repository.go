package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/seat"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/transaction"
)

type seatHoldRow struct {
	ID            string    `db:"id"`
	SeatID        string    `db:"seat_id"`
	HoldReference string    `db:"hold_reference"`
	Status        string    `db:"status"`
	ExpiresAt     time.Time `db:"expires_at"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r *seatHoldRow) toEntity() *seat.Hold {
	return &seat.Hold{
		ID: r.ID, SeatID: r.SeatID, HoldReference: r.HoldReference,
		Status: seat.HoldStatus(r.Status), ExpiresAt: r.ExpiresAt, CreatedAt: r.CreatedAt,
	}
}

type SeatHoldRepository struct{ db *sqlx.DB }

func NewSeatHoldRepository(db *sqlx.DB) *SeatHoldRepository { return &SeatHoldRepository{db: db} }

func (r *SeatHoldRepository) CreateBulk(ctx context.Context, tx transaction.Tx, holds []*seat.Hold) error {
	if len(holds) == 0 {
		return nil
	}
	sqlxTx := UnwrapTx(tx)
	query := `INSERT INTO seat_holds (seat_id, hold_reference, status, expires_at, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	for _, h := range holds {
		if err := sqlxTx.QueryRowContext(ctx, query, h.SeatID, h.HoldReference, string(h.Status), h.ExpiresAt, h.CreatedAt).Scan(&h.ID); err != nil {
			return fmt.Errorf("仮押さえ作成に失敗: %w", err)
		}
	}
	return nil
}

func (r *SeatHoldRepository) GetByReference(ctx context.Context, holdReference string) ([]*seat.Hold, error) {
	var rows []seatHoldRow
	query := `SELECT id, seat_id, hold_reference, status, expires_at, created_at FROM seat_holds WHERE hold_reference = $1`
	if err := r.db.SelectContext(ctx, &rows, query, holdReference); err != nil {
		return nil, fmt.Errorf("仮押さえ取得に失敗: %w", err)
	}
	holds := make([]*seat.Hold, len(rows))
	for i, row := range rows {
		holds[i] = row.toEntity()
	}
	return holds, nil
}

func (r *SeatHoldRepository) ReleaseByReference(ctx context.Context, tx transaction.Tx, holdReference string, status seat.HoldStatus) error {
	sqlxTx := UnwrapTx(tx)
	query := `UPDATE seat_holds SET status = $1 WHERE hold_reference = $2 AND status = 'held'`
	if _, err := sqlxTx.ExecContext(ctx, query, string(status), holdReference); err != nil {
		return fmt.Errorf("仮押さえ解放に失敗: %w", err)
	}
	return nil
}

func (r *SeatHoldRepository) GetActiveBySeatIDs(ctx context.Context, seatIDs []string, now time.Time) ([]*seat.Hold, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	var rows []seatHoldRow
	query := `SELECT id, seat_id, hold_reference, status, expires_at, created_at FROM seat_holds WHERE seat_id = ANY($1) AND status = 'held' AND expires_at > $2`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(seatIDs), now); err != nil {
		return nil, fmt.Errorf("有効な仮押さえ取得に失敗: %w", err)
	}
	holds := make([]*seat.Hold, len(rows))
	for i, row := range rows {
		holds[i] = row.toEntity()
	}
	return holds, nil
}

// GetExpired は期限切れなのに held のままの仮押さえ行をロックして返す
// 並行するスイープと同じ行を取り合わないよう SKIP LOCKED で読む
func (r *SeatHoldRepository) GetExpired(ctx context.Context, tx transaction.Tx, now time.Time, limit int) ([]*seat.Hold, error) {
	sqlxTx := UnwrapTx(tx)
	var rows []seatHoldRow
	query := `SELECT id, seat_id, hold_reference, status, expires_at, created_at FROM seat_holds WHERE status = 'held' AND expires_at <= $1 ORDER BY expires_at ASC LIMIT $2 FOR UPDATE SKIP LOCKED`
	if err := sqlxTx.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("期限切れ仮押さえ取得に失敗: %w", err)
	}
	holds := make([]*seat.Hold, len(rows))
	for i, row := range rows {
		holds[i] = row.toEntity()
	}
	return holds, nil
}

var _ seat.HoldRepository = (*SeatHoldRepository)(nil)
