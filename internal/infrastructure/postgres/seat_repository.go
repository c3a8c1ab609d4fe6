package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/seat"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/transaction"
)

type seatRow struct {
	ID          string    `db:"id"`
	FlightID    string    `db:"flight_id"`
	FareClassID string    `db:"fare_class_id"`
	SeatNumber  string    `db:"seat_number"`
	Status      string    `db:"status"`
	ExtraFee    int       `db:"extra_fee"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	Version     int       `db:"version"`
}

func (r *seatRow) toEntity() *seat.Seat {
	return &seat.Seat{
		ID: r.ID, FlightID: r.FlightID, FareClassID: r.FareClassID,
		SeatNumber: r.SeatNumber, Status: seat.Status(r.Status),
		ExtraFee: r.ExtraFee,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

const seatColumns = `id, flight_id, fare_class_id, seat_number, status, extra_fee, created_at, updated_at, version`

type SeatRepository struct{ db *sqlx.DB }

func NewSeatRepository(db *sqlx.DB) *SeatRepository { return &SeatRepository{db: db} }

func (r *SeatRepository) Create(ctx context.Context, s *seat.Seat) error {
	query := `INSERT INTO seats (flight_id, fare_class_id, seat_number, status, extra_fee, created_at, updated_at, version) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	return r.db.QueryRowContext(ctx, query, s.FlightID, s.FareClassID, s.SeatNumber, string(s.Status), s.ExtraFee, s.CreatedAt, s.UpdatedAt, s.Version).Scan(&s.ID)
}

func (r *SeatRepository) CreateBulk(ctx context.Context, seats []*seat.Seat) error {
	if len(seats) == 0 {
		return nil
	}

	// バッチサイズごとに分割してマルチバリューINSERTを実行
	const batchSize = 1000
	for i := 0; i < len(seats); i += batchSize {
		end := i + batchSize
		if end > len(seats) {
			end = len(seats)
		}
		if err := r.createBulkBatch(ctx, seats[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *SeatRepository) createBulkBatch(ctx context.Context, seats []*seat.Seat) error {
	query := `INSERT INTO seats (flight_id, fare_class_id, seat_number, status, extra_fee, created_at, updated_at, version) VALUES `
	args := make([]interface{}, 0, len(seats)*8)
	placeholders := make([]string, 0, len(seats))

	for i, s := range seats {
		base := i * 8
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args, s.FlightID, s.FareClassID, s.SeatNumber, string(s.Status), s.ExtraFee, s.CreatedAt, s.UpdatedAt, s.Version)
	}

	query += strings.Join(placeholders, ", ")
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("座席一括作成に失敗: %w", err)
	}
	return nil
}

func (r *SeatRepository) GetByID(ctx context.Context, id string) (*seat.Seat, error) {
	var row seatRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+seatColumns+` FROM seats WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, seat.ErrSeatNotFound
		}
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *SeatRepository) GetByIDs(ctx context.Context, ids []string) ([]*seat.Seat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+seatColumns+` FROM seats WHERE id = ANY($1) ORDER BY seat_number`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	seats := make([]*seat.Seat, len(rows))
	for i, row := range rows {
		seats[i] = row.toEntity()
	}
	return seats, nil
}

func (r *SeatRepository) GetByFlightID(ctx context.Context, flightID string) ([]*seat.Seat, error) {
	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+seatColumns+` FROM seats WHERE flight_id = $1 ORDER BY seat_number`, flightID); err != nil {
		return nil, fmt.Errorf("座席一覧取得に失敗: %w", err)
	}
	seats := make([]*seat.Seat, len(rows))
	for i, row := range rows {
		seats[i] = row.toEntity()
	}
	return seats, nil
}

// LockAvailable は available な座席行を排他ロックして取得する
// 他トランザクションがロック中の行は待たずにスキップする（FOR UPDATE SKIP LOCKED）
// ので、無関係な座席への同時予約をブロックしない
func (r *SeatRepository) LockAvailable(ctx context.Context, tx transaction.Tx, seatIDs []string) ([]string, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	sqlxTx := UnwrapTx(tx)
	query := `SELECT id FROM seats WHERE id = ANY($1) AND status = 'available' FOR UPDATE SKIP LOCKED`
	var lockedIDs []string
	if err := sqlxTx.SelectContext(ctx, &lockedIDs, query, pq.Array(seatIDs)); err != nil {
		return nil, fmt.Errorf("座席ロックに失敗: %w", err)
	}
	return lockedIDs, nil
}

func (r *SeatRepository) MarkReserved(ctx context.Context, tx transaction.Tx, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	sqlxTx := UnwrapTx(tx)
	query := `UPDATE seats SET status = 'reserved', updated_at = NOW(), version = version + 1 WHERE id = ANY($1) AND status = 'available'`
	result, err := sqlxTx.ExecContext(ctx, query, pq.Array(seatIDs))
	if err != nil {
		return fmt.Errorf("座席予約に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if int(rows) != len(seatIDs) {
		return &seat.ConflictError{SeatIDs: seatIDs}
	}
	return nil
}

func (r *SeatRepository) MarkOccupied(ctx context.Context, tx transaction.Tx, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	sqlxTx := UnwrapTx(tx)
	query := `UPDATE seats SET status = 'occupied', updated_at = NOW(), version = version + 1 WHERE id = ANY($1) AND status = 'reserved'`
	result, err := sqlxTx.ExecContext(ctx, query, pq.Array(seatIDs))
	if err != nil {
		return fmt.Errorf("座席確定に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if int(rows) != len(seatIDs) {
		return seat.ErrSeatNotReserved
	}
	return nil
}

// Release は reserved/occupied の座席を available に戻す
// blocked と既に available の座席には触れない（冪等）
func (r *SeatRepository) Release(ctx context.Context, tx transaction.Tx, seatIDs []string) (int, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	sqlxTx := UnwrapTx(tx)
	query := `UPDATE seats SET status = 'available', updated_at = NOW(), version = version + 1 WHERE id = ANY($1) AND status IN ('reserved', 'occupied')`
	result, err := sqlxTx.ExecContext(ctx, query, pq.Array(seatIDs))
	if err != nil {
		return 0, fmt.Errorf("座席解放に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (r *SeatRepository) FilterAvailable(ctx context.Context, seatIDs []string) ([]string, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	var availableIDs []string
	if err := r.db.SelectContext(ctx, &availableIDs, `SELECT id FROM seats WHERE id = ANY($1) AND status = 'available'`, pq.Array(seatIDs)); err != nil {
		return nil, fmt.Errorf("空席確認に失敗: %w", err)
	}
	return availableIDs, nil
}

func (r *SeatRepository) CountAvailableByFareClass(ctx context.Context, flightID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT fare_class_id, COUNT(*) FROM seats WHERE flight_id = $1 AND status = 'available' GROUP BY fare_class_id`, flightID)
	if err != nil {
		return nil, fmt.Errorf("運賃クラス別空席数取得に失敗: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var fareClassID string
		var count int
		if err := rows.Scan(&fareClassID, &count); err != nil {
			return nil, fmt.Errorf("運賃クラス別空席数取得に失敗: %w", err)
		}
		counts[fareClassID] = count
	}
	return counts, rows.Err()
}

var _ seat.Repository = (*SeatRepository)(nil)
