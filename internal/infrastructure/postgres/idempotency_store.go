package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/idempotency"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/transaction"
)

type idempotencyRow struct {
	Key         string     `db:"idempotency_key"`
	CommandType string     `db:"command_type"`
	BookingID   string     `db:"booking_id"`
	Response    []byte     `db:"response"`
	CreatedAt   time.Time  `db:"created_at"`
	ExpiresAt   *time.Time `db:"expires_at"`
}

// IdempotencyStore は冪等性レコードのPostgreSQL実装
// (command_type, idempotency_key) の一意制約が先勝ちを保証する
type IdempotencyStore struct{ db *sqlx.DB }

func NewIdempotencyStore(db *sqlx.DB) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func (s *IdempotencyStore) Get(ctx context.Context, commandType idempotency.CommandType, key string) (*idempotency.Record, error) {
	var row idempotencyRow
	query := `SELECT idempotency_key, command_type, booking_id, response, created_at, expires_at FROM idempotency_records WHERE command_type = $1 AND idempotency_key = $2`
	if err := s.db.GetContext(ctx, &row, query, string(commandType), key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, idempotency.ErrRecordNotFound
		}
		return nil, fmt.Errorf("冪等性レコード取得に失敗: %w", err)
	}
	return &idempotency.Record{
		Key:         row.Key,
		CommandType: idempotency.CommandType(row.CommandType),
		BookingID:   row.BookingID,
		Response:    row.Response,
		CreatedAt:   row.CreatedAt,
		ExpiresAt:   row.ExpiresAt,
	}, nil
}

// Insert は先勝ちでレコードを挿入する
// 一意制約違反（23505）は ErrDuplicateKey として返し、呼び出し側が
// 勝者の結果を読み直す
func (s *IdempotencyStore) Insert(ctx context.Context, tx transaction.Tx, record *idempotency.Record) error {
	sqlxTx := UnwrapTx(tx)
	query := `INSERT INTO idempotency_records (idempotency_key, command_type, booking_id, response, created_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := sqlxTx.ExecContext(ctx, query,
		record.Key, string(record.CommandType), record.BookingID,
		record.Response, record.CreatedAt, record.ExpiresAt,
	); err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return idempotency.ErrDuplicateKey
		}
		return fmt.Errorf("冪等性レコード挿入に失敗: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) DeleteExpired(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_records WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("期限切れ冪等性レコード削除に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

var _ idempotency.Store = (*IdempotencyStore)(nil)
