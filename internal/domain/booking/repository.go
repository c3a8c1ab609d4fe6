package booking

import (
	"context"
	"time"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を搭乗者とあわせて作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, booking *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByReference は予約コードから予約を取得する
	GetByReference(ctx context.Context, reference string) (*Booking, error)

	// GetForUpdate は予約行をロックして取得する
	// 予約単位のコマンド直列化に使用する（トランザクション必須）
	GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*Booking, error)

	// Update は予約を更新する（トランザクション必須）
	Update(ctx context.Context, tx transaction.Tx, booking *Booking) error

	// UpdatePassenger は搭乗者のチェックイン状態を更新する（トランザクション必須）
	UpdatePassenger(ctx context.Context, tx transaction.Tx, passenger *Passenger) error

	// AppendModification は変更ログを追記する（トランザクション必須）
	AppendModification(ctx context.Context, tx transaction.Tx, modification *Modification) error

	// GetModifications は予約の変更ログ一覧を取得する
	GetModifications(ctx context.Context, bookingID string) ([]*Modification, error)

	// GetExpiredPending は期限切れの Draft/PaymentPending 予約を取得する
	// 複数プロセスのスイープが競合しないよう SKIP LOCKED で読む（トランザクション必須）
	GetExpiredPending(ctx context.Context, tx transaction.Tx, now time.Time, limit int) ([]*Booking, error)
}
