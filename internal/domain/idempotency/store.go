package idempotency

import (
	"context"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/transaction"
)

// Store は冪等性レコードストアのインターフェース
// 挿入は先勝ちのみ許可され、更新は存在しない
type Store interface {
	// Get は (commandType, key) からレコードを取得する
	Get(ctx context.Context, commandType CommandType, key string) (*Record, error)

	// Insert はレコードを挿入する（トランザクション必須）
	// 同じキーが既に存在する場合は ErrDuplicateKey を返す。
	// コマンド本体と同一トランザクションで呼ぶことで、この挿入が
	// 競合を解決する耐久ポイントになる
	Insert(ctx context.Context, tx transaction.Tx, record *Record) error

	// DeleteExpired は有効期限を過ぎたレコードを削除し、削除数を返す
	DeleteExpired(ctx context.Context) (int, error)
}
