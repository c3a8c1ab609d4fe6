package seat

import (
	"context"
	"time"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/transaction"
)

// Repository は座席リポジトリのインターフェース
type Repository interface {
	// Create は新しい座席を作成する
	Create(ctx context.Context, seat *Seat) error

	// CreateBulk は複数の座席を一括作成する
	CreateBulk(ctx context.Context, seats []*Seat) error

	// GetByID はIDから座席を取得する
	GetByID(ctx context.Context, id string) (*Seat, error)

	// GetByIDs はIDリストから座席を取得する
	GetByIDs(ctx context.Context, ids []string) ([]*Seat, error)

	// GetByFlightID はフライトIDから座席一覧を取得する
	GetByFlightID(ctx context.Context, flightID string) ([]*Seat, error)

	// LockAvailable は指定座席のうち available かつ他トランザクションに
	// ロックされていない行をロックし、そのIDを返す（FOR UPDATE SKIP LOCKED）
	LockAvailable(ctx context.Context, tx transaction.Tx, seatIDs []string) ([]string, error)

	// MarkReserved はロック済みの座席を reserved に更新する（トランザクション必須）
	// 更新行数が要求数と一致しない場合はエラー
	MarkReserved(ctx context.Context, tx transaction.Tx, seatIDs []string) error

	// MarkOccupied は reserved の座席を occupied に更新する（トランザクション必須）
	MarkOccupied(ctx context.Context, tx transaction.Tx, seatIDs []string) error

	// Release は座席を available に戻し、解放できた行数を返す
	// 既に available の座席は対象外（冪等）
	Release(ctx context.Context, tx transaction.Tx, seatIDs []string) (int, error)

	// FilterAvailable は指定座席のうち現在 available なもののIDを返す（読み取りのみ）
	FilterAvailable(ctx context.Context, seatIDs []string) ([]string, error)

	// CountAvailableByFareClass はフライトの運賃クラスごとの空席数を返す
	CountAvailableByFareClass(ctx context.Context, flightID string) (map[string]int, error)
}

// HoldRepository は座席仮押さえリポジトリのインターフェース
type HoldRepository interface {
	// CreateBulk は複数の仮押さえを一括作成する（トランザクション必須）
	CreateBulk(ctx context.Context, tx transaction.Tx, holds []*Hold) error

	// GetByReference は仮押さえ参照から仮押さえ一覧を取得する
	GetByReference(ctx context.Context, holdReference string) ([]*Hold, error)

	// ReleaseByReference は仮押さえ参照に紐づく held 状態の仮押さえを解放する
	ReleaseByReference(ctx context.Context, tx transaction.Tx, holdReference string, status HoldStatus) error

	// GetActiveBySeatIDs は指定座席に対する有効な（held かつ期限内の）仮押さえを返す
	// 期限切れの仮押さえは物理解放前でも返さない
	GetActiveBySeatIDs(ctx context.Context, seatIDs []string, now time.Time) ([]*Hold, error)

	// GetExpired は期限切れなのに held のままの仮押さえを取得する
	// 他プロセスのスイープと競合しないよう SKIP LOCKED で読む
	GetExpired(ctx context.Context, tx transaction.Tx, now time.Time, limit int) ([]*Hold, error)
}
