package flight

import "context"

// Repository はフライトリポジトリのインターフェース
// 関連はIDで解決する。生きた相互参照グラフは持たない
type Repository interface {
	// Create は新しいフライトを作成する
	Create(ctx context.Context, flight *Flight) error

	// GetByID はIDからフライトを取得する
	GetByID(ctx context.Context, id string) (*Flight, error)

	// List はフライト一覧を取得する
	List(ctx context.Context, limit, offset int) ([]*Flight, error)

	// CreateFareClass は新しい運賃クラスを作成する
	CreateFareClass(ctx context.Context, fareClass *FareClass) error

	// GetFareClassByID はIDから運賃クラスを取得する
	GetFareClassByID(ctx context.Context, id string) (*FareClass, error)

	// GetFareClassesByFlightID はフライトIDから運賃クラス一覧を取得する
	GetFareClassesByFlightID(ctx context.Context, flightID string) ([]*FareClass, error)
}
