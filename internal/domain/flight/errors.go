package flight

import "errors"

// Flight ドメインのエラー定義
var (
	ErrFlightNotFound        = errors.New("フライトが見つかりません")
	ErrFareClassNotFound     = errors.New("運賃クラスが見つかりません")
	ErrFlightNumberRequired  = errors.New("フライト番号は必須です")
	ErrFlightIDRequired      = errors.New("フライトIDは必須です")
	ErrRouteRequired         = errors.New("出発地と到着地は必須です")
	ErrInvalidFlightTime     = errors.New("到着時刻は出発時刻より後である必要があります")
	ErrFareClassCodeRequired = errors.New("運賃クラスコードは必須です")
	ErrInvalidBaseFare       = errors.New("基本運賃は0以上である必要があります")
	ErrInvalidCapacity       = errors.New("座席容量は1以上である必要があります")
	ErrFlightDeparted        = errors.New("フライトの予約受付期間外です")
)
