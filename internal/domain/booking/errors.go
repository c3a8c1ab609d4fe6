package booking

import (
	"errors"
	"fmt"
)

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound         = errors.New("予約が見つかりません")
	ErrBookingExpired          = errors.New("予約の有効期限が切れています")
	ErrFlightIDRequired        = errors.New("フライトIDは必須です")
	ErrFareClassIDRequired     = errors.New("運賃クラスIDは必須です")
	ErrPassengersRequired      = errors.New("搭乗者は1名以上必要です")
	ErrIdempotencyKeyRequired  = errors.New("冪等性キーは必須です")
	ErrPassengerNotFound       = errors.New("搭乗者が見つかりません")
	ErrInvalidModificationType = errors.New("不明な変更種類です")
	ErrLockTimeout             = errors.New("ロックを取得できませんでした（リトライ可能）")
)

// InvalidStateError は許可されない状態でコマンドが実行されたことを表す
// 呼び出し側がメッセージを組み立てられるよう現在状態とコマンド名を保持する
type InvalidStateError struct {
	BookingID string
	Current   Status
	Command   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("予約 %s は状態 %s のため %s を実行できません", e.BookingID, e.Current, e.Command)
}

// IsInvalidState は err が InvalidStateError かを判定し、該当すればそれを返す
func IsInvalidState(err error) (*InvalidStateError, bool) {
	var ise *InvalidStateError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
