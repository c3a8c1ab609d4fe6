package seat

import (
	"errors"
	"fmt"
	"strings"
)

// Seat ドメインのエラー定義
var (
	ErrSeatNotFound        = errors.New("座席が見つかりません")
	ErrSeatNotAvailable    = errors.New("座席は予約できません")
	ErrSeatNotReserved     = errors.New("座席は予約されていません")
	ErrFlightIDRequired    = errors.New("フライトIDは必須です")
	ErrFareClassIDRequired = errors.New("運賃クラスIDは必須です")
	ErrSeatNumberRequired  = errors.New("座席番号は必須です")
	ErrInvalidExtraFee     = errors.New("座席追加料金は0以上である必要があります")
)

// ConflictError は予約できなかった座席IDを保持するエラー
// 呼び出し側が別の座席を選び直せるように、どの座席が取れなかったかを返す
type ConflictError struct {
	SeatIDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("座席が確保できませんでした: %s", strings.Join(e.SeatIDs, ", "))
}

// IsConflict は err が ConflictError かを判定し、該当すればそれを返す
func IsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
