package idempotency

import "time"

// CommandType は冪等性キーのスコープとなるコマンド種別
type CommandType string

const (
	CommandCreateBooking   CommandType = "create_booking"
	CommandInitiatePayment CommandType = "initiate_payment"
	CommandConfirmBooking  CommandType = "confirm_booking"
	CommandModifyBooking   CommandType = "modify_booking"
	CommandCancelBooking   CommandType = "cancel_booking"
	CommandCheckIn         CommandType = "check_in"
)

// Record は冪等性キーと最初の実行結果の対応を表す
// 一度書かれたら変更されない追記専用のレコード。同じ (CommandType, Key) の
// 再送はこのレコードの結果をそのまま返し、副作用を再実行しない
type Record struct {
	Key         string // 呼び出し側が供給するキー。CommandType ごとにスコープされる
	CommandType CommandType
	BookingID   string
	Response    []byte // 最初の実行結果のJSONスナップショット
	CreatedAt   time.Time
	ExpiresAt   *time.Time
}

// NewRecord は新しい冪等性レコードを作成する
func NewRecord(commandType CommandType, key, bookingID string, response []byte, now time.Time) *Record {
	return &Record{
		Key:         key,
		CommandType: commandType,
		BookingID:   bookingID,
		Response:    response,
		CreatedAt:   now,
	}
}
