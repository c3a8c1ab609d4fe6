package booking

import "time"

// ライフサイクルイベントのペイロード定義
// フィールド名は下流（キャッシュ無効化・分析）が依存するため安定させること

// ConfirmedEvent は予約確定時に発行される
type ConfirmedEvent struct {
	BookingID    string    `json:"booking_id"`
	Reference    string    `json:"reference"`
	FlightID     string    `json:"flight_id"`
	FareClassID  string    `json:"fare_class_id"`
	SeatIDs      []string  `json:"seat_ids"`
	TotalAmount  int       `json:"total_amount"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
}

// CancelledEvent は予約キャンセル時に発行される
type CancelledEvent struct {
	BookingID    string    `json:"booking_id"`
	Reference    string    `json:"reference"`
	FlightID     string    `json:"flight_id"`
	FareClassID  string    `json:"fare_class_id"`
	SeatIDs      []string  `json:"seat_ids"`
	RefundAmount int       `json:"refund_amount"`
	Reason       string    `json:"reason"`
	CancelledAt  time.Time `json:"cancelled_at"`
}

// ExpiredEvent は予約失効時に発行される
type ExpiredEvent struct {
	BookingID   string    `json:"booking_id"`
	Reference   string    `json:"reference"`
	FlightID    string    `json:"flight_id"`
	FareClassID string    `json:"fare_class_id"`
	SeatIDs     []string  `json:"seat_ids"`
	ExpiredAt   time.Time `json:"expired_at"`
}

// SeatsReleasedEvent は座席が解放されたときに発行される
type SeatsReleasedEvent struct {
	FlightID     string    `json:"flight_id"`
	SeatIDs      []string  `json:"seat_ids"`
	FareClassIDs []string  `json:"fare_class_ids"`
	ReleasedAt   time.Time `json:"released_at"`
}
