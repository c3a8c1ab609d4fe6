package booking

import "time"

// Status は予約の状態を表す
type Status string

const (
	StatusDraft          Status = "draft"
	StatusPaymentPending Status = "payment_pending"
	StatusConfirmed      Status = "confirmed"
	StatusCancelled      Status = "cancelled"
	StatusCheckedIn      Status = "checked_in"
	StatusExpired        Status = "expired"
)

// IsTerminal は遷移先のない状態かを返す
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCheckedIn || s == StatusExpired
}

// Passenger は予約に含まれる搭乗者を表す
type Passenger struct {
	ID                string
	BookingID         string
	FirstName         string
	LastName          string
	PassportNumber    string
	SeatID            *string
	CheckedIn         bool
	BoardingReference *string
	CheckedInAt       *time.Time
}

// Booking は予約エンティティを表す
// 状態遷移は Draft → PaymentPending → Confirmed → {Cancelled, CheckedIn}
// Draft/PaymentPending は期限切れで Expired にも遷移する
type Booking struct {
	ID               string
	Reference        string // 人間に提示する一意な予約コード
	Status           Status
	FlightID         string
	FareClassID      string
	Passengers       []*Passenger
	SeatIDs          []string
	HoldReference    string
	IdempotencyKey   string
	TotalAmount      int
	ContactEmail     string
	ContactPhone     string
	PaymentReference *string
	CancelReason     *string
	ExpiresAt        time.Time // Draft/PaymentPending でのみ有効
	ConfirmedAt      *time.Time
	CancelledAt      *time.Time
	CheckedInAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewBooking は新しいDraft予約を作成する
func NewBooking(reference, flightID, fareClassID, idempotencyKey, holdReference string, seatIDs []string, passengers []*Passenger, contactEmail, contactPhone string, totalAmount int, now time.Time, holdWindow time.Duration) *Booking {
	return &Booking{
		Reference:      reference,
		Status:         StatusDraft,
		FlightID:       flightID,
		FareClassID:    fareClassID,
		Passengers:     passengers,
		SeatIDs:        seatIDs,
		HoldReference:  holdReference,
		IdempotencyKey: idempotencyKey,
		TotalAmount:    totalAmount,
		ContactEmail:   contactEmail,
		ContactPhone:   contactPhone,
		ExpiresAt:      now.Add(holdWindow),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsExpired は指定時刻において仮押さえ期限が切れているかを返す
// 期限は Draft/PaymentPending でのみ意味を持つ
func (b *Booking) IsExpired(now time.Time) bool {
	if b.Status != StatusDraft && b.Status != StatusPaymentPending {
		return false
	}
	return now.After(b.ExpiresAt)
}

// InitiatePayment は予約を支払い待ちに遷移する（Draft → PaymentPending）
func (b *Booking) InitiatePayment(now time.Time) error {
	if b.Status != StatusDraft {
		return &InvalidStateError{BookingID: b.ID, Current: b.Status, Command: "initiate_payment"}
	}
	if b.IsExpired(now) {
		return ErrBookingExpired
	}
	b.Status = StatusPaymentPending
	b.UpdatedAt = now
	return nil
}

// Confirm は予約を確定する（PaymentPending → Confirmed）
func (b *Booking) Confirm(paymentReference string, now time.Time) error {
	if b.Status != StatusPaymentPending {
		return &InvalidStateError{BookingID: b.ID, Current: b.Status, Command: "confirm"}
	}
	if b.IsExpired(now) {
		return ErrBookingExpired
	}
	b.Status = StatusConfirmed
	b.PaymentReference = &paymentReference
	b.ConfirmedAt = &now
	b.UpdatedAt = now
	return nil
}

// Cancel は予約をキャンセルする
// Confirmed のほか、支払い前の Draft/PaymentPending からもキャンセルできる
func (b *Booking) Cancel(reason string, now time.Time) error {
	switch b.Status {
	case StatusDraft, StatusPaymentPending, StatusConfirmed:
		// キャンセル可能
	default:
		return &InvalidStateError{BookingID: b.ID, Current: b.Status, Command: "cancel"}
	}
	b.Status = StatusCancelled
	b.CancelReason = &reason
	b.CancelledAt = &now
	b.UpdatedAt = now
	return nil
}

// CheckIn は予約をチェックイン済みにする（Confirmed → CheckedIn）
func (b *Booking) CheckIn(now time.Time) error {
	if b.Status != StatusConfirmed {
		return &InvalidStateError{BookingID: b.ID, Current: b.Status, Command: "check_in"}
	}
	b.Status = StatusCheckedIn
	b.CheckedInAt = &now
	b.UpdatedAt = now
	return nil
}

// Expire は期限切れの予約を失効させる（リーパーから呼ばれる）
// 既に失効済み・別状態に進んだ予約には何もしない（冪等）
func (b *Booking) Expire(now time.Time) bool {
	if b.Status != StatusDraft && b.Status != StatusPaymentPending {
		return false
	}
	if now.Before(b.ExpiresAt) {
		return false
	}
	b.Status = StatusExpired
	b.UpdatedAt = now
	return true
}

// CanModify は変更コマンドを受け付けられる状態かを返す
// Draft または Confirmed のみ。期限切れDraftは不可
func (b *Booking) CanModify(now time.Time) bool {
	switch b.Status {
	case StatusDraft:
		return !b.IsExpired(now)
	case StatusConfirmed:
		return true
	default:
		return false
	}
}

// FindPassenger はIDから搭乗者を返す
func (b *Booking) FindPassenger(passengerID string) (*Passenger, bool) {
	for _, p := range b.Passengers {
		if p.ID == passengerID {
			return p, true
		}
	}
	return nil, false
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.FlightID == "" {
		return ErrFlightIDRequired
	}
	if b.FareClassID == "" {
		return ErrFareClassIDRequired
	}
	if len(b.Passengers) == 0 {
		return ErrPassengersRequired
	}
	if b.IdempotencyKey == "" {
		return ErrIdempotencyKeyRequired
	}
	return nil
}
