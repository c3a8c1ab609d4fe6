package seat

import "time"

// Status は座席の状態を表す
type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusOccupied  Status = "occupied"
	StatusBlocked   Status = "blocked"
)

// Seat は座席エンティティを表す
type Seat struct {
	ID          string
	FlightID    string
	FareClassID string
	SeatNumber  string
	Status      Status
	ExtraFee    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int // 楽観的ロック用
}

// NewSeat は新しい座席を作成する
func NewSeat(flightID, fareClassID, seatNumber string, extraFee int) *Seat {
	now := time.Now()
	return &Seat{
		FlightID:    flightID,
		FareClassID: fareClassID,
		SeatNumber:  seatNumber,
		Status:      StatusAvailable,
		ExtraFee:    extraFee,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     0,
	}
}

// IsAvailable は座席が予約可能かを返す
func (s *Seat) IsAvailable() bool {
	return s.Status == StatusAvailable
}

// Reserve は座席を仮押さえ状態にする
// 有効な遷移は Available → Reserved のみ
func (s *Seat) Reserve() error {
	if s.Status != StatusAvailable {
		return ErrSeatNotAvailable
	}
	s.Status = StatusReserved
	s.UpdatedAt = time.Now()
	return nil
}

// Occupy は座席を確定状態にする
// 有効な遷移は Reserved → Occupied のみ
func (s *Seat) Occupy() error {
	if s.Status != StatusReserved {
		return ErrSeatNotReserved
	}
	s.Status = StatusOccupied
	s.UpdatedAt = time.Now()
	return nil
}

// Release は座席を解放する
// Reserved/Occupied から Available に戻す。既に Available なら何もしない
func (s *Seat) Release() {
	if s.Status == StatusBlocked {
		return
	}
	s.Status = StatusAvailable
	s.UpdatedAt = time.Now()
}

// Validate は座席の検証を行う
func (s *Seat) Validate() error {
	if s.FlightID == "" {
		return ErrFlightIDRequired
	}
	if s.FareClassID == "" {
		return ErrFareClassIDRequired
	}
	if s.SeatNumber == "" {
		return ErrSeatNumberRequired
	}
	if s.ExtraFee < 0 {
		return ErrInvalidExtraFee
	}
	return nil
}
