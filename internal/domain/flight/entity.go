package flight

import "time"

// Flight はフライトエンティティを表す
type Flight struct {
	ID            string
	FlightNumber  string
	Origin        string
	Destination   string
	DepartureTime time.Time
	ArrivalTime   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int // 楽観的ロック用
}

// NewFlight は新しいフライトを作成する
func NewFlight(flightNumber, origin, destination string, departureTime, arrivalTime time.Time) *Flight {
	now := time.Now()
	return &Flight{
		FlightNumber:  flightNumber,
		Origin:        origin,
		Destination:   destination,
		DepartureTime: departureTime,
		ArrivalTime:   arrivalTime,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       0,
	}
}

// IsBookingOpen は指定時刻において予約を受け付けているかを返す
// 出発済みのフライトは受付不可
func (f *Flight) IsBookingOpen(now time.Time) bool {
	return now.Before(f.DepartureTime)
}

// HoursUntilDeparture は出発までの残り時間を返す
// キャンセル手数料のティア判定に使用する
func (f *Flight) HoursUntilDeparture(now time.Time) float64 {
	return f.DepartureTime.Sub(now).Hours()
}

// Validate はフライトの検証を行う
func (f *Flight) Validate() error {
	if f.FlightNumber == "" {
		return ErrFlightNumberRequired
	}
	if f.Origin == "" || f.Destination == "" {
		return ErrRouteRequired
	}
	if f.ArrivalTime.Before(f.DepartureTime) {
		return ErrInvalidFlightTime
	}
	return nil
}

// FareClass はフライト内の運賃クラス（座席の価格帯・容量プール）を表す
type FareClass struct {
	ID        string
	FlightID  string
	Code      string // "ECONOMY", "BUSINESS" など
	Name      string
	BaseFare  int
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewFareClass は新しい運賃クラスを作成する
func NewFareClass(flightID, code, name string, baseFare, capacity int) *FareClass {
	now := time.Now()
	return &FareClass{
		FlightID:  flightID,
		Code:      code,
		Name:      name,
		BaseFare:  baseFare,
		Capacity:  capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate は運賃クラスの検証を行う
func (fc *FareClass) Validate() error {
	if fc.FlightID == "" {
		return ErrFlightIDRequired
	}
	if fc.Code == "" {
		return ErrFareClassCodeRequired
	}
	if fc.BaseFare < 0 {
		return ErrInvalidBaseFare
	}
	if fc.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	return nil
}
