package booking

import "time"

// ModificationType は予約変更の種類を表す
type ModificationType string

const (
	ModificationDateChange    ModificationType = "date_change"
	ModificationSeatChange    ModificationType = "seat_change"
	ModificationPassengerInfo ModificationType = "passenger_info"
)

// Modification は予約変更の追記専用ログエントリを表す
// 作成後は変更されない
type Modification struct {
	ID            string
	BookingID     string
	Type          ModificationType
	PreviousValue string
	NewValue      string
	CostImpact    int
	Actor         string
	CreatedAt     time.Time
}

// NewModification は新しい変更ログエントリを作成する
func NewModification(bookingID string, modType ModificationType, previousValue, newValue string, costImpact int, actor string, now time.Time) *Modification {
	return &Modification{
		BookingID:     bookingID,
		Type:          modType,
		PreviousValue: previousValue,
		NewValue:      newValue,
		CostImpact:    costImpact,
		Actor:         actor,
		CreatedAt:     now,
	}
}

// IsValid は既知の変更種類かを返す
func (t ModificationType) IsValid() bool {
	switch t {
	case ModificationDateChange, ModificationSeatChange, ModificationPassengerInfo:
		return true
	}
	return false
}
