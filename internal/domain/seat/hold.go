package seat

import "time"

// HoldStatus は仮押さえの状態を表す
type HoldStatus string

const (
	HoldStatusHeld     HoldStatus = "held"
	HoldStatusReleased HoldStatus = "released"
	HoldStatusExpired  HoldStatus = "expired"
)

// Hold は支払い確定までの座席の仮押さえを表す
// ExpiresAt を過ぎた仮押さえはリーパーが物理的に解放する前から
// 論理的には解放済みとして扱われる
type Hold struct {
	ID            string
	SeatID        string
	HoldReference string
	Status        HoldStatus
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// NewHold は新しい仮押さえを作成する
func NewHold(seatID, holdReference string, expiresAt, now time.Time) *Hold {
	return &Hold{
		SeatID:        seatID,
		HoldReference: holdReference,
		Status:        HoldStatusHeld,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
	}
}

// IsActive は指定時刻において仮押さえが有効かを返す
// 期限切れはステータス更新を待たずに無効として扱う
func (h *Hold) IsActive(now time.Time) bool {
	return h.Status == HoldStatusHeld && now.Before(h.ExpiresAt)
}

// Release は仮押さえを解放済みにする
func (h *Hold) Release() {
	h.Status = HoldStatusReleased
}

// Expire は仮押さえを期限切れにする
func (h *Hold) Expire() {
	h.Status = HoldStatusExpired
}
