package seat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeat(t *testing.T) {
	s := NewSeat("flight-1", "fare-economy", "12A", 500)

	assert.Equal(t, "flight-1", s.FlightID)
	assert.Equal(t, "fare-economy", s.FareClassID)
	assert.Equal(t, "12A", s.SeatNumber)
	assert.Equal(t, StatusAvailable, s.Status)
	assert.Equal(t, 500, s.ExtraFee)
	assert.True(t, s.IsAvailable())
}

func TestSeat_Reserve(t *testing.T) {
	t.Run("availableの座席は予約できる", func(t *testing.T) {
		s := NewSeat("flight-1", "fare-economy", "12A", 0)
		err := s.Reserve()
		require.NoError(t, err)
		assert.Equal(t, StatusReserved, s.Status)
	})

	t.Run("既にreservedの座席は予約できない", func(t *testing.T) {
		s := NewSeat("flight-1", "fare-economy", "12A", 0)
		require.NoError(t, s.Reserve())
		err := s.Reserve()
		assert.ErrorIs(t, err, ErrSeatNotAvailable)
	})

	t.Run("blockedの座席は予約できない", func(t *testing.T) {
		s := NewSeat("flight-1", "fare-economy", "12A", 0)
		s.Status = StatusBlocked
		err := s.Reserve()
		assert.ErrorIs(t, err, ErrSeatNotAvailable)
	})
}

func TestSeat_Occupy(t *testing.T) {
	t.Run("reservedの座席は確定できる", func(t *testing.T) {
		s := NewSeat("flight-1", "fare-economy", "12A", 0)
		require.NoError(t, s.Reserve())
		require.NoError(t, s.Occupy())
		assert.Equal(t, StatusOccupied, s.Status)
	})

	t.Run("availableの座席は確定できない", func(t *testing.T) {
		s := NewSeat("flight-1", "fare-economy", "12A", 0)
		err := s.Occupy()
		assert.ErrorIs(t, err, ErrSeatNotReserved)
	})
}

func TestSeat_Release(t *testing.T) {
	t.Run("reservedの座席は解放できる", func(t *testing.T) {
		s := NewSeat("flight-1", "fare-economy", "12A", 0)
		require.NoError(t, s.Reserve())
		s.Release()
		assert.Equal(t, StatusAvailable, s.Status)
	})

	t.Run("availableの座席の解放は何もしない", func(t *testing.T) {
		s := NewSeat("flight-1", "fare-economy", "12A", 0)
		s.Release()
		assert.Equal(t, StatusAvailable, s.Status)
	})

	t.Run("blockedの座席は解放で変化しない", func(t *testing.T) {
		s := NewSeat("flight-1", "fare-economy", "12A", 0)
		s.Status = StatusBlocked
		s.Release()
		assert.Equal(t, StatusBlocked, s.Status)
	})
}

func TestSeat_Validate(t *testing.T) {
	tests := []struct {
		name    string
		seat    *Seat
		wantErr error
	}{
		{"正常な座席", NewSeat("flight-1", "fare-economy", "12A", 0), nil},
		{"フライトIDなし", NewSeat("", "fare-economy", "12A", 0), ErrFlightIDRequired},
		{"運賃クラスIDなし", NewSeat("flight-1", "", "12A", 0), ErrFareClassIDRequired},
		{"座席番号なし", NewSeat("flight-1", "fare-economy", "", 0), ErrSeatNumberRequired},
		{"負の追加料金", NewSeat("flight-1", "fare-economy", "12A", -1), ErrInvalidExtraFee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seat.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestHold_IsActive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("期限内のheldは有効", func(t *testing.T) {
		h := NewHold("seat-1", "hold-ref-1", now.Add(10*time.Minute), now)
		assert.True(t, h.IsActive(now))
		assert.Equal(t, now, h.CreatedAt) // 壁時計ではなく呼び出し側の時刻を使う
	})

	t.Run("期限切れはステータスがheldでも無効", func(t *testing.T) {
		h := NewHold("seat-1", "hold-ref-1", now.Add(-1*time.Second), now)
		assert.Equal(t, HoldStatusHeld, h.Status)
		assert.False(t, h.IsActive(now))
	})

	t.Run("解放済みは無効", func(t *testing.T) {
		h := NewHold("seat-1", "hold-ref-1", now.Add(10*time.Minute), now)
		h.Release()
		assert.False(t, h.IsActive(now))
	})
}

func TestConflictError(t *testing.T) {
	err := &ConflictError{SeatIDs: []string{"seat-1", "seat-2"}}

	ce, ok := IsConflict(err)
	require.True(t, ok)
	assert.Equal(t, []string{"seat-1", "seat-2"}, ce.SeatIDs)
	assert.Contains(t, err.Error(), "seat-1")

	_, ok = IsConflict(ErrSeatNotFound)
	assert.False(t, ok)
}
