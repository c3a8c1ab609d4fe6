package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/booking"
)

func TestCancellationFee_ReferenceCase(t *testing.T) {
	// 基本運賃500、出発24時間以上前のキャンセル
	// 手数料 = 25% = 125、事務手数料 = 25、返金 = 350
	policy := DefaultCancellationPolicy()

	fee, processing := CancellationFee(500, 48, policy)
	assert.Equal(t, 125, fee)
	assert.Equal(t, 25, processing)
	assert.Equal(t, 350, Refund(500, fee, processing))
}

func TestCancellationFee_Tiers(t *testing.T) {
	policy := DefaultCancellationPolicy()

	tests := []struct {
		name           string
		hours          float64
		wantFee        int
		wantProcessing int
	}{
		{"24時間より前は25%", 25, 125, 25},
		{"24時間以内は50%", 24, 250, 25},
		{"12時間前は50%", 12, 250, 25},
		{"2時間以内は返金なし", 1, 500, 0},
		{"出発後も返金なし", -3, 500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, processing := CancellationFee(500, tt.hours, policy)
			assert.Equal(t, tt.wantFee, fee)
			assert.Equal(t, tt.wantProcessing, processing)
		})
	}
}

func TestCancellationFee_Deterministic(t *testing.T) {
	policy := DefaultCancellationPolicy()
	fee1, p1 := CancellationFee(12345, 30, policy)
	fee2, p2 := CancellationFee(12345, 30, policy)

	assert.Equal(t, fee1, fee2)
	assert.Equal(t, p1, p2)
}

func TestRefund_ClampedAtZero(t *testing.T) {
	assert.Equal(t, 0, Refund(100, 500, 25))
	assert.Equal(t, 0, Refund(0, 0, 25))
	assert.Equal(t, 100, Refund(100, 0, 0))
}

func TestModificationFee(t *testing.T) {
	table := DefaultModificationFees()

	t.Run("日付変更は固定150", func(t *testing.T) {
		fee, err := ModificationFee(booking.ModificationDateChange, table)
		require.NoError(t, err)
		assert.Equal(t, 150, fee)
	})

	t.Run("座席変更は固定50", func(t *testing.T) {
		fee, err := ModificationFee(booking.ModificationSeatChange, table)
		require.NoError(t, err)
		assert.Equal(t, 50, fee)
	})

	t.Run("搭乗者情報変更は無料", func(t *testing.T) {
		fee, err := ModificationFee(booking.ModificationPassengerInfo, table)
		require.NoError(t, err)
		assert.Equal(t, 0, fee)
	})

	t.Run("不明な変更種類はエラー", func(t *testing.T) {
		_, err := ModificationFee(booking.ModificationType("upgrade"), table)
		assert.ErrorIs(t, err, booking.ErrInvalidModificationType)
	})

	t.Run("表にない種類はエラー", func(t *testing.T) {
		_, err := ModificationFee(booking.ModificationDateChange, ModificationFeeTable{})
		assert.ErrorIs(t, err, booking.ErrInvalidModificationType)
	})
}

func TestBaseFareTotal(t *testing.T) {
	assert.Equal(t, 1000, BaseFareTotal(500, 2, nil))
	assert.Equal(t, 1130, BaseFareTotal(500, 2, []int{100, 30}))
	assert.Equal(t, 0, BaseFareTotal(500, 0, nil))
}

func TestCancellationPolicy_EmptyTiers(t *testing.T) {
	// ティア未設定なら全額手数料（返金なし）に倒す
	fee, processing := CancellationFee(500, 100, CancellationPolicy{})
	assert.Equal(t, 500, fee)
	assert.Equal(t, 0, processing)
}
