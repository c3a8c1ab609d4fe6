package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestBooking() *Booking {
	passengers := []*Passenger{
		{FirstName: "太郎", LastName: "山田", PassportNumber: "TK1234567"},
	}
	return NewBooking("BK-TEST01", "flight-1", "fare-economy", "idem-1", "hold-1",
		[]string{"seat-1"}, passengers, "taro@example.com", "090-0000-0000",
		500, testNow, 24*time.Hour)
}

func TestNewBooking(t *testing.T) {
	b := newTestBooking()

	assert.Equal(t, StatusDraft, b.Status)
	assert.Equal(t, testNow.Add(24*time.Hour), b.ExpiresAt)
	assert.Equal(t, 500, b.TotalAmount)
	assert.False(t, b.IsExpired(testNow))
}

func TestBooking_Lifecycle(t *testing.T) {
	t.Run("Draft→PaymentPending→Confirmed→CheckedIn", func(t *testing.T) {
		b := newTestBooking()

		require.NoError(t, b.InitiatePayment(testNow))
		assert.Equal(t, StatusPaymentPending, b.Status)

		require.NoError(t, b.Confirm("pay-123", testNow))
		assert.Equal(t, StatusConfirmed, b.Status)
		require.NotNil(t, b.PaymentReference)
		assert.Equal(t, "pay-123", *b.PaymentReference)

		require.NoError(t, b.CheckIn(testNow))
		assert.Equal(t, StatusCheckedIn, b.Status)
	})

	t.Run("Confirmedからキャンセルできる", func(t *testing.T) {
		b := newTestBooking()
		require.NoError(t, b.InitiatePayment(testNow))
		require.NoError(t, b.Confirm("pay-123", testNow))

		require.NoError(t, b.Cancel("都合によるキャンセル", testNow))
		assert.Equal(t, StatusCancelled, b.Status)
		require.NotNil(t, b.CancelReason)
	})

	t.Run("Draftからもキャンセルできる", func(t *testing.T) {
		b := newTestBooking()
		require.NoError(t, b.Cancel("気が変わった", testNow))
		assert.Equal(t, StatusCancelled, b.Status)
	})
}

func TestBooking_InvalidTransitions(t *testing.T) {
	t.Run("DraftのままConfirmできない", func(t *testing.T) {
		b := newTestBooking()
		err := b.Confirm("pay-123", testNow)

		ise, ok := IsInvalidState(err)
		require.True(t, ok)
		assert.Equal(t, StatusDraft, ise.Current)
		assert.Equal(t, "confirm", ise.Command)
	})

	t.Run("DraftのままCheckInできない", func(t *testing.T) {
		b := newTestBooking()
		_, ok := IsInvalidState(b.CheckIn(testNow))
		assert.True(t, ok)
	})

	t.Run("終端状態からは遷移できない", func(t *testing.T) {
		b := newTestBooking()
		require.NoError(t, b.Cancel("reason", testNow))

		_, ok := IsInvalidState(b.InitiatePayment(testNow))
		assert.True(t, ok)
		_, ok = IsInvalidState(b.Cancel("again", testNow))
		assert.True(t, ok)
		_, ok = IsInvalidState(b.CheckIn(testNow))
		assert.True(t, ok)
	})

	t.Run("期限切れDraftは支払いに進めない", func(t *testing.T) {
		b := newTestBooking()
		later := testNow.Add(25 * time.Hour)

		assert.True(t, b.IsExpired(later))
		assert.ErrorIs(t, b.InitiatePayment(later), ErrBookingExpired)
	})
}

func TestBooking_Expire(t *testing.T) {
	t.Run("期限切れDraftは失効する", func(t *testing.T) {
		b := newTestBooking()
		expired := b.Expire(testNow.Add(25 * time.Hour))

		assert.True(t, expired)
		assert.Equal(t, StatusExpired, b.Status)
	})

	t.Run("期限内のDraftは失効しない", func(t *testing.T) {
		b := newTestBooking()
		expired := b.Expire(testNow.Add(1 * time.Hour))

		assert.False(t, expired)
		assert.Equal(t, StatusDraft, b.Status)
	})

	t.Run("Confirmedは失効しない", func(t *testing.T) {
		b := newTestBooking()
		require.NoError(t, b.InitiatePayment(testNow))
		require.NoError(t, b.Confirm("pay-123", testNow))

		assert.False(t, b.Expire(testNow.Add(48*time.Hour)))
		assert.Equal(t, StatusConfirmed, b.Status)
	})

	t.Run("再実行は冪等", func(t *testing.T) {
		b := newTestBooking()
		later := testNow.Add(25 * time.Hour)

		assert.True(t, b.Expire(later))
		assert.False(t, b.Expire(later))
		assert.Equal(t, StatusExpired, b.Status)
	})
}

func TestBooking_CanModify(t *testing.T) {
	b := newTestBooking()
	assert.True(t, b.CanModify(testNow))
	assert.False(t, b.CanModify(testNow.Add(25*time.Hour)), "期限切れDraftは変更不可")

	require.NoError(t, b.InitiatePayment(testNow))
	assert.False(t, b.CanModify(testNow), "PaymentPendingは変更不可")

	require.NoError(t, b.Confirm("pay-123", testNow))
	assert.True(t, b.CanModify(testNow))

	require.NoError(t, b.Cancel("reason", testNow))
	assert.False(t, b.CanModify(testNow))
}

func TestBooking_Validate(t *testing.T) {
	t.Run("正常な予約", func(t *testing.T) {
		assert.NoError(t, newTestBooking().Validate())
	})

	t.Run("搭乗者なし", func(t *testing.T) {
		b := newTestBooking()
		b.Passengers = nil
		assert.ErrorIs(t, b.Validate(), ErrPassengersRequired)
	})

	t.Run("冪等性キーなし", func(t *testing.T) {
		b := newTestBooking()
		b.IdempotencyKey = ""
		assert.ErrorIs(t, b.Validate(), ErrIdempotencyKeyRequired)
	})
}

func TestModificationType_IsValid(t *testing.T) {
	assert.True(t, ModificationDateChange.IsValid())
	assert.True(t, ModificationSeatChange.IsValid())
	assert.True(t, ModificationPassengerInfo.IsValid())
	assert.False(t, ModificationType("upgrade_to_first").IsValid())
}
