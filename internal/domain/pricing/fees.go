package pricing

import "github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/booking"

// 料金計算はすべて純粋関数。共有状態もI/Oも持たないため、
// ストレージやロックなしで単体テストできる

// CancellationFee は出発までの残り時間に応じたキャンセル手数料と
// 事務手数料を返す
func CancellationFee(baseFareAmount int, hoursUntilDeparture float64, policy CancellationPolicy) (fee int, processingFee int) {
	tier := policy.tierFor(hoursUntilDeparture)
	fee = baseFareAmount * tier.FeePercent / 100
	return fee, tier.ProcessingFee
}

// Refund は支払額から手数料を差し引いた返金額を返す（0未満にはならない）
func Refund(totalPaid, cancellationFee, processingFee int) int {
	refund := totalPaid - cancellationFee - processingFee
	if refund < 0 {
		return 0
	}
	return refund
}

// ModificationFee は変更種類に対応する固定手数料を返す
func ModificationFee(modType booking.ModificationType, table ModificationFeeTable) (int, error) {
	if !modType.IsValid() {
		return 0, booking.ErrInvalidModificationType
	}
	fee, ok := table[modType]
	if !ok {
		return 0, booking.ErrInvalidModificationType
	}
	return fee, nil
}

// BaseFareTotal は搭乗者数分の基本運賃に座席追加料金を加えた合計を返す
func BaseFareTotal(baseFare, passengerCount int, seatExtraFees []int) int {
	total := baseFare * passengerCount
	for _, extra := range seatExtraFees {
		total += extra
	}
	return total
}
