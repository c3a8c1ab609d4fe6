package pricing

import "github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/booking"

// CancellationTier は出発までの残り時間で選ばれる手数料ティア
type CancellationTier struct {
	// MinHoursBeforeDeparture はこのティアが適用される残り時間の下限
	MinHoursBeforeDeparture float64
	// FeePercent は基本運賃に対するキャンセル手数料の割合（0-100）
	FeePercent int
	// ProcessingFee は固定の事務手数料
	ProcessingFee int
}

// CancellationPolicy はキャンセル手数料のティア表
// ティアは MinHoursBeforeDeparture の降順で保持する
type CancellationPolicy struct {
	Tiers []CancellationTier
}

// ModificationFeeTable は変更種類ごとの固定手数料表
type ModificationFeeTable map[booking.ModificationType]int

// DefaultCancellationPolicy は参照ポリシーを返す
// 出発24時間前より前: 25% + 事務手数料25
// 出発24時間前以降:   50% + 事務手数料25
// 出発2時間前以降:    100%（返金なし）
func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{
		Tiers: []CancellationTier{
			{MinHoursBeforeDeparture: 24, FeePercent: 25, ProcessingFee: 25},
			{MinHoursBeforeDeparture: 2, FeePercent: 50, ProcessingFee: 25},
			{MinHoursBeforeDeparture: 0, FeePercent: 100, ProcessingFee: 0},
		},
	}
}

// DefaultModificationFees は参照ポリシーの変更手数料表を返す
func DefaultModificationFees() ModificationFeeTable {
	return ModificationFeeTable{
		booking.ModificationDateChange:    150,
		booking.ModificationSeatChange:    50,
		booking.ModificationPassengerInfo: 0,
	}
}

// tierFor は残り時間に対応するティアを返す
func (p CancellationPolicy) tierFor(hoursUntilDeparture float64) CancellationTier {
	for _, tier := range p.Tiers {
		if hoursUntilDeparture > tier.MinHoursBeforeDeparture {
			return tier
		}
	}
	if len(p.Tiers) == 0 {
		return CancellationTier{FeePercent: 100}
	}
	return p.Tiers[len(p.Tiers)-1]
}
