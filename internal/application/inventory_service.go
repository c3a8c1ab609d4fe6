package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/booking"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/seat"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/transaction"
	redisinfra "github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/infrastructure/redis"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/pkg/clock"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/pkg/logger"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/pkg/metrics"
)

// EventPublisher はライフサイクルイベントの発行先
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, event booking.ConfirmedEvent) error
	PublishBookingCancelled(ctx context.Context, event booking.CancelledEvent) error
	PublishBookingExpired(ctx context.Context, event booking.ExpiredEvent) error
	PublishSeatsReleased(ctx context.Context, event booking.SeatsReleasedEvent) error
}

// AvailabilityCache は運賃クラスごとの空席数キャッシュ
type AvailabilityCache interface {
	Get(ctx context.Context, flightID string) (map[string]int, error)
	Set(ctx context.Context, flightID string, counts map[string]int, ttl time.Duration) error
	Invalidate(ctx context.Context, flightID string) error
}

// InventoryService は座席在庫を管理する
// 座席行の状態を変更するのはこのサービスだけであり、
// 予約コマンドは同一トランザクション内で InTx 系メソッドを経由する
type InventoryService struct {
	txManager transaction.Manager
	seatRepo  seat.Repository
	holdRepo  seat.HoldRepository
	cache     AvailabilityCache
	publisher EventPublisher
	clk       clock.Clock

	cacheTTL time.Duration
}

func NewInventoryService(tm transaction.Manager, sr seat.Repository, hr seat.HoldRepository, cache AvailabilityCache, pub EventPublisher, clk clock.Clock) *InventoryService {
	if clk == nil {
		clk = clock.New()
	}
	return &InventoryService{
		txManager: tm,
		seatRepo:  sr,
		holdRepo:  hr,
		cache:     cache,
		publisher: pub,
		clk:       clk,
		cacheTTL:  30 * time.Second,
	}
}

// ReserveSeatsInTx は指定座席を全件予約し、仮押さえを作成する
// 1席でも確保できなければ seat.ConflictError を返し、何も予約しない
// （失敗時に呼び出し側がロールバックすることで全件巻き戻る）
func (s *InventoryService) ReserveSeatsInTx(ctx context.Context, tx transaction.Tx, seatIDs []string, holdReference string, expiresAt time.Time) ([]*seat.Hold, error) {
	locked, err := s.seatRepo.LockAvailable(ctx, tx, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("座席ロックに失敗: %w", err)
	}
	if len(locked) != len(seatIDs) {
		lockedSet := make(map[string]struct{}, len(locked))
		for _, id := range locked {
			lockedSet[id] = struct{}{}
		}
		var conflicted []string
		for _, id := range seatIDs {
			if _, ok := lockedSet[id]; !ok {
				conflicted = append(conflicted, id)
			}
		}
		if m := metrics.Get(); m != nil {
			m.SeatReservationsTotal.WithLabelValues("conflict").Inc()
		}
		return nil, &seat.ConflictError{SeatIDs: conflicted}
	}

	if err := s.seatRepo.MarkReserved(ctx, tx, seatIDs); err != nil {
		return nil, err
	}

	now := s.clk.Now()
	holds := make([]*seat.Hold, len(seatIDs))
	for i, id := range seatIDs {
		holds[i] = seat.NewHold(id, holdReference, expiresAt, now)
	}
	if err := s.holdRepo.CreateBulk(ctx, tx, holds); err != nil {
		return nil, err
	}

	if m := metrics.Get(); m != nil {
		m.SeatReservationsTotal.WithLabelValues("reserved").Inc()
	}
	return holds, nil
}

// ReserveSeats は独立したトランザクションで座席を予約する
func (s *InventoryService) ReserveSeats(ctx context.Context, flightID string, seatIDs []string, holdReference string, expiresAt time.Time) ([]*seat.Hold, error) {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	holds, err := s.ReserveSeatsInTx(ctx, tx, seatIDs, holdReference, expiresAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	s.InvalidateAvailability(ctx, flightID)
	return holds, nil
}

// OccupySeatsInTx は予約確定時に reserved → occupied へ更新し、仮押さえを消化する
func (s *InventoryService) OccupySeatsInTx(ctx context.Context, tx transaction.Tx, seatIDs []string, holdReference string) error {
	if err := s.seatRepo.MarkOccupied(ctx, tx, seatIDs); err != nil {
		return err
	}
	if err := s.holdRepo.ReleaseByReference(ctx, tx, holdReference, seat.HoldStatusReleased); err != nil {
		return err
	}
	return nil
}

// ReleaseSeatsInTx は座席を解放し、仮押さえを指定の終了状態にする
// 既に解放済みの座席はスキップされ、実際に解放できた座席数を返す（冪等）
func (s *InventoryService) ReleaseSeatsInTx(ctx context.Context, tx transaction.Tx, seatIDs []string, holdReference string, holdStatus seat.HoldStatus) (int, error) {
	released, err := s.seatRepo.Release(ctx, tx, seatIDs)
	if err != nil {
		return 0, err
	}
	if holdReference != "" {
		if err := s.holdRepo.ReleaseByReference(ctx, tx, holdReference, holdStatus); err != nil {
			return 0, err
		}
	}
	return released, nil
}

// ReleaseSeats は独立したトランザクションで座席を解放し、解放イベントを発行する
func (s *InventoryService) ReleaseSeats(ctx context.Context, flightID string, seatIDs []string, holdReference string) (int, error) {
	seats, err := s.seatRepo.GetByIDs(ctx, seatIDs)
	if err != nil {
		return 0, fmt.Errorf("座席取得に失敗: %w", err)
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	released, err := s.ReleaseSeatsInTx(ctx, tx, seatIDs, holdReference, seat.HoldStatusReleased)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.InvalidateAvailability(ctx, flightID)
	s.publishSeatsReleased(ctx, flightID, seatIDs, fareClassIDsOf(seats))
	return released, nil
}

// CheckAvailability は指定座席のうち予約可能なもののIDを返す
// 物理的には reserved でも仮押さえの期限が切れている座席は、
// リーパーによる解放を待たず論理的に解放済みとして扱う
func (s *InventoryService) CheckAvailability(ctx context.Context, seatIDs []string) ([]string, error) {
	available, err := s.seatRepo.FilterAvailable(ctx, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("空席確認に失敗: %w", err)
	}
	availableSet := make(map[string]struct{}, len(available))
	for _, id := range available {
		availableSet[id] = struct{}{}
	}

	var rest []string
	for _, id := range seatIDs {
		if _, ok := availableSet[id]; !ok {
			rest = append(rest, id)
		}
	}
	if len(rest) == 0 {
		return available, nil
	}

	seats, err := s.seatRepo.GetByIDs(ctx, rest)
	if err != nil {
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	var reservedIDs []string
	for _, se := range seats {
		if se.Status == seat.StatusReserved {
			reservedIDs = append(reservedIDs, se.ID)
		}
	}
	if len(reservedIDs) == 0 {
		return available, nil
	}

	now := s.clk.Now()
	activeHolds, err := s.holdRepo.GetActiveBySeatIDs(ctx, reservedIDs, now)
	if err != nil {
		return nil, fmt.Errorf("仮押さえ確認に失敗: %w", err)
	}
	heldSet := make(map[string]struct{}, len(activeHolds))
	for _, h := range activeHolds {
		heldSet[h.SeatID] = struct{}{}
	}
	for _, id := range reservedIDs {
		if _, ok := heldSet[id]; !ok {
			available = append(available, id)
		}
	}
	return available, nil
}

// AvailabilityByFareClass はフライトの運賃クラスごとの空席数を返す
// キャッシュヒット時はDBを参照しない。ミス時はDBから取得してキャッシュを埋める
func (s *InventoryService) AvailabilityByFareClass(ctx context.Context, flightID string) (map[string]int, error) {
	if s.cache != nil {
		counts, err := s.cache.Get(ctx, flightID)
		if err == nil {
			return counts, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("空席数キャッシュ取得に失敗", zap.Error(err))
		}
	}

	counts, err := s.seatRepo.CountAvailableByFareClass(ctx, flightID)
	if err != nil {
		return nil, fmt.Errorf("空席数集計に失敗: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, flightID, counts, s.cacheTTL); err != nil {
			logger.Warn("空席数キャッシュ保存に失敗", zap.Error(err))
		}
	}
	return counts, nil
}

// InvalidateAvailability は空席数キャッシュを無効化する
// キャッシュ操作の失敗で座席操作は失敗させない
func (s *InventoryService) InvalidateAvailability(ctx context.Context, flightID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, flightID); err != nil {
		logger.Warn("空席数キャッシュ無効化に失敗", zap.Error(err), zap.String("flight_id", flightID))
	}
}

// ReleaseExpiredHolds は期限切れの仮押さえを物理的に解放する
// 予約に紐づかない孤立した仮押さえもここで回収される。座席が available に
// 戻るため、フライトごとにキャッシュ無効化と解放イベント発行も行う
func (s *InventoryService) ReleaseExpiredHolds(ctx context.Context, now time.Time, limit int) (int, error) {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	expired, err := s.holdRepo.GetExpired(ctx, tx, now, limit)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	allSeatIDs := make([]string, 0, len(expired))
	for _, h := range expired {
		allSeatIDs = append(allSeatIDs, h.SeatID)
	}
	seats, err := s.seatRepo.GetByIDs(ctx, allSeatIDs)
	if err != nil {
		return 0, fmt.Errorf("座席取得に失敗: %w", err)
	}
	seatMap := make(map[string]*seat.Seat, len(seats))
	for _, se := range seats {
		seatMap[se.ID] = se
	}

	// hold_reference ごとにまとめて座席解放と仮押さえの失効を行う
	byRef := make(map[string][]string)
	for _, h := range expired {
		byRef[h.HoldReference] = append(byRef[h.HoldReference], h.SeatID)
	}
	total := 0
	for ref, seatIDs := range byRef {
		released, err := s.ReleaseSeatsInTx(ctx, tx, seatIDs, ref, seat.HoldStatusExpired)
		if err != nil {
			return 0, err
		}
		total += released
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("コミットに失敗: %w", err)
	}

	// コミット後にフライト単位でキャッシュ無効化と解放イベントを流す
	byFlight := make(map[string][]*seat.Seat)
	for _, h := range expired {
		if se, ok := seatMap[h.SeatID]; ok {
			byFlight[se.FlightID] = append(byFlight[se.FlightID], se)
		}
	}
	for flightID, flightSeats := range byFlight {
		ids := make([]string, len(flightSeats))
		for i, se := range flightSeats {
			ids[i] = se.ID
		}
		s.InvalidateAvailability(ctx, flightID)
		s.publishSeatsReleased(ctx, flightID, ids, fareClassIDsOf(flightSeats))
	}
	return total, nil
}

func (s *InventoryService) publishSeatsReleased(ctx context.Context, flightID string, seatIDs, fareClassIDs []string) {
	if s.publisher == nil {
		return
	}
	ev := booking.SeatsReleasedEvent{
		FlightID:     flightID,
		SeatIDs:      seatIDs,
		FareClassIDs: fareClassIDs,
		ReleasedAt:   s.clk.Now(),
	}
	if err := s.publisher.PublishSeatsReleased(ctx, ev); err != nil {
		logger.Warn("座席解放イベント発行に失敗", zap.Error(err), zap.String("flight_id", flightID))
	}
}

// fareClassIDsOf は座席集合が属する運賃クラスIDを重複なしで返す
func fareClassIDsOf(seats []*seat.Seat) []string {
	seen := make(map[string]struct{}, len(seats))
	ids := make([]string, 0, len(seats))
	for _, se := range seats {
		if _, ok := seen[se.FareClassID]; ok {
			continue
		}
		seen[se.FareClassID] = struct{}{}
		ids = append(ids, se.FareClassID)
	}
	return ids
}

// NewHoldReference は仮押さえ参照を生成する
func NewHoldReference() string {
	return "HLD-" + uuid.New().String()
}
