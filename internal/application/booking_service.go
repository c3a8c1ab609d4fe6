package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/booking"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/flight"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/idempotency"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/pricing"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/seat"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/transaction"
	redisinfra "github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/infrastructure/redis"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/pkg/clock"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/pkg/logger"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/pkg/metrics"
)

// BookingServiceConfig は予約サービスの動作パラメータ
type BookingServiceConfig struct {
	HoldWindow         time.Duration
	LockTTL            time.Duration
	LockRetry          redisinfra.RetryPolicy
	CancellationPolicy pricing.CancellationPolicy
	ModificationFees   pricing.ModificationFeeTable
}

func defaultBookingServiceConfig() BookingServiceConfig {
	return BookingServiceConfig{
		HoldWindow:         24 * time.Hour,
		LockTTL:            10 * time.Second,
		LockRetry:          redisinfra.RetryPolicy{MaxAttempts: 3, Delay: 100 * time.Millisecond},
		CancellationPolicy: pricing.DefaultCancellationPolicy(),
		ModificationFees:   pricing.DefaultModificationFees(),
	}
}

// BookingService は予約ライフサイクルのコマンドを処理する
// すべてのコマンドは冪等であり、同じ冪等性キーの再送は
// 最初の実行結果をそのまま返す
type BookingService struct {
	txManager   transaction.Manager
	bookingRepo booking.Repository
	flightRepo  flight.Repository
	inventory   *InventoryService
	idemStore   idempotency.Store
	lockManager *redisinfra.LockManager
	publisher   EventPublisher
	clk         clock.Clock
	validate    *validator.Validate
	cfg         BookingServiceConfig
}

func NewBookingService(tm transaction.Manager, br booking.Repository, fr flight.Repository, inv *InventoryService, store idempotency.Store, lm *redisinfra.LockManager, pub EventPublisher, clk clock.Clock, cfg *BookingServiceConfig) *BookingService {
	if clk == nil {
		clk = clock.New()
	}
	c := defaultBookingServiceConfig()
	if cfg != nil {
		c = *cfg
		if c.HoldWindow <= 0 {
			c.HoldWindow = 24 * time.Hour
		}
		if c.LockTTL <= 0 {
			c.LockTTL = 10 * time.Second
		}
		if c.LockRetry.MaxAttempts <= 0 {
			c.LockRetry = redisinfra.RetryPolicy{MaxAttempts: 3, Delay: 100 * time.Millisecond}
		}
		if len(c.CancellationPolicy.Tiers) == 0 {
			c.CancellationPolicy = pricing.DefaultCancellationPolicy()
		}
		if len(c.ModificationFees) == 0 {
			c.ModificationFees = pricing.DefaultModificationFees()
		}
	}
	return &BookingService{
		txManager:   tm,
		bookingRepo: br,
		flightRepo:  fr,
		inventory:   inv,
		idemStore:   store,
		lockManager: lm,
		publisher:   pub,
		clk:         clk,
		validate:    validator.New(),
		cfg:         c,
	}
}

// PassengerInput は搭乗者の入力
type PassengerInput struct {
	FirstName      string `validate:"required"`
	LastName       string `validate:"required"`
	PassportNumber string `validate:"required"`
}

// CreateBookingInput は予約作成コマンドの入力
type CreateBookingInput struct {
	FlightID       string           `validate:"required"`
	FareClassID    string           `validate:"required"`
	SeatIDs        []string         `validate:"required,min=1,unique"`
	Passengers     []PassengerInput `validate:"required,min=1,dive"`
	ContactEmail   string           `validate:"required,email"`
	ContactPhone   string
	IdempotencyKey string `validate:"required"`
}

// BookingResult はコマンドの実行結果
// 冪等性レコードにJSONで保存され、再送時はそのまま復元される
type BookingResult struct {
	BookingID    string     `json:"booking_id"`
	Reference    string     `json:"reference"`
	Status       string     `json:"status"`
	TotalAmount  int        `json:"total_amount"`
	RefundAmount int        `json:"refund_amount,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Replayed     bool       `json:"-"` // 冪等性レコードからの復元かどうか
}

// CreateBooking は座席を仮押さえして Draft 予約を作成する
// 要求座席が1席でも確保できなければ予約全体が失敗する
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*BookingResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if replay, err := s.replayIfSeen(ctx, idempotency.CommandCreateBooking, input.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}

	now := s.clk.Now()

	fl, err := s.flightRepo.GetByID(ctx, input.FlightID)
	if err != nil {
		return nil, fmt.Errorf("フライト取得に失敗: %w", err)
	}
	if !fl.IsBookingOpen(now) {
		return nil, flight.ErrFlightDeparted
	}
	fc, err := s.flightRepo.GetFareClassByID(ctx, input.FareClassID)
	if err != nil {
		return nil, fmt.Errorf("運賃クラス取得に失敗: %w", err)
	}
	if fc.FlightID != fl.ID {
		return nil, flight.ErrFareClassNotFound
	}

	seats, err := s.inventory.seatRepo.GetByIDs(ctx, input.SeatIDs)
	if err != nil {
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	if len(seats) != len(input.SeatIDs) {
		return nil, seat.ErrSeatNotFound
	}
	extraFees := make([]int, 0, len(seats))
	for _, se := range seats {
		if se.FlightID != fl.ID {
			return nil, seat.ErrSeatNotFound
		}
		extraFees = append(extraFees, se.ExtraFee)
	}
	totalAmount := pricing.BaseFareTotal(fc.BaseFare, len(input.Passengers), extraFees)

	// 同一座席集合への並行予約を直列化する（キーはソートして順序を安定させる）
	release, err := s.acquireSeatLock(ctx, input.SeatIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	holdRef := NewHoldReference()
	passengers := make([]*booking.Passenger, len(input.Passengers))
	for i, p := range input.Passengers {
		passengers[i] = &booking.Passenger{
			FirstName:      p.FirstName,
			LastName:       p.LastName,
			PassportNumber: p.PassportNumber,
		}
	}
	b := booking.NewBooking(
		NewBookingReference(), input.FlightID, input.FareClassID,
		input.IdempotencyKey, holdRef, input.SeatIDs, passengers,
		input.ContactEmail, input.ContactPhone, totalAmount, now, s.cfg.HoldWindow,
	)
	if err := b.Validate(); err != nil {
		return nil, err
	}

	result, err := s.runCommand(ctx, idempotency.CommandCreateBooking, input.IdempotencyKey, func(tx transaction.Tx) (*BookingResult, string, error) {
		if _, err := s.inventory.ReserveSeatsInTx(ctx, tx, input.SeatIDs, holdRef, b.ExpiresAt); err != nil {
			return nil, "", err
		}
		if err := s.bookingRepo.Create(ctx, tx, b); err != nil {
			return nil, "", err
		}
		return s.resultOf(b, 0), b.ID, nil
	})
	if err != nil {
		s.recordCommand("create_booking", "error")
		return nil, err
	}
	if !result.Replayed {
		s.inventory.InvalidateAvailability(ctx, input.FlightID)
		if m := metrics.Get(); m != nil {
			m.ActiveBookings.WithLabelValues(string(booking.StatusDraft)).Inc()
		}
		logger.Info("予約を作成しました",
			zap.String("booking_id", b.ID),
			zap.String("reference", b.Reference),
			zap.Int("seats", len(input.SeatIDs)))
		s.recordCommand("create_booking", "success")
	}
	return result, nil
}

// InitiatePayment は Draft 予約を PaymentPending に遷移させる
func (s *BookingService) InitiatePayment(ctx context.Context, bookingID, idempotencyKey string) (*BookingResult, error) {
	if bookingID == "" || idempotencyKey == "" {
		return nil, fmt.Errorf("%w: 予約IDと冪等性キーは必須です", ErrValidation)
	}
	if replay, err := s.replayIfSeen(ctx, idempotency.CommandInitiatePayment, idempotencyKey); replay != nil || err != nil {
		return replay, err
	}

	result, err := s.runCommand(ctx, idempotency.CommandInitiatePayment, idempotencyKey, func(tx transaction.Tx) (*BookingResult, string, error) {
		b, err := s.bookingRepo.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return nil, "", err
		}
		if err := b.InitiatePayment(s.clk.Now()); err != nil {
			return nil, "", err
		}
		if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
			return nil, "", err
		}
		return s.resultOf(b, 0), b.ID, nil
	})
	if err != nil {
		s.recordCommand("initiate_payment", "error")
		return nil, err
	}
	if !result.Replayed {
		s.recordCommand("initiate_payment", "success")
	}
	return result, nil
}

// ConfirmBooking は支払い完了を受けて予約を確定する
// 座席は reserved から occupied になり、仮押さえは消化される
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID, paymentReference, idempotencyKey string) (*BookingResult, error) {
	if bookingID == "" || paymentReference == "" || idempotencyKey == "" {
		return nil, fmt.Errorf("%w: 予約ID・支払い参照・冪等性キーは必須です", ErrValidation)
	}
	if replay, err := s.replayIfSeen(ctx, idempotency.CommandConfirmBooking, idempotencyKey); replay != nil || err != nil {
		return replay, err
	}

	var confirmed *booking.Booking
	result, err := s.runCommand(ctx, idempotency.CommandConfirmBooking, idempotencyKey, func(tx transaction.Tx) (*BookingResult, string, error) {
		b, err := s.bookingRepo.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return nil, "", err
		}
		if err := b.Confirm(paymentReference, s.clk.Now()); err != nil {
			return nil, "", err
		}
		if err := s.inventory.OccupySeatsInTx(ctx, tx, b.SeatIDs, b.HoldReference); err != nil {
			return nil, "", err
		}
		if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
			return nil, "", err
		}
		confirmed = b
		return s.resultOf(b, 0), b.ID, nil
	})
	if err != nil {
		s.recordCommand("confirm_booking", "error")
		return nil, err
	}
	if !result.Replayed && confirmed != nil {
		s.publishConfirmed(ctx, confirmed)
		if m := metrics.Get(); m != nil {
			m.ActiveBookings.WithLabelValues(string(booking.StatusPaymentPending)).Dec()
			m.ActiveBookings.WithLabelValues(string(booking.StatusConfirmed)).Inc()
		}
		s.recordCommand("confirm_booking", "success")
	}
	return result, nil
}

// ModifyBookingInput は予約変更コマンドの入力
type ModifyBookingInput struct {
	BookingID      string                   `validate:"required"`
	Type           booking.ModificationType `validate:"required"`
	PreviousValue  string
	NewValue       string `validate:"required"`
	Actor          string `validate:"required"`
	IdempotencyKey string `validate:"required"`
}

// ModifyBooking は確定済み予約に変更を適用する
// 変更履歴は追記専用で、手数料は予約の合計金額に加算される
func (s *BookingService) ModifyBooking(ctx context.Context, input ModifyBookingInput) (*BookingResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fee, err := pricing.ModificationFee(input.Type, s.cfg.ModificationFees)
	if err != nil {
		return nil, err
	}
	if replay, err := s.replayIfSeen(ctx, idempotency.CommandModifyBooking, input.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}

	result, err := s.runCommand(ctx, idempotency.CommandModifyBooking, input.IdempotencyKey, func(tx transaction.Tx) (*BookingResult, string, error) {
		b, err := s.bookingRepo.GetForUpdate(ctx, tx, input.BookingID)
		if err != nil {
			return nil, "", err
		}
		now := s.clk.Now()
		if !b.CanModify(now) {
			return nil, "", &booking.InvalidStateError{BookingID: b.ID, Current: b.Status, Command: "modify"}
		}
		mod := booking.NewModification(b.ID, input.Type, input.PreviousValue, input.NewValue, fee, input.Actor, now)
		if err := s.bookingRepo.AppendModification(ctx, tx, mod); err != nil {
			return nil, "", err
		}
		b.TotalAmount += fee
		b.UpdatedAt = now
		if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
			return nil, "", err
		}
		return s.resultOf(b, 0), b.ID, nil
	})
	if err != nil {
		s.recordCommand("modify_booking", "error")
		return nil, err
	}
	if !result.Replayed {
		s.recordCommand("modify_booking", "success")
	}
	return result, nil
}

// CancelBooking は予約をキャンセルし、座席を解放して返金額を算出する
// 返金額は出発までの残り時間に応じた段階的なキャンセル料で決まる
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, reason, idempotencyKey string) (*BookingResult, error) {
	if bookingID == "" || idempotencyKey == "" {
		return nil, fmt.Errorf("%w: 予約IDと冪等性キーは必須です", ErrValidation)
	}
	if replay, err := s.replayIfSeen(ctx, idempotency.CommandCancelBooking, idempotencyKey); replay != nil || err != nil {
		return replay, err
	}

	var cancelled *booking.Booking
	var refund int
	result, err := s.runCommand(ctx, idempotency.CommandCancelBooking, idempotencyKey, func(tx transaction.Tx) (*BookingResult, string, error) {
		b, err := s.bookingRepo.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return nil, "", err
		}
		fl, err := s.flightRepo.GetByID(ctx, b.FlightID)
		if err != nil {
			return nil, "", fmt.Errorf("フライト取得に失敗: %w", err)
		}
		now := s.clk.Now()
		wasConfirmed := b.Status == booking.StatusConfirmed
		if err := b.Cancel(reason, now); err != nil {
			return nil, "", err
		}

		// 返金は支払い済み（確定済み）の予約にのみ発生する
		refund = 0
		if wasConfirmed {
			fee, processing := pricing.CancellationFee(b.TotalAmount, fl.HoursUntilDeparture(now), s.cfg.CancellationPolicy)
			refund = pricing.Refund(b.TotalAmount, fee, processing)
		}

		if _, err := s.inventory.ReleaseSeatsInTx(ctx, tx, b.SeatIDs, b.HoldReference, seat.HoldStatusReleased); err != nil {
			return nil, "", err
		}
		if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
			return nil, "", err
		}
		cancelled = b
		return s.resultOf(b, refund), b.ID, nil
	})
	if err != nil {
		s.recordCommand("cancel_booking", "error")
		return nil, err
	}
	if !result.Replayed && cancelled != nil {
		s.inventory.InvalidateAvailability(ctx, cancelled.FlightID)
		s.publishCancelled(ctx, cancelled, refund, reason)
		s.recordCommand("cancel_booking", "success")
	}
	return result, nil
}

// CheckInInput はチェックインコマンドの入力
type CheckInInput struct {
	BookingID      string   `validate:"required"`
	PassengerIDs   []string `validate:"required,min=1,unique"`
	IdempotencyKey string   `validate:"required"`
}

// CheckInResult はチェックインの結果。搭乗者IDごとの搭乗参照を含む
type CheckInResult struct {
	BookingResult
	BoardingReferences map[string]string `json:"boarding_references"`
}

// CheckIn は確定済み予約の搭乗者をチェックインし、搭乗参照を発行する
func (s *BookingService) CheckIn(ctx context.Context, input CheckInInput) (*CheckInResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	stored, err := s.idemStore.Get(ctx, idempotency.CommandCheckIn, input.IdempotencyKey)
	if err == nil {
		return decodeCheckInResult(stored.Response)
	}
	if !errors.Is(err, idempotency.ErrRecordNotFound) {
		return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
	}

	result, err := s.checkInOnce(ctx, input)
	if err != nil {
		// 同じキーの敗者は挿入より前（状態検査など）で落ちることもある。
		// ストアを再確認し、勝者が記録済みならその結果を流用する
		if winner, gerr := s.idemStore.Get(ctx, idempotency.CommandCheckIn, input.IdempotencyKey); gerr == nil {
			return decodeCheckInResult(winner.Response)
		}
		s.recordCommand("check_in", "error")
		return nil, err
	}
	if !result.Replayed {
		s.recordCommand("check_in", "success")
		if m := metrics.Get(); m != nil {
			m.ActiveBookings.WithLabelValues(string(booking.StatusConfirmed)).Dec()
		}
	}
	return result, nil
}

func (s *BookingService) checkInOnce(ctx context.Context, input CheckInInput) (*CheckInResult, error) {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	b, err := s.bookingRepo.GetForUpdate(ctx, tx, input.BookingID)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	if err := b.CheckIn(now); err != nil {
		return nil, err
	}

	boardingRefs := make(map[string]string, len(input.PassengerIDs))
	for _, pid := range input.PassengerIDs {
		p, ok := b.FindPassenger(pid)
		if !ok {
			return nil, booking.ErrPassengerNotFound
		}
		ref := NewBoardingReference()
		checkedInAt := now
		p.CheckedIn = true
		p.BoardingReference = &ref
		p.CheckedInAt = &checkedInAt
		if err := s.bookingRepo.UpdatePassenger(ctx, tx, p); err != nil {
			return nil, err
		}
		boardingRefs[pid] = ref
	}
	if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
		return nil, err
	}

	result := &CheckInResult{BookingResult: *s.resultOf(b, 0), BoardingReferences: boardingRefs}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("結果のシリアライズに失敗: %w", err)
	}
	record := idempotency.NewRecord(idempotency.CommandCheckIn, input.IdempotencyKey, b.ID, payload, now)
	if err := s.idemStore.Insert(ctx, tx, record); err != nil {
		if errors.Is(err, idempotency.ErrDuplicateKey) {
			// 同じキーの並行実行に敗れた。勝者の結果を返す
			tx.Rollback()
			winner, gerr := s.idemStore.Get(ctx, idempotency.CommandCheckIn, input.IdempotencyKey)
			if gerr != nil {
				return nil, fmt.Errorf("冪等性レコード再取得に失敗: %w", gerr)
			}
			return decodeCheckInResult(winner.Response)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	return result, nil
}

// ExpireBookings は期限切れの Draft/PaymentPending 予約を失効させ、座席を解放する
// 既に終端状態の予約には何もしない（冪等）。処理した予約数を返す
func (s *BookingService) ExpireBookings(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	expired, err := s.bookingRepo.GetExpiredPending(ctx, tx, now, limit)
	if err != nil {
		return 0, err
	}
	var processed []*booking.Booking
	for _, b := range expired {
		if !b.Expire(now) {
			continue
		}
		if _, err := s.inventory.ReleaseSeatsInTx(ctx, tx, b.SeatIDs, b.HoldReference, seat.HoldStatusExpired); err != nil {
			return 0, err
		}
		if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
			return 0, err
		}
		processed = append(processed, b)
	}
	if len(processed) == 0 {
		return 0, nil
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("コミットに失敗: %w", err)
	}

	flights := make(map[string]struct{})
	for _, b := range processed {
		flights[b.FlightID] = struct{}{}
		s.publishExpired(ctx, b, now)
	}
	for flightID := range flights {
		s.inventory.InvalidateAvailability(ctx, flightID)
	}
	if m := metrics.Get(); m != nil {
		m.ExpiredBookingsTotal.Add(float64(len(processed)))
	}
	logger.Info("期限切れ予約を失効させました", zap.Int("count", len(processed)))
	return len(processed), nil
}

// GetBooking はIDから予約を取得する
func (s *BookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

// GetBookingByReference は予約コードから予約を取得する
func (s *BookingService) GetBookingByReference(ctx context.Context, reference string) (*booking.Booking, error) {
	return s.bookingRepo.GetByReference(ctx, reference)
}

// GetModifications は予約の変更履歴を取得する
func (s *BookingService) GetModifications(ctx context.Context, bookingID string) ([]*booking.Modification, error) {
	return s.bookingRepo.GetModifications(ctx, bookingID)
}

// replayIfSeen は冪等性レコードが既にあれば復元した結果を返す
func (s *BookingService) replayIfSeen(ctx context.Context, cmd idempotency.CommandType, key string) (*BookingResult, error) {
	stored, err := s.idemStore.Get(ctx, cmd, key)
	if err == nil {
		return decodeBookingResult(stored.Response)
	}
	if !errors.Is(err, idempotency.ErrRecordNotFound) {
		return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
	}
	return nil, nil
}

// runCommand はコマンド本体と冪等性レコードの挿入を単一トランザクションで実行する
// 挿入の一意制約違反が同一キーの並行実行を解決する。敗者はロールバックし、
// 勝者が書いた結果を読み直して返す。
// 敗者は挿入より前に落ちることもある。勝者が先にコミットしていれば、
// 敗者の GetForUpdate は遷移済みの行を見て状態ガードに弾かれ、座席確保は
// 競合する。そのためコマンド本体の失敗時にもストアを再確認し、同じキーの
// レコードが既にあればそれを結果として返す。ストアが唯一の解決点になる
func (s *BookingService) runCommand(ctx context.Context, cmd idempotency.CommandType, key string, fn func(tx transaction.Tx) (*BookingResult, string, error)) (*BookingResult, error) {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	result, bookingID, err := fn(tx)
	if err != nil {
		tx.Rollback()
		if stored, gerr := s.idemStore.Get(ctx, cmd, key); gerr == nil {
			return decodeBookingResult(stored.Response)
		}
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("結果のシリアライズに失敗: %w", err)
	}
	record := idempotency.NewRecord(cmd, key, bookingID, payload, s.clk.Now())
	if err := s.idemStore.Insert(ctx, tx, record); err != nil {
		if errors.Is(err, idempotency.ErrDuplicateKey) {
			tx.Rollback()
			winner, gerr := s.idemStore.Get(ctx, cmd, key)
			if gerr != nil {
				return nil, fmt.Errorf("冪等性レコード再取得に失敗: %w", gerr)
			}
			return decodeBookingResult(winner.Response)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	return result, nil
}

// acquireSeatLock は座席集合に対する分散ロックを取得し、解放関数を返す
// 取得できない場合は booking.ErrLockTimeout を返す（呼び出し側でリトライ可能）
func (s *BookingService) acquireSeatLock(ctx context.Context, seatIDs []string) (func(), error) {
	if s.lockManager == nil {
		return func() {}, nil
	}
	start := s.clk.Now()
	lock, err := s.lockManager.AcquireLockWithRetry(ctx, buildSeatLockKey(seatIDs), s.cfg.LockTTL, s.cfg.LockRetry)
	if err != nil {
		if m := metrics.Get(); m != nil {
			m.DistributedLockDuration.WithLabelValues("acquire", "timeout").Observe(time.Since(start).Seconds())
		}
		if errors.Is(err, redisinfra.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: 座席は他の予約処理中です", booking.ErrLockTimeout)
		}
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if m := metrics.Get(); m != nil {
		m.DistributedLockDuration.WithLabelValues("acquire", "acquired").Observe(time.Since(start).Seconds())
	}
	return func() {
		if err := lock.Release(ctx); err != nil {
			logger.Warn("ロック解放に失敗", zap.Error(err), zap.String("resource", lock.Resource()))
		}
	}, nil
}

func (s *BookingService) resultOf(b *booking.Booking, refund int) *BookingResult {
	r := &BookingResult{
		BookingID:    b.ID,
		Reference:    b.Reference,
		Status:       string(b.Status),
		TotalAmount:  b.TotalAmount,
		RefundAmount: refund,
	}
	if b.Status == booking.StatusDraft || b.Status == booking.StatusPaymentPending {
		expiresAt := b.ExpiresAt
		r.ExpiresAt = &expiresAt
	}
	return r
}

func (s *BookingService) recordCommand(command, status string) {
	if m := metrics.Get(); m != nil {
		m.BookingCommandsTotal.WithLabelValues(command, status).Inc()
	}
}

func (s *BookingService) publishConfirmed(ctx context.Context, b *booking.Booking) {
	if s.publisher == nil || b.ConfirmedAt == nil {
		return
	}
	ev := booking.ConfirmedEvent{
		BookingID:   b.ID,
		Reference:   b.Reference,
		FlightID:    b.FlightID,
		FareClassID: b.FareClassID,
		SeatIDs:     b.SeatIDs,
		TotalAmount: b.TotalAmount,
		ConfirmedAt: *b.ConfirmedAt,
	}
	if err := s.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
		logger.Warn("予約確定イベント発行に失敗", zap.Error(err), zap.String("booking_id", b.ID))
	}
}

func (s *BookingService) publishCancelled(ctx context.Context, b *booking.Booking, refund int, reason string) {
	if s.publisher == nil || b.CancelledAt == nil {
		return
	}
	ev := booking.CancelledEvent{
		BookingID:    b.ID,
		Reference:    b.Reference,
		FlightID:     b.FlightID,
		FareClassID:  b.FareClassID,
		SeatIDs:      b.SeatIDs,
		RefundAmount: refund,
		Reason:       reason,
		CancelledAt:  *b.CancelledAt,
	}
	if err := s.publisher.PublishBookingCancelled(ctx, ev); err != nil {
		logger.Warn("予約キャンセルイベント発行に失敗", zap.Error(err), zap.String("booking_id", b.ID))
	}
}

func (s *BookingService) publishExpired(ctx context.Context, b *booking.Booking, now time.Time) {
	if s.publisher == nil {
		return
	}
	ev := booking.ExpiredEvent{
		BookingID:   b.ID,
		Reference:   b.Reference,
		FlightID:    b.FlightID,
		FareClassID: b.FareClassID,
		SeatIDs:     b.SeatIDs,
		ExpiredAt:   now,
	}
	if err := s.publisher.PublishBookingExpired(ctx, ev); err != nil {
		logger.Warn("予約失効イベント発行に失敗", zap.Error(err), zap.String("booking_id", b.ID))
	}
}

func decodeBookingResult(payload []byte) (*BookingResult, error) {
	var r BookingResult
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("冪等性レコードの復元に失敗: %w", err)
	}
	r.Replayed = true
	return &r, nil
}

func decodeCheckInResult(payload []byte) (*CheckInResult, error) {
	var r CheckInResult
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("冪等性レコードの復元に失敗: %w", err)
	}
	r.Replayed = true
	return &r, nil
}

// buildSeatLockKey は座席IDからロックキーを生成する（ソートしてデッドロック防止）
func buildSeatLockKey(seatIDs []string) string {
	sorted := make([]string, len(seatIDs))
	copy(sorted, seatIDs)
	sort.Strings(sorted)
	return "seats:" + strings.Join(sorted, ",")
}

// NewBookingReference は人間に提示する予約コードを生成する
func NewBookingReference() string {
	return "BK-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:11]
}

// NewBoardingReference は搭乗参照を生成する
func NewBoardingReference() string {
	return "BRD-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
}
