package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/pkg/clock"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/pkg/logger"
)

// BookingExpirer は期限切れ予約を失効させるインターフェース
type BookingExpirer interface {
	ExpireBookings(ctx context.Context, now time.Time, limit int) (int, error)
}

// HoldReleaser は孤立した期限切れ仮押さえを解放するインターフェース
type HoldReleaser interface {
	ReleaseExpiredHolds(ctx context.Context, now time.Time, limit int) (int, error)
}

// HoldExpiryReaper は期限切れの予約と仮押さえを定期的に回収するワーカー
// 読み取りパスは期限切れを論理的に解放済み扱いするため、
// このワーカーの周期は正しさではなく物理的な在庫回収の鮮度を決める
type HoldExpiryReaper struct {
	bookingSvc BookingExpirer
	holdSvc    HoldReleaser
	clk        clock.Clock
	interval   time.Duration
	batchSize  int
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewHoldExpiryReaper は新しいリーパーを作成
func NewHoldExpiryReaper(
	bookingSvc BookingExpirer,
	holdSvc HoldReleaser,
	clk clock.Clock,
	interval time.Duration,
	batchSize int,
) *HoldExpiryReaper {
	if clk == nil {
		clk = clock.New()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &HoldExpiryReaper{
		bookingSvc: bookingSvc,
		holdSvc:    holdSvc,
		clk:        clk,
		interval:   interval,
		batchSize:  batchSize,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start はリーパーを開始
func (r *HoldExpiryReaper) Start(ctx context.Context) {
	logger.Info("期限切れ回収リーパー開始",
		zap.Duration("interval", r.interval),
		zap.Int("batch_size", r.batchSize),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れ回収リーパー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("期限切れ回収リーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

// Stop はリーパーを停止
func (r *HoldExpiryReaper) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// reap は期限切れ予約の失効と孤立仮押さえの解放を1バッチ実行する
func (r *HoldExpiryReaper) reap(ctx context.Context) {
	log := logger.Get()
	now := r.clk.Now()

	expired, err := r.bookingSvc.ExpireBookings(ctx, now, r.batchSize)
	if err != nil {
		log.Error("期限切れ予約の失効に失敗", zap.Error(err))
	} else if expired > 0 {
		log.Info("期限切れ予約を失効", zap.Int("count", expired))
	}

	if r.holdSvc == nil {
		return
	}
	released, err := r.holdSvc.ReleaseExpiredHolds(ctx, now, r.batchSize)
	if err != nil {
		log.Error("孤立仮押さえの解放に失敗", zap.Error(err))
	} else if released > 0 {
		log.Info("孤立した期限切れ仮押さえを解放", zap.Int("count", released))
	}
}
