package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	redisinfra "github.com/sanosuguru/go-tour-slot-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/metrics"
)

const (
	reaperLockKey = "hold-reaper"
	// 1回の掃除で処理するバッチ数の上限
	maxBatchesPerSweep = 10
)

// ExpiredHoldReaper は期限切れの仮押さえを解放するインターフェース
type ExpiredHoldReaper interface {
	ReapExpiredHolds(ctx context.Context, limit int) (scanned, released int, err error)
}

// HoldReaper は期限切れの仮押さえを定期的に解放するワーカー
//
// 複数プロセスで動かす場合は Redis ロックで掃除を1プロセスに絞る。
// 他プロセスがロックを保持していればその回は見送り、Redis に接続できない場合は
// ロックなしで掃除する。解放は条件付き UPDATE なので二重に在庫が戻ることはない。
type HoldReaper struct {
	reaper      ExpiredHoldReaper
	lockManager redisinfra.LockManagerInterface
	metrics     *metrics.Metrics
	interval    time.Duration
	batchSize   int
	stopCh      chan struct{}
	doneCh      chan struct{}
	stopOnce    sync.Once
}

// ReaperOption は HoldReaper の設定を変更する
type ReaperOption func(*HoldReaper)

// WithLockManager はプロセス間ロックを設定する。nil ならロックなしで掃除する
func WithLockManager(lm redisinfra.LockManagerInterface) ReaperOption {
	return func(r *HoldReaper) { r.lockManager = lm }
}

func WithReaperMetrics(m *metrics.Metrics) ReaperOption {
	return func(r *HoldReaper) { r.metrics = m }
}

// NewHoldReaper は新しいリーパーを作成
func NewHoldReaper(reaper ExpiredHoldReaper, interval time.Duration, batchSize int, opts ...ReaperOption) *HoldReaper {
	if batchSize <= 0 {
		batchSize = 100
	}
	r := &HoldReaper{
		reaper:    reaper,
		interval:  interval,
		batchSize: batchSize,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start はリーパーを開始
func (r *HoldReaper) Start(ctx context.Context) {
	logger.Info("仮押さえリーパー開始",
		zap.Duration("interval", r.interval),
		zap.Int("batch_size", r.batchSize),
		zap.Bool("distributed_lock", r.lockManager != nil),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("仮押さえリーパー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("仮押さえリーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// Stop はリーパーを停止し、実行中の掃除が終わるまで待つ
func (r *HoldReaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

// sweep は取得件数がバッチサイズを下回るか上限に達するまでバッチ処理する
func (r *HoldReaper) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("期限切れ仮押さえの掃除開始")

	lock, proceed := r.acquireLock(ctx)
	if !proceed {
		return
	}
	if lock != nil {
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				log.Warn("リーパーロックの解放に失敗", zap.Error(err))
			}
		}()
	}

	total := 0
	for i := 0; i < maxBatchesPerSweep; i++ {
		scanned, released, err := r.reaper.ReapExpiredHolds(ctx, r.batchSize)
		total += released
		if err != nil {
			log.Error("期限切れ仮押さえの掃除失敗", zap.Error(err))
			break
		}
		if scanned < r.batchSize {
			break
		}
	}

	if total > 0 {
		log.Info("期限切れ仮押さえを解放", zap.Int("count", total))
	} else {
		log.Debug("期限切れ仮押さえなし")
	}
}

// acquireLock はリーパーロックを取得し、掃除を続けてよいかを返す
// 他プロセスが保持中なら proceed=false。ロックが使えない場合は lock=nil で続行する
func (r *HoldReaper) acquireLock(ctx context.Context) (lock redisinfra.Lock, proceed bool) {
	if r.lockManager == nil {
		return nil, true
	}
	start := time.Now()
	lock, err := r.lockManager.AcquireLock(ctx, reaperLockKey, r.lockTTL())
	status := "acquired"
	switch {
	case err == nil:
	case errors.Is(err, redisinfra.ErrLockNotAcquired):
		status = "contended"
		logger.Debug("リーパーロックは他プロセスが保持中")
	default:
		status = "error"
		logger.Warn("リーパーロックを取得できません", zap.Error(err))
	}
	if r.metrics != nil {
		r.metrics.DistributedLockDuration.WithLabelValues("reaper", status).Observe(time.Since(start).Seconds())
	}
	if status == "contended" {
		return nil, false
	}
	return lock, true
}

func (r *HoldReaper) lockTTL() time.Duration {
	if r.interval < 10*time.Second {
		return 10 * time.Second
	}
	return r.interval
}
