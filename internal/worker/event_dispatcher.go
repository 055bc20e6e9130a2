package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/metrics"
)

var (
	ErrQueueFull        = errors.New("イベントキューが満杯です")
	ErrDispatcherClosed = errors.New("ディスパッチャーは停止済みです")
)

const defaultDeliveryTimeout = 5 * time.Second

// EventSink はライフサイクルイベントの送出先
type EventSink interface {
	Publish(ctx context.Context, ev booking.Event) error
}

// LogSink は Kafka が無効な環境でイベントをログに出力する送出先
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, ev booking.Event) error {
	logger.Info("ライフサイクルイベント",
		zap.String("event_id", ev.ID),
		zap.String("type", string(ev.Type)),
		logger.BookingID(ev.BookingID),
		zap.String("status", string(ev.Status)),
		zap.String("payment_status", string(ev.PaymentStatus)),
	)
	return nil
}

// EventDispatcher は booking.EventPublisher の非同期実装
//
// Publish はキューに積むだけで送出を待たない。キューが満杯ならイベントを捨てて
// ErrQueueFull を返す。送出はバックグラウンドで1件ずつ行い、失敗はログに残す。
type EventDispatcher struct {
	sink    EventSink
	queue   chan booking.Event
	metrics *metrics.Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// DispatcherOption は EventDispatcher の設定を変更する
type DispatcherOption func(*EventDispatcher)

func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *EventDispatcher) { d.metrics = m }
}

func WithDeliveryTimeout(t time.Duration) DispatcherOption {
	return func(d *EventDispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// NewEventDispatcher は容量 size のキューを持つディスパッチャーを作成
func NewEventDispatcher(sink EventSink, size int, opts ...DispatcherOption) *EventDispatcher {
	if size <= 0 {
		size = 256
	}
	d := &EventDispatcher{
		sink:    sink,
		queue:   make(chan booking.Event, size),
		timeout: defaultDeliveryTimeout,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish はイベントをキューに積む。ブロックしない
func (d *EventDispatcher) Publish(ctx context.Context, ev booking.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- ev:
		return nil
	default:
		d.count(ev.Type, "dropped")
		logger.Warn("イベントキューが満杯のため破棄",
			zap.String("type", string(ev.Type)), logger.BookingID(ev.BookingID))
		return ErrQueueFull
	}
}

// Start は送出ループを開始
func (d *EventDispatcher) Start(ctx context.Context) {
	logger.Info("イベントディスパッチャー開始", zap.Int("queue_size", cap(d.queue)))
	defer close(d.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("イベントディスパッチャー停止（コンテキストキャンセル）",
				zap.Int("pending", len(d.queue)))
			return
		case <-d.stopCh:
			d.drain()
			logger.Info("イベントディスパッチャー停止（シグナル受信）")
			return
		case ev := <-d.queue:
			d.deliver(ev)
		}
	}
}

// Stop は新規受付を止め、キューに残ったイベントを送出してから戻る
func (d *EventDispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.stopCh)
	})
	<-d.doneCh
}

func (d *EventDispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver はリクエストのコンテキストとは独立したタイムアウトで送出する
func (d *EventDispatcher) deliver(ev booking.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Publish(ctx, ev); err != nil {
		d.count(ev.Type, "failed")
		logger.Error("ライフサイクルイベントの送出に失敗",
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			logger.BookingID(ev.BookingID),
			zap.Error(err),
		)
		return
	}
	d.count(ev.Type, "delivered")
}

func (d *EventDispatcher) count(t booking.EventType, status string) {
	if d.metrics != nil {
		d.metrics.LifecycleEventsTotal.WithLabelValues(string(t), status).Inc()
	}
}

var _ booking.EventPublisher = (*EventDispatcher)(nil)
