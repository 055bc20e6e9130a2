package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/pkg/logger"
)

// メッセージヘッダー
const (
	HeaderEventType = "event-type"
	HeaderEventID   = "event-id"
)

var (
	ErrPublisherClosed = errors.New("パブリッシャーは既に閉じられています")
	ErrNoBrokers       = errors.New("Kafkaブローカーが指定されていません")
	ErrEmptyTopic      = errors.New("トピックが指定されていません")
)

// MessageWriter は kafka.Writer のうちパブリッシャーが使う部分
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher は予約ライフサイクルイベントを Kafka へ送出する
// キーは予約IDなので、同じ予約のイベントは同じパーティションに順序通り並ぶ
type Publisher struct {
	writer MessageWriter
	topic  string
	closed bool
	mu     sync.RWMutex
}

// NewPublisher はブローカーとトピックから Publisher を作成する
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Error("Kafka書き込みエラー", zap.String("detail", fmt.Sprintf(msg, args...)))
		}),
	}
	return NewPublisherWithWriter(writer, topic), nil
}

// NewPublisherWithWriter は任意の MessageWriter から Publisher を作成する
func NewPublisherWithWriter(w MessageWriter, topic string) *Publisher {
	return &Publisher{writer: w, topic: topic}
}

// Publish はイベントを1件送出する
func (p *Publisher) Publish(ctx context.Context, ev booking.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	msg, err := toMessage(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("イベント送出に失敗: %w", err)
	}
	return nil
}

// Close は writer を閉じる。二重に呼んでもよい
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

type eventItemPayload struct {
	ProductID string `json:"product_id"`
	Date      string `json:"date"`
	Quantity  int    `json:"quantity"`
	UnitPrice int    `json:"unit_price"`
}

type eventPayload struct {
	ID               string             `json:"id"`
	Type             string             `json:"type"`
	BookingID        string             `json:"booking_id"`
	UserID           string             `json:"user_id"`
	ConfirmationCode string             `json:"confirmation_code"`
	Status           string             `json:"status"`
	PaymentStatus    string             `json:"payment_status"`
	TotalPrice       int                `json:"total_price"`
	Reason           string             `json:"reason,omitempty"`
	Items            []eventItemPayload `json:"items"`
	OccurredAt       time.Time          `json:"occurred_at"`
}

func toMessage(ev booking.Event) (kafka.Message, error) {
	items := make([]eventItemPayload, len(ev.Items))
	for i, it := range ev.Items {
		items[i] = eventItemPayload{
			ProductID: it.ProductID,
			Date:      slot.FormatDate(it.Date),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	value, err := json.Marshal(eventPayload{
		ID:               ev.ID,
		Type:             string(ev.Type),
		BookingID:        ev.BookingID,
		UserID:           ev.UserID,
		ConfirmationCode: ev.ConfirmationCode,
		Status:           string(ev.Status),
		PaymentStatus:    string(ev.PaymentStatus),
		TotalPrice:       ev.TotalPrice,
		Reason:           string(ev.Reason),
		Items:            items,
		OccurredAt:       ev.OccurredAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("イベントの変換に失敗: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.BookingID),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(ev.Type)},
			{Key: HeaderEventID, Value: []byte(ev.ID)},
		},
	}, nil
}

var _ booking.EventPublisher = (*Publisher)(nil)
