package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/config"
	"github.com/mohammaddarweesh/FlightMnagementsystem-sub003/internal/domain/booking"
)

// ライフサイクルイベントのキュー名
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
	QueueBookingExpired   = "booking.expired"
	QueueSeatsReleased    = "seats.released"
)

// Publisher はライフサイクルイベントをRabbitMQに発行する
// メッセージは永続化され、キューはdurableで宣言される
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher はRabbitMQに接続しキューを宣言する
func NewPublisher(cfg *config.RabbitMQConfig) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQ接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("RabbitMQチャネル作成に失敗: %w", err)
	}

	for _, queue := range []string{QueueBookingConfirmed, QueueBookingCancelled, QueueBookingExpired, QueueSeatsReleased} {
		// durable なキューを宣言（冪等）
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("キュー宣言に失敗 (%s): %w", queue, err)
		}
	}

	return &Publisher{conn: conn, channel: ch}, nil
}

// Close は接続を閉じる
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishBookingConfirmed は予約確定イベントを発行する
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, event booking.ConfirmedEvent) error {
	return p.publish(ctx, QueueBookingConfirmed, event)
}

// PublishBookingCancelled は予約キャンセルイベントを発行する
func (p *Publisher) PublishBookingCancelled(ctx context.Context, event booking.CancelledEvent) error {
	return p.publish(ctx, QueueBookingCancelled, event)
}

// PublishBookingExpired は予約失効イベントを発行する
func (p *Publisher) PublishBookingExpired(ctx context.Context, event booking.ExpiredEvent) error {
	return p.publish(ctx, QueueBookingExpired, event)
}

// PublishSeatsReleased は座席解放イベントを発行する
func (p *Publisher) PublishSeatsReleased(ctx context.Context, event booking.SeatsReleasedEvent) error {
	return p.publish(ctx, QueueSeatsReleased, event)
}

func (p *Publisher) publish(ctx context.Context, queue string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	// デフォルトエクスチェンジ経由でキュー名をルーティングキーとして発行
	if err := p.channel.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		return fmt.Errorf("イベント発行に失敗 (%s): %w", queue, err)
	}
	return nil
}
