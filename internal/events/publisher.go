package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Fabian12Florin/KeepUp/internal/workout"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoutingWorkoutSaved = "workout.saved"
	publishTimeout      = 5 * time.Second
)

var ErrClosed = errors.New("events: publisher is closed")

// WorkoutSaved is the message body published after a workout is persisted.
type WorkoutSaved struct {
	Event          string    `json:"event"`
	WorkoutID      string    `json:"workout_id"`
	Kind           string    `json:"type"`
	Date           string    `json:"date"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	DistanceKm     float64   `json:"distance_km"`
	AvgSpeedKmh    float64   `json:"avg_speed_kmh"`
	Points         int       `json:"points"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	conn     *amqp.Connection
	exchange string
	now      func() time.Time

	mu sync.Mutex
	ch channel
}

// Dial connects to RabbitMQ and declares the durable topic exchange used for workout events.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	p, err := newPublisher(ch, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string) (*Publisher, error) {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{ch: ch, exchange: exchange, now: time.Now}, nil
}

func (p *Publisher) WorkoutSaved(ctx context.Context, rec workout.Record) error {
	body, err := json.Marshal(WorkoutSaved{
		Event:          RoutingWorkoutSaved,
		WorkoutID:      rec.ID,
		Kind:           rec.Kind,
		Date:           rec.Date,
		ElapsedSeconds: rec.ElapsedSeconds,
		DistanceKm:     rec.DistanceKm,
		AvgSpeedKmh:    rec.AvgSpeedKmh,
		Points:         rec.Points,
		OccurredAt:     p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode workout event: %w", err)
	}
	return p.publish(ctx, RoutingWorkoutSaved, body)
}

func (p *Publisher) publish(ctx context.Context, key string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    p.now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	if p.conn != nil && !p.conn.IsClosed() {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}
