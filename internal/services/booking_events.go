package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/booking-engine/internal/models"
)

// BookingEventType is the action a booking event reports
type BookingEventType string

const (
	BookingEventCreated   BookingEventType = "created"
	BookingEventConfirmed BookingEventType = "confirmed"
	BookingEventCancelled BookingEventType = "cancelled"
)

// BookingEvent is the payload handed to the notification sender
type BookingEvent struct {
	Type           BookingEventType     `json:"type"`
	BookingID      int64                `json:"booking_id"`
	Reference      string               `json:"reference"`
	UserID         uuid.UUID            `json:"user_id"`
	TravelOptionID int64                `json:"travel_option_id"`
	FromCity       string               `json:"from_city"`
	ToCity         string               `json:"to_city"`
	TravelDate     string               `json:"travel_date"`
	OperatorName   string               `json:"operator_name"`
	Status         models.BookingStatus `json:"status"`
	PaymentStatus  models.PaymentStatus `json:"payment_status"`
	SeatNumbers    []string             `json:"seat_numbers"`
	Fare           models.FareBreakdown `json:"fare"`
	Passengers     []models.Passenger   `json:"passengers,omitempty"`
	Reason         string               `json:"reason,omitempty"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

// NewBookingEvent builds an event from a booking snapshot
func NewBookingEvent(eventType BookingEventType, b *models.Booking, fare models.FareBreakdown, passengers []models.Passenger, reason string) BookingEvent {
	return BookingEvent{
		Type:           eventType,
		BookingID:      b.ID,
		Reference:      b.BookingReference,
		UserID:         b.UserID,
		TravelOptionID: b.TravelOptionID,
		FromCity:       b.FromCity,
		ToCity:         b.ToCity,
		TravelDate:     b.TravelDate.Format("2006-01-02"),
		OperatorName:   b.OperatorName,
		Status:         b.Status,
		PaymentStatus:  b.PaymentStatus,
		SeatNumbers:    []string(b.SeatNumbers),
		Fare:           fare,
		Passengers:     passengers,
		Reason:         reason,
		OccurredAt:     time.Now().UTC(),
	}
}

// BookingEventPublisher delivers booking events after commit
type BookingEventPublisher interface {
	Publish(ctx context.Context, event BookingEvent) error
	Close() error
}

// NoopEventPublisher drops events; used when no broker is configured
type NoopEventPublisher struct {
	logger *logrus.Logger
}

// NewNoopEventPublisher creates a NoopEventPublisher
func NewNoopEventPublisher(logger *logrus.Logger) *NoopEventPublisher {
	return &NoopEventPublisher{logger: logger}
}

func (p *NoopEventPublisher) Publish(ctx context.Context, event BookingEvent) error {
	p.logger.WithFields(logrus.Fields{
		"event":      event.Type,
		"booking_id": event.BookingID,
		"reference":  event.Reference,
	}).Debug("Booking event not published (broker disabled)")
	return nil
}

func (p *NoopEventPublisher) Close() error { return nil }

// AMQPEventPublisher publishes events as persistent JSON messages to one
// durable queue per event type (e.g. "booking.confirmed"), over a shared connection.
type AMQPEventPublisher struct {
	url         string
	queuePrefix string
	logger      *logrus.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

// NewAMQPEventPublisher creates a publisher; the connection is opened lazily
func NewAMQPEventPublisher(url, queuePrefix string, logger *logrus.Logger) *AMQPEventPublisher {
	return &AMQPEventPublisher{
		url:         url,
		queuePrefix: queuePrefix,
		logger:      logger,
		declared:    make(map[string]bool),
	}
}

// QueueName returns the queue an event type is routed to
func (p *AMQPEventPublisher) QueueName(eventType BookingEventType) string {
	return fmt.Sprintf("%s.%s", p.queuePrefix, eventType)
}

// channel returns an open channel, redialing after a broker disconnect. Caller holds mu.
func (p *AMQPEventPublisher) channel() (*amqp.Channel, error) {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel open failed: %w", err)
	}
	p.conn = conn
	p.ch = ch
	p.declared = make(map[string]bool)
	return ch, nil
}

// Publish sends event to its queue
func (p *AMQPEventPublisher) Publish(ctx context.Context, event BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	queue := p.QueueName(event.Type)
	if !p.declared[queue] {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			p.closeLocked()
			return fmt.Errorf("rabbitmq queue declare failed: %w", err)
		}
		p.declared[queue] = true
	}

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    fmt.Sprintf("%s-%s", event.Reference, event.Type),
		Body:         body,
	})
	if err != nil {
		p.closeLocked()
		return fmt.Errorf("rabbitmq publish failed: %w", err)
	}
	return nil
}

// Close closes the channel and connection
func (p *AMQPEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *AMQPEventPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
