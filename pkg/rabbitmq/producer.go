/**
 * @description
 * This package publishes settlement events to RabbitMQ. The exchange is a
 * durable topic declared once at startup, and deliveries are persistent so a
 * broker restart does not drop settlement notifications that downstream
 * consumers (cache eviction, receipts, notifications) depend on.
 *
 * @dependencies
 * - context, encoding/json, sync, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// EventExchange is the topic exchange settlement events are published to.
const EventExchange = "billpay.events"

// Routing keys for settlement outcomes.
const (
	RoutingKeySettled = "billpay.transaction.settled"
	RoutingKeyFailed  = "billpay.transaction.failed"
)

const dialTimeout = 10 * time.Second

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// EventProducer publishes JSON events over a single AMQP channel. The channel
// is reopened once on a failed publish; a second failure surfaces to the
// caller, who logs and moves on since events are best-effort.
type EventProducer struct {
	conn *amqp091.Connection

	mu      sync.Mutex
	channel *amqp091.Channel
}

// EventProducerFallback is a no-op publisher used when the broker is
// unreachable at startup. Payments must not depend on the event bus.
type EventProducerFallback struct{}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"publish skipped\" exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

func (p *EventProducerFallback) Close() {}

// NewEventProducer dials the broker, opens a channel, and declares the event
// exchange so publishes never race a missing exchange.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	cleanURL, err := normalizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, err
	}

	ch, err := openChannel(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch}, nil
}

// normalizeAMQPURL trims whitespace and stray quoting that env files tend to
// carry and rejects non-AMQP schemes before we hand the URL to the dialer.
func normalizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// openChannel opens a channel and declares the durable topic exchange on it.
func openChannel(conn *amqp091.Connection) (*amqp091.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(EventExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}

// Publish sends a JSON-encoded message to the exchange under the routing key.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Printf("level=error component=rabbitmq_producer msg=\"json marshal failed\" routing_key=%s err=%v", routingKey, err)
		return err
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	// A broker hiccup usually kills only the channel. Reopen once and retry;
	// a second failure means the connection itself is gone.
	log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" routing_key=%s err=%v", routingKey, err)
	ch, chErr := openChannel(p.conn)
	if chErr != nil {
		return err
	}
	p.channel.Close()
	p.channel = ch
	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
}

// Close shuts down the channel and connection.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
