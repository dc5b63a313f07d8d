// Package service holds outbound integrations used by the handlers.  The
// RabbitMQ publisher sends booking events; errors are logged and returned
// so callers can ignore them without interrupting the request.
package service

import (
    "context"
    "encoding/json"
    "errors"
    "log/slog"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/spot-rental/internal/queue"
)

// dialTimeout bounds connection setup so a missing broker cannot stall a
// request for long.
const dialTimeout = 2 * time.Second

// Publisher keeps one connection and channel to the broker and reopens
// them after a failure.
type Publisher struct {
    url string
    log *slog.Logger

    mu       sync.Mutex
    conn     *amqp.Connection
    ch       *amqp.Channel
    declared map[string]bool
}

// NewPublisher returns a publisher for url.  No connection is made until
// the first event.
func NewPublisher(url string, log *slog.Logger) *Publisher {
    if log == nil {
        log = slog.Default()
    }
    return &Publisher{url: url, log: log, declared: map[string]bool{}}
}

// channel returns an open channel, dialing when needed.  Callers hold mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    p.reset()
    conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
    if err != nil {
        return nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, err
    }
    p.conn, p.ch = conn, ch
    p.declared = map[string]bool{}
    return ch, nil
}

func (p *Publisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.ch, p.conn = nil, nil
}

// PublishBooking sends ev to the queue named by its type.  The queue is
// declared durable and the message persistent.
func (p *Publisher) PublishBooking(ctx context.Context, ev queue.BookingEvent) error {
    if ev.Type != queue.BookingCreated && ev.Type != queue.BookingCancelled {
        return errors.New("unknown booking event type " + ev.Type)
    }
    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    p.mu.Lock()
    defer p.mu.Unlock()

    ch, err := p.channel()
    if err != nil {
        p.log.Warn("rabbitmq: dial failed", "error", err)
        return err
    }
    if !p.declared[ev.Type] {
        if _, err := ch.QueueDeclare(ev.Type, true, false, false, false, nil); err != nil {
            p.log.Warn("rabbitmq: queue declare failed", "queue", ev.Type, "error", err)
            p.reset()
            return err
        }
        p.declared[ev.Type] = true
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.EventID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", ev.Type, false, false, pub); err != nil {
        p.log.Warn("rabbitmq: publish failed", "queue", ev.Type, "error", err)
        p.reset()
        return err
    }
    return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.reset()
    return nil
}
