package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer reads booking events from both booking queues and appends one
// line per event to <LogDir>/booking.log.
type Consumer struct {
    URL    string
    LogDir string
    Log    *slog.Logger

    mu sync.Mutex // serialises appends to the log file
}

// NewConsumer returns a consumer writing below logDir ("logs" when empty).
func NewConsumer(url, logDir string, log *slog.Logger) *Consumer {
    if logDir == "" {
        logDir = "logs"
    }
    if log == nil {
        log = slog.Default()
    }
    return &Consumer{URL: url, LogDir: logDir, Log: log}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Broker
// failures trigger a reconnect with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Log.Warn("booking consumer: dial failed", "error", err, "retry_in", backoff.String())
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.Warn("booking consumer: consume loop ended, reconnecting", "error", err)
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.Warn("booking consumer: set QoS failed", "error", err)
    }

    done := make(chan struct{})
    defer close(done)

    var sources []<-chan amqp.Delivery
    for _, name := range []string{BookingCreated, BookingCancelled} {
        if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", name, err)
        }
        msgs, err := ch.Consume(name, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", name, err)
        }
        sources = append(sources, msgs)
    }
    merged := mergeDeliveries(done, sources...)

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-merged:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.HandleMessage(d.Body); err != nil {
                c.Log.Error("booking consumer: handle message failed", "error", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// mergeDeliveries fans the given channels into one.  The returned channel is
// closed once every input is drained or done is closed, whichever comes first.
func mergeDeliveries(done <-chan struct{}, in ...<-chan amqp.Delivery) <-chan amqp.Delivery {
    out := make(chan amqp.Delivery)
    var wg sync.WaitGroup
    wg.Add(len(in))
    for _, src := range in {
        go func(src <-chan amqp.Delivery) {
            defer wg.Done()
            for {
                select {
                case <-done:
                    return
                case d, ok := <-src:
                    if !ok {
                        return
                    }
                    select {
                    case out <- d:
                    case <-done:
                        return
                    }
                }
            }
        }(src)
    }
    go func() { wg.Wait(); close(out) }()
    return out
}

// HandleMessage decodes one event and appends its line to the log file.
func (c *Consumer) HandleMessage(body []byte) error {
    var ev BookingEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.BookingID == 0 || ev.Type == "" {
        return errors.New("event without booking id or type")
    }

    c.mu.Lock()
    defer c.mu.Unlock()
    if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(c.LogDir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders an event as a single human-friendly log line.
func FormatLine(ev BookingEvent) string {
    verb := "Booking created"
    if ev.Type == BookingCancelled {
        verb = "Booking cancelled"
    }
    return fmt.Sprintf("[%s] %s | booking_id=%d | spot_id=%d | user_id=%d | dates=%s..%s | event_id=%s\n",
        ev.OccurredAt, verb, ev.BookingID, ev.SpotID, ev.UserID, ev.StartDate, ev.EndDate, ev.EventID)
}
