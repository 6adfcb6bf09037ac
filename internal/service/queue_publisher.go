// Package service provides the RabbitMQ publisher the registry uses as its
// external event sink.  Errors are logged and returned; the registry never
// rolls back a creation because publishing failed.
package service

import (
    "context"
    "encoding/json"
    "log/slog"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/munon-registry/internal/model"
    q "github.com/iliyamo/munon-registry/internal/queue"
)

// Publisher publishes HackathonCreatedEvent messages to the
// "hackathon.created" queue.  Each call dials the broker, so a broker
// restart never leaves a stale connection behind.
type Publisher struct {
    url    string
    logger *slog.Logger
    dial   func(url string) (channel, func() error, error)
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
    QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
    if logger == nil {
        logger = slog.Default()
    }
    return &Publisher{url: url, logger: logger.With("component", "rabbitmq"), dial: dialChannel}
}

func dialChannel(url string) (channel, func() error, error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, err
    }
    closeFn := func() error {
        _ = ch.Close()
        return conn.Close()
    }
    return ch, closeFn, nil
}

// PublishCreation implements registry.EventSink.  Messages are marked as
// persistent.
func (p *Publisher) PublishCreation(ctx context.Context, ev model.HackathonCreation) error {
    ch, closeFn, err := p.dial(p.url)
    if err != nil {
        p.logger.Error("dial failed", "error", err)
        return err
    }
    defer func() { _ = closeFn() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        q.CreationQueue, // name
        true,            // durable
        false,           // autoDelete
        false,           // exclusive
        false,           // noWait
        nil,             // args
    ); err != nil {
        p.logger.Error("queue declare failed", "error", err)
        return err
    }

    body, err := json.Marshal(q.NewHackathonCreatedEvent(ev))
    if err != nil {
        p.logger.Error("marshal event failed", "error", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",              // default exchange
        q.CreationQueue, // routing key = queue name
        false,           // mandatory
        false,           // immediate
        pub,
    ); err != nil {
        p.logger.Error("publish failed", "error", err, "hackathon_id", ev.ID)
        return err
    }
    p.logger.Debug("hackathon creation published", "hackathon_id", ev.ID)
    return nil
}
