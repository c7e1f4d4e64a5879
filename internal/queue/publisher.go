package queue

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names.  Durable queues; messages are marked persistent so a broker
// restart does not drop confirmations.
const (
    ConfirmedQueueName = "booking.confirmed"
    ReleasedQueueName  = "booking.seats_released"
)

// Publisher sends domain events to RabbitMQ.  Errors are logged and
// returned so callers can ignore failures without interrupting the main
// request flow: a lost event never blocks a paying customer.
type Publisher struct {
    url string
}

// NewPublisher returns a Publisher for the given broker URL.  An empty URL
// yields a disabled publisher whose methods are no-ops, so environments
// without a broker still work.
func NewPublisher(url string) *Publisher {
    return &Publisher{url: url}
}

// PublishBookingConfirmed publishes a BookingConfirmedEvent to the
// booking.confirmed queue.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error {
    return p.publish(ctx, ConfirmedQueueName, event)
}

// PublishSeatsReleased publishes a SeatsReleasedEvent to the
// booking.seats_released queue.
func (p *Publisher) PublishSeatsReleased(ctx context.Context, event SeatsReleasedEvent) error {
    return p.publish(ctx, ReleasedQueueName, event)
}

func (p *Publisher) publish(ctx context.Context, queueName string, event interface{}) error {
    if p.url == "" {
        return nil
    }
    conn, err := amqp.Dial(p.url)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        queueName, // name
        true,      // durable
        false,     // autoDelete
        false,     // exclusive
        false,     // noWait
        nil,       // args
    ); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    if err := ch.PublishWithContext(ctx,
        "",        // default exchange
        queueName, // routing key = queue name
        false,     // mandatory
        false,     // immediate
        pub,
    ); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }

    return nil
}
