package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const ticketEmailQueue = "ticket.email"

// Publisher pushes ticket emails onto the durable ticket.email queue.
// It satisfies the delivery service's Sender interface: a successful
// publish counts as the outbox handing the credential off, after
// which the plaintext is wiped.
type Publisher struct {
	url string
	log *slog.Logger
}

func NewPublisher(url string, log *slog.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// Send publishes one TicketEmail.  Messages are persistent so they
// survive broker restarts; the queue is declared idempotently on
// every publish.
func (p *Publisher) Send(ctx context.Context, msg TicketEmail) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Error("rabbitmq dial failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Error("rabbitmq channel open failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		ticketEmailQueue, // name
		true,             // durable
		false,            // autoDelete
		false,            // exclusive
		false,            // noWait
		nil,              // args
	); err != nil {
		p.log.Error("rabbitmq queue declare failed", "error", err)
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",               // default exchange
		ticketEmailQueue, // routing key = queue name
		false,            // mandatory
		false,            // immediate
		pub,
	); err != nil {
		p.log.Error("rabbitmq publish failed", "error", err)
		return err
	}
	return nil
}
