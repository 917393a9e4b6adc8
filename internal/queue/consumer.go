package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/avelora/ticket-office/internal/credential"
	"github.com/avelora/ticket-office/internal/mailer"
	"github.com/avelora/ticket-office/internal/ticketpdf"
)

// Consumer drains the ticket.email queue, renders the QR code and PDF
// for each message and hands the result to the mailer.
type Consumer struct {
	url string
	m   mailer.Mailer
	log *slog.Logger
}

func NewConsumer(url string, m mailer.Mailer, log *slog.Logger) *Consumer {
	return &Consumer{url: url, m: m, log: log}
}

// Start connects to RabbitMQ, declares the durable ticket.email queue
// and consumes until ctx is cancelled.  It runs a reconnect loop with
// exponential backoff; message-level failures are logged and the
// message rejected without requeue so a poison message cannot wedge
// the consumer.
func (c *Consumer) Start(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("ticket-email consumer dial failed", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := c.consumeLoop(ctx, conn); err != nil {
			c.log.Warn("ticket-email consume loop ended", "error", err)
			_ = conn.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		c.log.Warn("set QoS failed", "error", err)
	}

	if _, err := ch.QueueDeclare(ticketEmailQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(ticketEmailQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.log.Warn("ticket email handling failed", "error", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var msg TicketEmail
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	qrPNG, err := credential.QRPNG(msg.Credential, 512)
	if err != nil {
		return fmt.Errorf("render qr: %w", err)
	}
	pdfBytes, err := ticketpdf.Render(ticketpdf.Ticket{
		EventName:   msg.EventName,
		Venue:       msg.Venue,
		StartsAt:    msg.StartsAt,
		OrderNumber: msg.OrderNumber,
		BuyerName:   msg.BuyerName,
		Quantity:    msg.Quantity,
		TierName:    msg.TierName,
		TotalCents:  msg.TotalCents,
	}, qrPNG)
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}

	email := mailer.Email{
		To:      msg.Recipient,
		Subject: fmt.Sprintf("Your tickets for %s (%s)", msg.EventName, msg.OrderNumber),
		HTML:    renderHTML(msg),
		Text: fmt.Sprintf("Your %d ticket(s) for %s on %s. Order %s. Present the attached QR code at the entrance.",
			msg.Quantity, msg.EventName, msg.StartsAt, msg.OrderNumber),
		Attachments: []mailer.Attachment{
			{Filename: "ticket-" + msg.OrderNumber + ".pdf", Content: base64.StdEncoding.EncodeToString(pdfBytes)},
			{Filename: "checkin-qr.png", Content: base64.StdEncoding.EncodeToString(qrPNG)},
		},
	}
	if err := c.m.Send(ctx, email); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	c.log.Info("ticket email sent", "order_id", msg.OrderID, "recipient", msg.Recipient)
	return nil
}

func renderHTML(msg TicketEmail) string {
	return fmt.Sprintf(
		`<h2>%s</h2>
<p>%s &middot; %s</p>
<p>Hi %s, thanks for your order <strong>%s</strong>.</p>
<p>%d &times; %s &mdash; total %d.%02d</p>
<p>Your ticket PDF and check-in QR code are attached. The QR code admits one entry.</p>`,
		msg.EventName, msg.Venue, msg.StartsAt,
		msg.BuyerName, msg.OrderNumber,
		msg.Quantity, msg.TierName, msg.TotalCents/100, msg.TotalCents%100,
	)
}
