package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Mailer delivers one plain-text message.
type Mailer interface {
	Send(to, subject, body string) error
}

// StartNotificationConsumer connects to RabbitMQ, declares the durable
// notification.email queue and consumes events, turning each into an email.
// It runs a reconnect loop with exponential backoff and never returns under
// normal operation; processing errors are logged and the offending message
// is rejected without requeue so the consumer keeps moving.
func StartNotificationConsumer(mailer Mailer) error {
	url := BrokerURL()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("notification-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, mailer); err != nil {
			log.Printf("notification-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, mailer Mailer) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("notification-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(notificationQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(notificationQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, mailer); err != nil {
			log.Printf("notification-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, mailer Mailer) error {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	subject, text, err := renderEvent(ev)
	if err != nil {
		return err
	}

	if err := mailer.Send(ev.Email, subject, text); err != nil {
		return fmt.Errorf("send mail to %s: %w", ev.Email, err)
	}

	if ev.Kind == KindBookingConfirmed {
		if err := appendBookingLog(ev); err != nil {
			log.Printf("notification-consumer: booking log append failed: %v", err)
		}
	}
	return nil
}

func renderEvent(ev NotificationEvent) (subject, text string, err error) {
	switch ev.Kind {
	case KindWelcome:
		subject = "Welcome to the Tours family!"
		text = fmt.Sprintf("Hi %s,\n\nWelcome aboard! We are glad to have you.\nLog in and start exploring tours.\n", ev.Name)
	case KindPasswordReset:
		subject = "Your password reset token (valid for only 10 minutes)"
		text = fmt.Sprintf("Hi %s,\n\nForgot your password? Submit a new one here:\n%s\n\nIf you didn't forget your password, please ignore this email.\n", ev.Name, ev.ResetURL)
	case KindBookingConfirmed:
		subject = fmt.Sprintf("Your booking for %s is confirmed", ev.TourName)
		text = fmt.Sprintf("Hi %s,\n\nYour booking for %s ($%.2f) is confirmed.\nSee you there!\n", ev.Name, ev.TourName, ev.Price)
	default:
		return "", "", fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return subject, text, nil
}

// appendBookingLog writes one line per confirmed booking to
// logs/booking.log.
func appendBookingLog(ev NotificationEvent) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "booking.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Booking confirmed | email=%s | tour=%q | price=%.2f\n",
		time.Now().UTC().Format(time.RFC3339), ev.Email, ev.TourName, ev.Price)

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
