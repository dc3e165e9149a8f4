package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	busAttempts    = 3
	busRetryDelay  = 5 * time.Second
	busDialTimeout = 10 * time.Second
)

type Publisher interface {
	PublishJSON(ctx context.Context, v any) error
}

type Rabbit struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbit(url, exchange string) (*Rabbit, error) {
	var conn *amqp.Connection
	err := retry(busAttempts, busRetryDelay, func() error {
		var err error
		conn, err = amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(busDialTimeout)})
		return err
	})
	if err != nil { return nil, err }
	ch, err := conn.Channel()
	if err != nil { conn.Close(); return nil, err }
	if err := ch.ExchangeDeclare(exchange, "fanout", false, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Rabbit{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *Rabbit) Close() {
	if r.ch != nil { _ = r.ch.Close() }
	if r.conn != nil { _ = r.conn.Close() }
}

func (r *Rabbit) Ping() error {
	if r.conn == nil || r.conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

func (r *Rabbit) PublishJSON(ctx context.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil { return err }
	return retry(busAttempts, busRetryDelay, func() error {
		return r.ch.PublishWithContext(ctx, r.exchange, "", false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	})
}

func (r *Rabbit) Consume(service string, handler func(body []byte)) error {
	q, err := r.ch.QueueDeclare(service+"-"+uuid.NewString(), false, true, true, false, nil)
	if err != nil { return err }
	if err := r.ch.QueueBind(q.Name, "", r.exchange, false, nil); err != nil {
		return err
	}
	msgs, err := r.ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil { return err }

	go func() {
		for d := range msgs {
			handler(d.Body)
		}
		log.Warn().Str("queue", q.Name).Msg("bus consumer stopped")
	}()
	return nil
}

func retry(n int, sleep time.Duration, fn func() error) error {
	var err error
	for i := 0; i < n; i++ {
		if err = fn(); err == nil { return nil }
		if i < n-1 {
			time.Sleep(sleep)
		}
	}
	return err
}
