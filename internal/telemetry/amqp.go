// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	pwerr "github.com/postwright/postwright/pkg/errors"
)

const (
	DefaultExchange   = "postwright.telemetry"
	DefaultRoutingKey = "plug.failure"

	publishTimeout = 5 * time.Second
)

// AMQPConfig holds broker settings for AMQPObserver.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// Publisher is the subset of *amqp.Channel the observer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPObserver publishes failure and conflict records as JSON messages.
// Successful runs are not published.
type AMQPObserver struct {
	publisher  Publisher
	exchange   string
	routingKey string
	closers    []func() error
}

// NewAMQPObserver wraps an existing publisher.
func NewAMQPObserver(p Publisher, exchange, routingKey string) *AMQPObserver {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if routingKey == "" {
		routingKey = DefaultRoutingKey
	}
	return &AMQPObserver{publisher: p, exchange: exchange, routingKey: routingKey}
}

// DialAMQP connects to the broker, declares a durable topic exchange and
// returns an observer publishing to it.
func DialAMQP(cfg AMQPConfig) (*AMQPObserver, error) {
	if cfg.URL == "" {
		return nil, pwerr.New(pwerr.CodeTelemetrySetupFailure, "amqp url must not be empty")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeTelemetrySetupFailure, "connecting to amqp broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, pwerr.Wrap(err, pwerr.CodeTelemetrySetupFailure, "opening amqp channel")
	}

	o := NewAMQPObserver(ch, cfg.Exchange, cfg.RoutingKey)
	if err := ch.ExchangeDeclare(o.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, pwerr.Wrap(err, pwerr.CodeTelemetrySetupFailure, "declaring amqp exchange",
			pwerr.Field("exchange", o.exchange))
	}
	o.closers = []func() error{ch.Close, conn.Close}
	return o, nil
}

type amqpMessage struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Identifier string    `json:"identifier"`
	Owner      string    `json:"owner"`
	Run        int       `json:"run,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Report publishes rec when it is a failure or conflict.
func (o *AMQPObserver) Report(ctx context.Context, rec Record) {
	if rec.Kind == KindRunSucceeded || rec.Kind == KindPostPlugSucceeded {
		return
	}
	if err := o.publish(ctx, rec); err != nil {
		slog.Warn("publishing telemetry record", "id", rec.ID, "kind", string(rec.Kind), "error", err)
	}
}

func (o *AMQPObserver) publish(ctx context.Context, rec Record) error {
	body, err := json.Marshal(amqpMessage{
		ID:         rec.ID,
		Kind:       string(rec.Kind),
		Identifier: rec.Identifier,
		Owner:      rec.Owner,
		Run:        rec.Run,
		Error:      rec.ErrorText(),
		Timestamp:  rec.Timestamp.UTC(),
	})
	if err != nil {
		return pwerr.Wrap(err, pwerr.CodeTelemetryPublishFailure, "encoding telemetry record")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = o.publisher.PublishWithContext(ctx, o.exchange, o.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    rec.ID,
		Type:         string(rec.Kind),
		Timestamp:    rec.Timestamp,
		Body:         body,
	})
	if err != nil {
		return pwerr.Wrap(err, pwerr.CodeTelemetryPublishFailure, "publishing to exchange",
			pwerr.Field("exchange", o.exchange))
	}
	return nil
}

// Close releases the broker channel and connection opened by DialAMQP.
func (o *AMQPObserver) Close() error {
	var errs []error
	for _, c := range o.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	o.closers = nil
	if len(errs) > 0 {
		return pwerr.Join(errs...)
	}
	return nil
}
