/*
Copyright 2024 The Skynet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package eventbus connects the control plane to the fleet's AMQP broker.
// Every replica owns a private queue named by its replica id, bound to the
// direct exchange under that id and to the topic exchange under skynet.#.
package eventbus

import (
	"context"
	"errors"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	klog "k8s.io/klog/v2"

	"github.com/skynet-mc/skynet/pkg/metrics"
	"github.com/skynet-mc/skynet/pkg/tracing"
)

const (
	exchangeDirect = "skynet.direct"
	exchangeTopic  = "skynet.events"
	topicPattern   = "skynet.#"
	consumerTag    = "skynet"
)

// Publisher is the outbound half of the bus; components depend on it so
// tests can swap in a recorder.
type Publisher interface {
	Publish(ctx context.Context, ev ServerEvent) error
}

// Handler processes one inbound event. Returned errors are logged and the
// consume loop continues.
type Handler func(ctx context.Context, ev ServerEvent) error

// Config carries broker address and the replica identity the queue is
// named after.
type Config struct {
	Address   string
	ReplicaID uuid.UUID
}

// Bus is the live broker connection. Shutdown is invoked when the consumer
// cannot recover its channel.
type Bus struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	shutdown func(reason string)
}

// New dials the broker and declares the exchange/queue topology. Dialing is
// retried because the broker may still be starting alongside this process.
func New(cfg Config, shutdown func(reason string)) (*Bus, error) {
	var conn *amqp.Connection
	err := retry.Do(
		func() error {
			var derr error
			conn, derr = amqp.Dial(cfg.Address)
			if derr != nil {
				klog.Errorf("failed to connect to broker at %s because of %s", cfg.Address, derr.Error())
			}
			return derr
		},
		retry.Delay(1*time.Second),
		retry.Attempts(3),
	)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := declareTopology(channel, cfg.ReplicaID.String()); err != nil {
		conn.Close()
		return nil, err
	}

	return &Bus{
		conn:     conn,
		channel:  channel,
		queue:    cfg.ReplicaID.String(),
		shutdown: shutdown,
	}, nil
}

func declareTopology(channel *amqp.Channel, queue string) error {
	if err := channel.ExchangeDeclare(exchangeDirect, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return err
	}
	if err := channel.ExchangeDeclare(exchangeTopic, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := channel.QueueDeclare(queue, true, true, true, false, nil); err != nil {
		return err
	}
	if err := channel.QueueBind(queue, queue, exchangeDirect, false, nil); err != nil {
		return err
	}
	return channel.QueueBind(queue, topicPattern, exchangeTopic, false, nil)
}

// Publish encodes and routes one event. Direct events go to the direct
// exchange keyed by their destination; everything else fans out on the
// topic exchange. The publishing span's traceparent rides along in the
// message headers so consumers can link back to it.
func (b *Bus) Publish(ctx context.Context, ev ServerEvent) error {
	ctx, span := otel.Tracer("skynet").Start(ctx, tracing.SpanPublishEvent,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(tracing.AttrRoutingKey(ev.Route())))
	defer span.End()

	body, err := Encode(ev)
	if err != nil {
		return err
	}
	exchange := exchangeTopic
	if ev.Direct() {
		exchange = exchangeDirect
	}
	headers := amqp.Table{}
	if traceparent := tracing.GenerateTraceparent(span.SpanContext()); traceparent != "" {
		headers["traceparent"] = traceparent
	}
	err = b.channel.PublishWithContext(ctx, exchange, ev.Route(), false, false, amqp.Publishing{
		ContentType: "application/json",
		Headers:     headers,
		Body:        body,
	})
	if err == nil {
		metrics.EventsPublishedTotal.WithLabelValues(ev.EventName()).Inc()
	}
	return err
}

// Run consumes the replica queue until the context ends. Deliveries are
// acked before handling; a handler failure never redelivers. A broken
// channel is recovered once; when recovery fails the whole process shuts
// down rather than running deaf.
func (b *Bus) Run(ctx context.Context, handler Handler) {
	for {
		deliveries, err := b.channel.Consume(b.queue, consumerTag, false, true, false, false, nil)
		if err != nil {
			klog.Errorf("failed to start bus consumer: %s", err.Error())
			b.shutdown("bus consume failed")
			return
		}

		if done := b.consume(ctx, deliveries, handler); done {
			return
		}
		if ctx.Err() != nil {
			return
		}

		klog.Warning("bus channel lost, attempting recovery")
		if err := b.channel.Recover(true); err != nil {
			klog.Errorf("bus recovery failed: %s. shutdown initiated", err.Error())
			b.shutdown("bus recovery failed")
			return
		}
		klog.Info("bus recovered successfully")
	}
}

func (b *Bus) consume(ctx context.Context, deliveries <-chan amqp.Delivery, handler Handler) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case delivery, ok := <-deliveries:
			if !ok {
				return false
			}
			if err := delivery.Ack(false); err != nil {
				klog.Warningf("failed to ack delivery: %s", err.Error())
				return false
			}
			b.dispatch(ctx, delivery, handler)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, delivery amqp.Delivery, handler Handler) {
	ev, err := Decode(delivery.Body)
	if err != nil {
		var unknown *ErrUnknownEvent
		if errors.As(err, &unknown) {
			klog.V(4).Infof("dropping unhandled bus event %q", unknown.Name)
			return
		}
		klog.Warningf("received undecodable bus message: %s", err.Error())
		return
	}

	if traceparent, ok := delivery.Headers["traceparent"].(string); ok {
		if remote, perr := tracing.ParseTraceparent(traceparent); perr == nil {
			ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
		}
	}
	ctx, span := otel.Tracer("skynet").Start(ctx, tracing.SpanConsumeEvent,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(tracing.AttrRoutingKey(delivery.RoutingKey)))
	defer span.End()

	if err := handler(ctx, ev); err != nil {
		klog.Errorf("could not process %s event: %s", ev.EventName(), err.Error())
	}
}

// Close tears the connection down; the private queue auto-deletes with it.
func (b *Bus) Close() error {
	return b.conn.Close()
}
