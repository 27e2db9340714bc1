package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Broker owns the JetStream connection and the streams/consumers this
// system's bus routing depends on.
type Broker struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials the broker and initializes a JetStream context. It does
// not create streams; call EnsureStreams once per deployment.
func Connect(url string) (*Broker, error) {
	conn, err := nats.Connect(url,
		nats.Name("sentinel"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	return &Broker{conn: conn, js: js}, nil
}

// Close drains and closes the underlying connection.
func (b *Broker) Close() {
	if b.conn != nil {
		_ = b.conn.Drain()
	}
}

// JetStream exposes the underlying JetStream context for callers that need
// direct stream/consumer access beyond what Broker wraps.
func (b *Broker) JetStream() jetstream.JetStream {
	return b.js
}

// IsConnected reports the underlying NATS connection's liveness, for the
// health endpoint's dependency status (§6 "component liveness plus
// dependency status").
func (b *Broker) IsConnected() bool {
	return b.conn != nil && b.conn.IsConnected()
}

// EnsureStreams creates or updates the INCIDENTS and PLANS streams plus
// their per-subject dead-letter subjects, and the durable consumers each
// agent binds to. Safe to call on every process start.
func (b *Broker) EnsureStreams(ctx context.Context) error {
	streamSubjects := map[string][]string{
		StreamIncidents: {
			SubjectIncidentsNew,
			SubjectIncidentsResolved,
			dlqSubject(SubjectIncidentsNew),
			dlqSubject(SubjectIncidentsResolved),
		},
		StreamPlans: {
			SubjectPlansProposed,
			SubjectPlansApproved,
			SubjectPlansApproval,
			dlqSubject(SubjectPlansProposed),
			dlqSubject(SubjectPlansApproved),
			dlqSubject(SubjectPlansApproval),
		},
	}

	for name, subjects := range streamSubjects {
		_, err := b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:      name,
			Subjects:  subjects,
			Retention: jetstream.WorkQueuePolicy,
			Storage:   jetstream.FileStorage,
		})
		if err != nil {
			return fmt.Errorf("ensure stream %s: %w", name, err)
		}
	}

	for _, spec := range Specs() {
		stream, err := b.js.Stream(ctx, spec.Stream)
		if err != nil {
			return fmt.Errorf("get stream %s: %w", spec.Stream, err)
		}
		_, err = stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
			Durable:       spec.Durable,
			FilterSubject: spec.FilterSubject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       spec.AckWait,
			MaxDeliver:    spec.MaxDeliver,
		})
		if err != nil {
			return fmt.Errorf("ensure consumer %s: %w", spec.Durable, err)
		}
	}

	return nil
}

// Publish marshals payload as JSON and publishes it to subject as a
// persistent JetStream message.
func (b *Broker) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", subject, err)
	}
	if _, err := b.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Consumer returns the durable consumer for a previously-ensured spec.
func (b *Broker) Consumer(ctx context.Context, spec ConsumerSpec) (jetstream.Consumer, error) {
	stream, err := b.js.Stream(ctx, spec.Stream)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", spec.Stream, err)
	}
	consumer, err := stream.Consumer(ctx, spec.Durable)
	if err != nil {
		return nil, fmt.Errorf("get consumer %s: %w", spec.Durable, err)
	}
	return consumer, nil
}
