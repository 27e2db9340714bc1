package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Outcome tells the consume loop how to settle a message after Handler runs.
type Outcome int

const (
	// Ack acknowledges successful processing; the message is not redelivered.
	Ack Outcome = iota
	// Retry negatively acknowledges a transient failure for redelivery.
	Retry
	// Drop acknowledges without further action — used for contract
	// violations and idempotency hits that must never be redelivered.
	Drop
)

// Handler processes one message and reports how it should be settled.
// Returning an error alongside Retry records the cause in the log; the
// message is still nak'd for redelivery regardless of the error value.
type Handler func(ctx context.Context, msg jetstream.Msg) (Outcome, error)

// Run drives a single-prefetch consume loop against consumer, realizing
// this system's prefetch=1 requirement via sequential Fetch(1, ...) calls.
// Messages that exhaust MaxDeliver are dead-lettered to "<subject>.dlq" and
// terminated rather than endlessly retried.
func Run(ctx context.Context, b *Broker, consumer jetstream.Consumer, logger *slog.Logger, maxDeliver int, handle Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Debug("fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			handleOne(ctx, b, msg, logger, maxDeliver, handle)
		}

		if msgs.Error() != nil && !errors.Is(msgs.Error(), context.DeadlineExceeded) {
			logger.Warn("message fetch error", "error", msgs.Error())
		}
	}
}

func handleOne(ctx context.Context, b *Broker, msg jetstream.Msg, logger *slog.Logger, maxDeliver int, handle Handler) {
	if ctx.Err() != nil {
		_ = msg.Nak()
		return
	}

	meta, err := msg.Metadata()
	if err == nil && maxDeliver > 0 && meta.NumDelivered >= uint64(maxDeliver) {
		deadLetter(ctx, b, msg, logger, "max deliveries exceeded")
		return
	}

	outcome, handleErr := handle(ctx, msg)
	switch outcome {
	case Ack, Drop:
		if ackErr := msg.Ack(); ackErr != nil {
			logger.Warn("failed to ack message", "error", ackErr)
		}
	case Retry:
		if handleErr != nil {
			logger.Warn("retryable handler error", "error", handleErr)
		}
		if nakErr := msg.Nak(); nakErr != nil {
			logger.Warn("failed to nak message", "error", nakErr)
		}
	}
}

// deadLetterPayload wraps the original message body with delivery metadata
// for operators inspecting the DLQ subject.
type deadLetterPayload struct {
	Subject      string          `json:"subject"`
	Reason       string          `json:"reason"`
	NumDelivered uint64          `json:"num_delivered"`
	Body         json.RawMessage `json:"body"`
}

func deadLetter(ctx context.Context, b *Broker, msg jetstream.Msg, logger *slog.Logger, reason string) {
	meta, _ := msg.Metadata()
	var delivered uint64
	if meta != nil {
		delivered = meta.NumDelivered
	}

	payload := deadLetterPayload{
		Subject:      msg.Subject(),
		Reason:       reason,
		NumDelivered: delivered,
		Body:         json.RawMessage(msg.Data()),
	}

	if err := b.Publish(ctx, dlqSubject(msg.Subject()), payload); err != nil {
		logger.Error("failed to publish to dead-letter subject", "subject", msg.Subject(), "error", err)
	}

	if err := msg.Term(); err != nil {
		logger.Warn("failed to terminate dead-lettered message", "error", err)
	}
}
