// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/CodeAssist/internal/logger"
	"github.com/Strob0t/CodeAssist/internal/port/messagequeue"
)

const (
	streamName = "CODEASSIST"

	headerRequestID  = "X-Request-ID"
	headerRetryCount = "Retry-Count"
	headerDLQReason  = "DLQ-Reason"

	// maxRetries is the number of failed deliveries after which a message
	// is moved to <subject>.dlq.
	maxRetries = 3
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

var _ messagequeue.Queue = (*Queue)(nil)

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url,
		nats.Name("codeassist"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"audit.>", "tasks.>"},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// JetStream exposes the underlying JetStream context (used by the KV cache).
func (q *Queue) JetStream() jetstream.JetStream {
	return q.js
}

// Publish validates data against the subject's schema and sends it. The
// request ID from ctx travels as a message header.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}

	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	if reqID := logger.RequestID(ctx); reqID != "" {
		msg.Header.Set(headerRequestID, reqID)
	}

	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject. Messages
// that fail validation go straight to the DLQ; handler failures are
// republished with an incremented retry count until maxRetries is reached.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

func (q *Queue) handle(msg jetstream.Msg, handler messagequeue.Handler) {
	subject := msg.Subject()
	hdrs := msg.Headers()

	ctx := context.Background()
	if reqID := hdrs.Get(headerRequestID); reqID != "" {
		ctx = logger.WithRequestID(ctx, reqID)
	}

	if err := messagequeue.Validate(subject, msg.Data()); err != nil {
		slog.Warn("invalid message", "subject", subject, "error", err)
		q.moveToDLQ(ctx, msg, err)
		return
	}

	if err := handler(ctx, subject, msg.Data()); err != nil {
		retries := retryCount(hdrs)
		slog.Error("message handler failed", "subject", subject, "retry", retries, "error", err)
		if retries >= maxRetries {
			q.moveToDLQ(ctx, msg, err)
			return
		}
		q.retry(ctx, msg, retries+1)
		return
	}

	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("nats ack failed", "error", ackErr)
	}
}

// retry republishes msg with an incremented retry count and acks the original.
func (q *Queue) retry(ctx context.Context, msg jetstream.Msg, count int) {
	out := &nats.Msg{Subject: msg.Subject(), Data: msg.Data(), Header: copyHeader(msg.Headers())}
	out.Header.Set(headerRetryCount, strconv.Itoa(count))

	if _, err := q.js.PublishMsg(ctx, out); err != nil {
		slog.Error("nats retry publish failed", "subject", msg.Subject(), "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.Error("nats nak failed", "error", nakErr)
		}
		return
	}
	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("nats ack failed", "error", ackErr)
	}
}

// moveToDLQ copies msg to <subject>.dlq and acks the original.
func (q *Queue) moveToDLQ(ctx context.Context, msg jetstream.Msg, reason error) {
	dlq := msg.Subject() + ".dlq"
	out := &nats.Msg{Subject: dlq, Data: msg.Data(), Header: copyHeader(msg.Headers())}
	out.Header.Set(headerDLQReason, reason.Error())

	if _, err := q.js.PublishMsg(ctx, out); err != nil {
		slog.Error("nats dlq publish failed", "subject", dlq, "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.Error("nats nak failed", "error", nakErr)
		}
		return
	}
	slog.Warn("message moved to dlq", "subject", dlq)
	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("nats ack failed", "error", ackErr)
	}
}

func retryCount(h nats.Header) int {
	n, err := strconv.Atoi(h.Get(headerRetryCount))
	if err != nil {
		return 0
	}
	return n
}

func copyHeader(h nats.Header) nats.Header {
	out := nats.Header{}
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Drain gracefully drains all subscriptions before closing.
func (q *Queue) Drain() error {
	if err := q.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the NATS connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}
