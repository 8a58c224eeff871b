package events

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/imkonsowa/restaurant-qa/config"
	"github.com/nats-io/nats.go"
)

const streamMaxAge = 7 * 24 * time.Hour

type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Connect opens a JetStream connection and makes sure the catalog stream
// exists.
func Connect(cfg *config.Nats) (*Client, error) {
	nc, err := nats.Connect(cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.CatalogSubject},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    streamMaxAge,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		nc.Close()
		return nil, err
	}

	return &Client{conn: nc, js: js}, nil
}

func (c *Client) Close() {
	c.conn.Close()
}

// Publish waits for the stream to acknowledge the message.
func (c *Client) Publish(subject string, data []byte) error {
	_, err := c.js.Publish(subject, data)

	return err
}

// PublishAsync does not wait for the acknowledgement. Flush waits for all
// pending ones.
func (c *Client) PublishAsync(subject string, data []byte) error {
	_, err := c.js.PublishAsync(subject, data)

	return err
}

func (c *Client) Flush(ctx context.Context) error {
	select {
	case <-c.js.PublishAsyncComplete():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumerName derives the durable consumer name from the subject.
func ConsumerName(subject string) string {
	return strings.ReplaceAll(subject+".consumer", ".", "-")
}

// Subscribe pulls messages for subject with a durable consumer until ctx is
// done. handler owns acknowledging each message.
func (c *Client) Subscribe(ctx context.Context, subject string, handler func(m *nats.Msg)) error {
	subscription, err := c.js.PullSubscribe(subject, ConsumerName(subject), nats.ManualAck())
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			if err := subscription.Unsubscribe(); err != nil {
				slog.Warn("failed to unsubscribe from subject", "subject", subject, "error", err)
			}

			return nil
		default:
			msgs, err := subscription.Fetch(4, nats.MaxWait(200*time.Millisecond))
			if err != nil && !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			for _, msg := range msgs {
				handler(msg)
			}
		}
	}
}
