package pubsub

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
)

// DefaultStreamName is the JetStream stream holding prediction events
const DefaultStreamName = "PREDICTION_EVENTS"

// NATSPubSub implements pub/sub using NATS JetStream. Published events go to
// the stream; every message on the subject, from any instance, is fanned out
// to local subscribers.
type NATSPubSub struct {
	fanout
	nc      *nats.Conn
	js      nats.JetStreamContext
	sub     *nats.Subscription
	subject string
}

// NewNATSPubSub connects to a NATS server and ensures the event stream exists
func NewNATSPubSub(natsURL, subject string) (*NATSPubSub, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("nba-predictor-ui"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return newJetStreamPubSub(nc, subject, &nats.StreamConfig{
		Name:     DefaultStreamName,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
}

func newJetStreamPubSub(nc *nats.Conn, subject string, cfg *nats.StreamConfig) (*NATSPubSub, error) {
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(cfg.Name); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			nc.Close()
			return nil, fmt.Errorf("failed to look up stream: %w", err)
		}
		if _, err := js.AddStream(cfg); err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream: %w", err)
		}
		logger.Info("JetStream stream created", "stream", cfg.Name, "subject", subject)
	}

	p := &NATSPubSub{
		fanout:  newFanout(100),
		nc:      nc,
		js:      js,
		subject: subject,
	}

	sub, err := js.Subscribe(subject, p.handleMessage, nats.ManualAck(), nats.DeliverNew())
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	p.sub = sub

	return p, nil
}

func (p *NATSPubSub) handleMessage(msg *nats.Msg) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to unmarshal event from JetStream", "error", err)
		msg.Term()
		return
	}

	p.broadcast(event)
	msg.Ack()
}

// Publish publishes an event to NATS JetStream
func (p *NATSPubSub) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return
	}

	if _, err := p.js.Publish(p.subject, data); err != nil {
		logger.Error("Failed to publish to NATS", "error", err, "subject", p.subject, "event_type", event.Type)
		return
	}

	logger.Debug("Published event to NATS", "event_type", event.Type, "subject", p.subject)
}

// Connected reports whether the NATS connection is up
func (p *NATSPubSub) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close drains the subscription and closes the NATS connection
func (p *NATSPubSub) Close() {
	if p.sub != nil {
		if err := p.sub.Unsubscribe(); err != nil {
			logger.Debug("NATS unsubscribe failed", "error", err)
		}
	}

	p.closeAll()

	if p.nc != nil {
		p.nc.Close()
	}
}
