// Package natspub publishes found/lost deltas to NATS so interested services
// can react to the user's surroundings without holding a websocket open.
package natspub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mikiec84/perception-toolkit/artifact"
	"github.com/mikiec84/perception-toolkit/errors"
)

// subjectPrefix is the root of all delta subjects. The event source is
// appended, e.g. "percept.delta.marker".
const subjectPrefix = "percept.delta."

// conn is the slice of the NATS connection the publisher uses, kept narrow
// for testing.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher is an engine delta sink backed by a NATS connection.
type Publisher struct {
	conn   conn
	logger *slog.Logger
}

// Config configures the NATS connection.
type Config struct {
	// URL is the NATS server URL, e.g. "nats://localhost:4222".
	URL string `json:"url"`

	// Name identifies the connection to the server. Defaults to
	// "perception-toolkit".
	Name string `json:"name"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "natspub", "Validate", "url is required")
	}
	return nil
}

// Connect establishes the NATS connection and returns a publisher over it.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "perception-toolkit"
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "natspub", "Connect", "connecting to NATS failed")
	}
	return &Publisher{conn: nc, logger: logger}, nil
}

// PublishDelta publishes a delta to percept.delta.<source>.
func (p *Publisher) PublishDelta(_ context.Context, source string, delta *artifact.NearbyResultDelta) error {
	payload, err := json.Marshal(delta)
	if err != nil {
		return errors.WrapInvalid(err, "Publisher", "PublishDelta", "encoding delta failed")
	}
	if err := p.conn.Publish(subjectPrefix+source, payload); err != nil {
		return errors.WrapTransient(err, "Publisher", "PublishDelta", "publishing delta failed")
	}
	return nil
}

// Close drains the connection, flushing pending publishes.
func (p *Publisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		return errors.WrapTransient(err, "Publisher", "Close", "draining connection failed")
	}
	return nil
}
