package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"story-video-pipeline/config"
	"story-video-pipeline/types"
)

const (
	natsConnectTimeout = 5 * time.Second
	natsMaxReconnects  = 5
)

// NATS announces each rendered video on a subject
type NATS struct {
	nc      *nats.Conn
	subject string
}

// NewNATS connects to the configured server
func NewNATS(cfg config.NATSConfig) (*NATS, error) {
	nc, err := nats.Connect(
		cfg.URL,
		nats.Name("story-video-pipeline"),
		nats.Timeout(natsConnectTimeout),
		nats.MaxReconnects(natsMaxReconnects),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.Info().Str("stage", "publish").Str("url", cfg.URL).Msg("connected to NATS")
	return &NATS{nc: nc, subject: cfg.Subject}, nil
}

// Name implements Publisher
func (n *NATS) Name() string { return "nats" }

// Publish sends a VideoRenderedEvent and waits for the server to take it
func (n *NATS) Publish(ctx context.Context, state *types.PipelineState) error {
	event, err := NewEvent(state)
	if err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.nc.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", n.subject, err)
	}
	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush NATS: %w", err)
	}
	log.Info().Str("stage", "publish").Str("subject", n.subject).Str("stem", event.Stem).Msg("render event published")
	return nil
}

// Close drains the connection
func (n *NATS) Close() {
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()
	}
}
