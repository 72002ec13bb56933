package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/whispersubs/whispersubs/internal/logger"
	"github.com/whispersubs/whispersubs/internal/pipeline"
)

// Relay publishes pipeline results to a topic. It implements
// pipeline.ResultSink.
type Relay struct {
	client Client
	topic  string
}

var _ pipeline.ResultSink = (*Relay)(nil)

// NewRelay creates a relay publishing to topic through client
func NewRelay(client Client, topic string) *Relay {
	return &Relay{client: client, topic: topic}
}

// Deliver publishes one result. While the broker is unreachable results
// are dropped; a subtitle is worthless by the time the link returns.
func (r *Relay) Deliver(ctx context.Context, res pipeline.Result) error {
	if !r.client.IsConnected() {
		GetLogger().Debug("broker not connected, subtitle not relayed", logger.String("topic", r.topic))
		return nil
	}

	payload, err := json.Marshal(NewSubtitleDTO(&res))
	if err != nil {
		return fmt.Errorf("failed to marshal subtitle: %w", err)
	}
	return r.client.Publish(ctx, r.topic, payload)
}
