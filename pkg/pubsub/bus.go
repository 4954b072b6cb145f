package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Channels used by the core.
const (
	ChannelAgentLogs    = "agent:logs"
	ChannelAlphaUpdates = "alpha:updates"
	ChannelEmergency    = "emergency:stop"
	ChannelSystemLogs   = "system:logs"
)

var ErrClosed = errors.New("pubsub: bus is closed")

// Handler receives the raw JSON payload published on a channel.
type Handler func(ctx context.Context, channel string, payload []byte)

// Bus is a fire-and-forget broadcast channel abstraction.
type Bus interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
	Subscribe(channel string, h Handler) (unsubscribe func(), err error)
	Close() error
}

func encode(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}
