package pubsub

import (
	"context"

	"AlphaDesk/pkg/logger"
)

// Mirror is a durable sink that receives a copy of every message, keyed by channel.
// *kafka.Producer satisfies it.
type Mirror interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// MirroredBus publishes to the primary bus and copies each message to a mirror topic.
// Mirror failures are logged and never fail the publish.
type MirroredBus struct {
	Bus
	mirror Mirror
	topic  string
	log    *logger.Logger
}

func NewMirroredBus(primary Bus, mirror Mirror, topic string, log *logger.Logger) *MirroredBus {
	return &MirroredBus{Bus: primary, mirror: mirror, topic: topic, log: log}
}

func (m *MirroredBus) Publish(ctx context.Context, channel string, payload interface{}) error {
	err := m.Bus.Publish(ctx, channel, payload)

	data, encErr := encode(payload)
	if encErr != nil {
		return encErr
	}
	if mErr := m.mirror.Publish(ctx, m.topic, []byte(channel), data); mErr != nil {
		m.log.Warn("broadcast mirror publish failed",
			logger.String("channel", channel),
			logger.String("topic", m.topic),
			logger.Error(mErr),
		)
	}
	return err
}
