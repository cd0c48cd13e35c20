package eventbus

import "github.com/creatorpulse/creatorpulse/internal/config"

// New selects the Kafka-backed bus when configured and enabled, otherwise
// falls back to the in-process MemoryBus.
func New(cfg config.KafkaConfig) Bus {
	if cfg.Enabled && len(cfg.Brokers) > 0 {
		return NewKafkaBus(cfg.Brokers, cfg.GroupID)
	}
	return NewMemoryBus()
}
