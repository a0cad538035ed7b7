// Package events re-exports the platform event bus for convenience.
// This allows internal modules to import events from internal/events
// while the implementation lives in platform/events.
package events

import (
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/config"
	platformevents "github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/events"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/logger"
)

// InMemoryBus is a type alias to the platform InMemoryBus
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}

// KafkaRelay is a type alias to the platform KafkaRelay
type KafkaRelay = platformevents.KafkaRelay

// NewKafkaRelay creates a relay, or nil when no broker is configured.
func NewKafkaRelay(cfg config.KafkaConfig, log *logger.Logger) *KafkaRelay {
	return platformevents.NewKafkaRelay(cfg, log)
}
