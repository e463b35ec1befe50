package events

import (
	"fmt"
	"strings"

	"nodeagent/internal/config"
	"nodeagent/internal/logger"
)

// NewSink creates the sink selected by cfg.Type.
func NewSink(cfg config.EventsConfig, socks config.SOCKSConfig) (Sink, error) {
	log := logger.WithComponent("events-factory")

	sinkType := strings.ToLower(cfg.Type)
	if sinkType == "" {
		sinkType = "none"
	}
	log.Debug().Str("sink_type", sinkType).Msg("creating event sink")

	switch sinkType {
	case "none":
		return NopSink{}, nil
	case "file":
		return NewFileSink(cfg.File)
	case "kafka":
		return NewKafkaSink(cfg.Kafka, socks)
	default:
		return nil, fmt.Errorf("unknown events type: %s (supported: none, file, kafka)", cfg.Type)
	}
}
