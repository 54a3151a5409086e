package engine

import "github.com/tailored-agentic-units/tablecache/observability"

// Engine event types.
const (
	EventStart observability.EventType = "engine.start"
	EventStop  observability.EventType = "engine.stop"
	EventFatal observability.EventType = "engine.fatal"
)
