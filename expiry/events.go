package expiry

import "github.com/tailored-agentic-units/tablecache/observability"

// Expirer event types.
const (
	EventTickStart    observability.EventType = "cache.expiry.tick.start"
	EventProbe        observability.EventType = "cache.expiry.probe"
	EventReload       observability.EventType = "cache.expiry.reload"
	EventPrune        observability.EventType = "cache.expiry.prune"
	EventSkip         observability.EventType = "cache.expiry.skip"
	EventTickComplete observability.EventType = "cache.expiry.tick.complete"
	EventError        observability.EventType = "cache.expiry.error"
)
