package expiry

// Policy is the cache strategy chosen on each tick.
type Policy int

const (
	// FullMirror keeps a complete copy of the store in the cache.
	FullMirror Policy = iota
	// TTLExpiry keeps only records younger than the retention period.
	TTLExpiry
)

func (p Policy) String() string {
	switch p {
	case FullMirror:
		return "full-mirror"
	case TTLExpiry:
		return "ttl-expiry"
	}
	return "unknown"
}

// MarshalText encodes the policy by name.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Decide picks the policy for a trusted store size.
func Decide(storeSize, maxCacheSize int) Policy {
	if storeSize <= maxCacheSize {
		return FullMirror
	}
	return TTLExpiry
}

// Action is what a tick did to the cache.
type Action string

const (
	// ActionReload cleared the cache and loaded it from the store.
	ActionReload Action = "reload"
	// ActionPrune deleted records older than the retention period.
	ActionPrune Action = "prune"
	// ActionSkip left the cache untouched; a reload was not yet due.
	ActionSkip Action = "skip"
)
