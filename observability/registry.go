package observability

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// defaultObserver is what an empty observer name in configuration selects.
const defaultObserver = "slog"

var registry = struct {
	sync.RWMutex
	byName map[string]Observer
}{
	byName: map[string]Observer{
		"noop": NoOpObserver{},
		"slog": NewSlogObserver(slog.Default()),
	},
}

// GetObserver looks an observer up by name; "" means "slog". "noop" and
// "slog" (bound to slog.Default at init) are always registered.
func GetObserver(name string) (Observer, error) {
	if name == "" {
		name = defaultObserver
	}

	registry.RLock()
	defer registry.RUnlock()

	obs, ok := registry.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown observer: %s", name)
	}
	return obs, nil
}

// RegisterObserver binds name to observer, replacing any previous binding.
// cmd/tablecache uses it to point "slog" at its configured logger.
func RegisterObserver(name string, observer Observer) {
	registry.Lock()
	defer registry.Unlock()

	registry.byName[name] = observer
}

// Observers lists the registered names, sorted.
func Observers() []string {
	registry.RLock()
	defer registry.RUnlock()

	return slices.Sorted(maps.Keys(registry.byName))
}
