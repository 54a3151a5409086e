package store

import (
	"fmt"

	"github.com/tailored-agentic-units/tablecache/record"
)

// Store types understood by NewStore. TypeRemote is built by the caller
// because the remote client lives in a subpackage.
const (
	TypeMemory = "memory"
	TypeFile   = "file"
	TypeRemote = "remote"
)

// Config holds store initialization parameters.
type Config struct {
	Type    string `json:"type,omitempty"`    // memory, file, or remote.
	Path    string `json:"path,omitempty"`    // FileStore root directory.
	Address string `json:"address,omitempty"` // Remote store base URL.
}

// DefaultConfig returns the default store configuration (in-memory).
func DefaultConfig() Config {
	return Config{Type: TypeMemory}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Type != "" {
		c.Type = source.Type
	}
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.Address != "" {
		c.Address = source.Address
	}
}

// NewStore creates a local Store for def from configuration.
func NewStore(cfg *Config, def record.Definition) (Store, error) {
	switch cfg.Type {
	case "", TypeMemory:
		return NewMemoryStore(def), nil
	case TypeFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: file store requires a path", ErrInvalidConfig)
		}
		return NewFileStore(def, cfg.Path), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}
