package blobstore

import (
	"strings"
)

// KeyBuilder maps logical blob paths onto bucket keys. It exists so one
// bucket can host several key namespaces (for example a staging prefix).
type KeyBuilder interface {
	// BuildKey constructs the final bucket key for a blob path.
	BuildKey(path string) string

	// StripKey recovers the blob path from a bucket key.
	StripKey(key string) string
}

// NoOpKeyBuilder uses blob paths as bucket keys unchanged.
type NoOpKeyBuilder struct{}

func (*NoOpKeyBuilder) BuildKey(path string) string { return path }
func (*NoOpKeyBuilder) StripKey(key string) string  { return key }

// PrefixKeyBuilder prepends a fixed prefix to every key.
type PrefixKeyBuilder struct {
	Prefix string
}

// NewPrefixKeyBuilder creates a PrefixKeyBuilder; surrounding slashes in
// prefix are trimmed.
func NewPrefixKeyBuilder(prefix string) *PrefixKeyBuilder {
	return &PrefixKeyBuilder{Prefix: strings.Trim(prefix, "/")}
}

func (kb *PrefixKeyBuilder) BuildKey(path string) string {
	if kb.Prefix == "" {
		return path
	}
	return kb.Prefix + "/" + strings.TrimPrefix(path, "/")
}

func (kb *PrefixKeyBuilder) StripKey(key string) string {
	if kb.Prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, kb.Prefix+"/")
}

// NewKeyBuilder creates the key builder implied by the configuration.
func NewKeyBuilder(cfg *Config) KeyBuilder {
	if cfg.BasePrefix == "" {
		return &NoOpKeyBuilder{}
	}
	return NewPrefixKeyBuilder(cfg.BasePrefix)
}
