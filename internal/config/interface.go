package config

import "context"

// Loader is the interface for a format-specific document loader.
type Loader interface {
	// Load reads every document source under paths and merges them into a
	// single model.
	Load(ctx context.Context, paths ...string) (*Document, error)
}
