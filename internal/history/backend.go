package history

import (
	"context"
	"errors"
	"fmt"
)

// Backend names accepted by NewBackend.
const (
	BackendJSON     = "json"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// ErrUnknownBackend is returned for a backend name NewBackend does not know.
var ErrUnknownBackend = errors.New("unknown history backend")

// Options selects and locates a Backend.
type Options struct {
	Backend     string
	Path        string
	BoltPath    string
	DatabaseURL string
}

// NewBackend builds the backend named by opts.Backend. An empty name means JSON.
func NewBackend(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case "", BackendJSON:
		return NewFileBackend(opts.Path), nil
	case BackendBolt:
		b, err := NewBoltBackend(opts.BoltPath)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, errors.New("postgres history backend: database URL is empty")
		}
		b, err := NewPostgresBackend(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
}
