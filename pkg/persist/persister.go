package persist

import (
	"context"
	"fmt"
)

// Persister handles I/O for a specific state type using a Codec.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister creates a persister with the given basename and codec.
func NewPersister[T any](basename string, codec Codec) *Persister[T] {
	return &Persister[T]{
		basename: basename,
		codec:    codec,
	}
}

// Path returns the file the persister reads and writes inside dir.
func (p *Persister[T]) Path(dir string) string {
	return StatePath(dir, p.basename, p.codec)
}

// Save writes state to the given directory using the provided build function.
// The context is checked before any I/O starts.
func (p *Persister[T]) Save(ctx context.Context, dir string, buildState func() *T) error {
	err := ctx.Err()
	if err != nil {
		return fmt.Errorf("save %s: %w", p.basename, err)
	}

	return SaveState(dir, p.basename, p.codec, buildState())
}

// Load restores state from the given directory using the provided restore function.
func (p *Persister[T]) Load(ctx context.Context, dir string, restoreState func(*T) error) error {
	err := ctx.Err()
	if err != nil {
		return fmt.Errorf("load %s: %w", p.basename, err)
	}

	var state T

	err = LoadState(dir, p.basename, p.codec, &state)
	if err != nil {
		return err
	}

	return restoreState(&state)
}
