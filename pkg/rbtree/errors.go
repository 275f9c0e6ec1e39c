package rbtree

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the tree operations. They are always wrapped in
// a *KeyError, so match them with errors.Is.
var (
	// ErrDuplicateKey is returned by Insert when the key is already present.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrKeyNotFound is returned by Remove and Update when the key is absent.
	ErrKeyNotFound = errors.New("key not found")
	// ErrTreeFull is returned by Insert when the configured maximum size is reached.
	ErrTreeFull = errors.New("tree is full")
)

// KeyError reports a failed keyed operation together with the offending key.
type KeyError struct {
	Key any
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%v: %v", e.Err, e.Key)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// InvariantError describes a broken red-black invariant. Validate returns it;
// internal assertions panic with it. A tree that produced one cannot be repaired.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("rbtree invariant %q violated: %s", e.Invariant, e.Detail)
}
