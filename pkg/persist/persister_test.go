package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

// persisterState is a struct for persister round-trip testing.
type persisterState struct {
	Label   string                   `json:"label"   yaml:"label"`
	Entries []rbtree.Entry[int, int] `json:"entries" yaml:"entries"`
}

func TestPersister_SaveLoadTree(t *testing.T) {
	t.Parallel()

	for name, codec := range allCodecs() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			p := NewPersister[persisterState]("tree", codec)
			assert.Equal(t, filepath.Join(dir, "tree."+name), p.Path(dir))

			source := rbtree.NewOrdered[int, int]()
			for key := range 100 {
				require.NoError(t, source.Insert(key*7%101, key))
			}

			err := p.Save(context.Background(), dir, func() *persisterState {
				return &persisterState{Label: "ints", Entries: source.Entries()}
			})
			require.NoError(t, err)

			target := rbtree.NewOrdered[int, int]()

			err = p.Load(context.Background(), dir, func(s *persisterState) error {
				assert.Equal(t, "ints", s.Label)

				return target.Restore(s.Entries)
			})
			require.NoError(t, err)
			require.NoError(t, target.Validate())
			assert.Equal(t, source.Entries(), target.Entries())
		})
	}
}

func TestPersister_RestoreErrorPropagates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := NewPersister[persisterState]("dup", NewJSONCodec())

	err := p.Save(context.Background(), dir, func() *persisterState {
		return &persisterState{Entries: []rbtree.Entry[int, int]{{Key: 1}, {Key: 1}}}
	})
	require.NoError(t, err)

	target := rbtree.NewOrdered[int, int]()

	err = p.Load(context.Background(), dir, func(s *persisterState) error {
		return target.Restore(s.Entries)
	})
	require.ErrorIs(t, err, rbtree.ErrDuplicateKey)
}

func TestPersister_LoadMissingFile(t *testing.T) {
	t.Parallel()

	p := NewPersister[persisterState]("missing", NewJSONCodec())

	err := p.Load(context.Background(), t.TempDir(), func(_ *persisterState) error { return nil })
	assert.Error(t, err)
}

func TestPersister_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPersister[persisterState]("state", NewJSONCodec())
	built := false

	err := p.Save(ctx, t.TempDir(), func() *persisterState {
		built = true

		return &persisterState{}
	})
	require.True(t, errors.Is(err, context.Canceled))
	assert.False(t, built)

	err = p.Load(ctx, t.TempDir(), func(_ *persisterState) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestPersister_SaveInvalidDir(t *testing.T) {
	t.Parallel()

	p := NewPersister[persisterState]("state", NewJSONCodec())

	err := p.Save(context.Background(), "/nonexistent/path", func() *persisterState {
		return &persisterState{Label: "x"}
	})
	assert.Error(t, err)
}
