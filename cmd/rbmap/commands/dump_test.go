package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbmap/internal/kvstore"
	"github.com/Sumatoshi-tech/rbmap/pkg/persist"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

func TestDumpSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	env := testEnvironment(t, dir, "")
	env.cfg.Storage.Codec = "gob"
	env.cfg.Storage.Compress = true

	store, err := env.openStore()
	require.NoError(t, err)

	ctx := context.Background()

	for _, key := range []string{"d", "b", "a", "c", "e"} {
		_, err = store.Put(ctx, "letters", key, "v")
		require.NoError(t, err)
	}

	require.NoError(t, store.Save(ctx))
	require.NoError(t, store.Close())

	path := filepath.Join(dir, "rbmap.gob.lz4")
	require.FileExists(t, path)

	var out bytes.Buffer

	require.NoError(t, runDump(&out, path, 2))

	report := out.String()
	assert.Contains(t, report, "codec gob.lz4")
	assert.Contains(t, report, "letters")
	assert.Contains(t, report, "yes")
	assert.Contains(t, report, "[letters] rbtree: 5 keys")
	assert.Contains(t, report, "black height")
	assert.NotContains(t, report, "violate")
}

func TestDumpRejectsBadFiles(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	require.ErrorIs(t, runDump(&out, "state.xml", 0), persist.ErrUnknownCodec)
	require.ErrorContains(t, runDump(&out, filepath.Join(t.TempDir(), "none.json"), 0), "stat snapshot")

	dir := t.TempDir()
	dup := &kvstore.Snapshot{Buckets: []kvstore.Bucket{{
		Name:    "b",
		Entries: []rbtree.Entry[string, string]{{Key: "k", Value: "1"}, {Key: "k", Value: "2"}},
	}}}
	require.NoError(t, persist.SaveState(dir, "dup", persist.NewYAMLCodec(), dup))

	require.ErrorIs(t, runDump(&out, filepath.Join(dir, "dup.yaml"), 0), rbtree.ErrDuplicateKey)
}
