package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbmap/pkg/config"
	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
)

// testEnvironment builds an environment whose snapshots live in dir.
func testEnvironment(t *testing.T, dir, extraConfig string) *environment {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "rbmap.yaml")
	content := "storage:\n  directory: " + dir + "\n" + extraConfig
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	env, err := newEnvironment(cfg, observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { env.shutdown(context.Background()) })

	return env
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestRootCommand(t *testing.T) {
	t.Parallel()

	root := NewRootCommand()

	names := make([]string, 0, len(root.Commands()))
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}

	assert.ElementsMatch(t, []string{"run", "dump", "serve", "version"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	root := NewRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "rbmap ")
	assert.Contains(t, out.String(), "commit:")
}
