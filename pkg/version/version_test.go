package version //nolint:testpackage // tests reset package state.

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillFromBuildInfo(t *testing.T) {
	Version, Commit, Date = "dev", unknown, unknown

	t.Cleanup(func() { Version, Commit, Date = "dev", unknown, unknown })

	fillFromBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "GOOS", Value: "linux"},
		},
	})

	assert.Equal(t, "v1.4.0", Version)
	assert.Equal(t, "abc123", Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", Date)
	assert.Equal(t, "rbmap v1.4.0 (commit: abc123, built: 2026-01-02T03:04:05Z)", String())
}

func TestFillKeepsLinkerValues(t *testing.T) {
	Version, Commit, Date = "v2.0.0", "linked", unknown

	t.Cleanup(func() { Version, Commit, Date = "dev", unknown, unknown })

	fillFromBuildInfo(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "other"}},
	})

	assert.Equal(t, "v2.0.0", Version)
	assert.Equal(t, "linked", Commit)
	assert.Equal(t, unknown, Date)
}
