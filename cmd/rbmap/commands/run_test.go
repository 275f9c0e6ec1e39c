package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScript = `
bucket: users
steps:
  - {op: insert, key: alice, value: admin}
  - {op: put, key: bob, value: dev}
  - {op: put, key: bob, value: ops}
  - {op: insert, key: alice, value: again}
  - {op: get, key: bob}
  - {op: get, key: carol}
  - {op: put, key: x1, value: "1", bucket: groups}
  - {op: range, prefix: ""}
  - {op: delete, key: carol}
  - {op: validate}
`

func TestRunScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	env := testEnvironment(t, dir, "")
	script := writeFile(t, "script.yaml", sampleScript)

	var out bytes.Buffer

	err := runScript(context.Background(), &out, env, script, &runOptions{save: true, describe: 1})
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "inserted")
	assert.Contains(t, report, "created")
	assert.Contains(t, report, "replaced")
	assert.Contains(t, report, "ops")
	assert.Contains(t, report, "(missing)")
	assert.Contains(t, report, "error: duplicate key: alice")
	assert.Contains(t, report, "error: key not found: carol")
	assert.Contains(t, report, "2 entries [alice, bob]")
	assert.Contains(t, report, "valid")
	assert.Contains(t, report, "3 keys in 2 buckets")
	assert.Contains(t, report, "[users] rbtree: 2 keys")
	assert.Contains(t, report, "Snapshot written to "+filepath.Join(dir, "rbmap.json"))
	assert.Contains(t, report, "2 of 10 steps failed")
	assert.FileExists(t, filepath.Join(dir, "rbmap.json"))

	// The saved snapshot is picked up by a later run.
	followUp := writeFile(t, "next.json", `{"bucket": "users", "steps": [{"op": "get", "key": "bob"}]}`)
	out.Reset()

	require.NoError(t, runScript(context.Background(), &out, env, followUp, &runOptions{load: true}))
	assert.Contains(t, out.String(), "ops")
	assert.Contains(t, out.String(), "1 steps succeeded")
}

func TestRunScriptStrict(t *testing.T) {
	t.Parallel()

	env := testEnvironment(t, t.TempDir(), "")
	script := writeFile(t, "script.json", `{"steps": [{"op": "delete", "key": "nope"}]}`)

	var out bytes.Buffer

	err := runScript(context.Background(), &out, env, script, &runOptions{strict: true})
	require.ErrorIs(t, err, ErrStepsFailed)
	assert.Contains(t, out.String(), "default")
}

func TestRunScriptMaxSize(t *testing.T) {
	t.Parallel()

	env := testEnvironment(t, t.TempDir(), "tree:\n  max_size: 1\n  self_check: true\n")
	script := writeFile(t, "script.json", `{"steps": [
		{"op": "insert", "key": "a", "value": "1"},
		{"op": "insert", "key": "b", "value": "2"},
		{"op": "drop"},
		{"op": "drop"}
	]}`)

	var out bytes.Buffer

	require.NoError(t, runScript(context.Background(), &out, env, script, &runOptions{}))
	assert.Contains(t, out.String(), "tree is full: b")
	assert.Contains(t, out.String(), "dropped")
	assert.Contains(t, out.String(), "bucket not found")
	assert.Contains(t, out.String(), "2 of 4 steps failed")
}

func TestRunScriptErrors(t *testing.T) {
	t.Parallel()

	env := testEnvironment(t, t.TempDir(), "")

	var out bytes.Buffer

	err := runScript(context.Background(), &out, env, filepath.Join(t.TempDir(), "absent.json"), &runOptions{})
	require.ErrorContains(t, err, "read script")

	invalid := writeFile(t, "bad.json", `{"steps": [{"op": "nope"}]}`)
	require.ErrorIs(t, runScript(context.Background(), &out, env, invalid, &runOptions{}), ErrInvalidScript)

	valid := writeFile(t, "ok.json", `{"steps": []}`)
	require.ErrorContains(t, runScript(context.Background(), &out, env, valid, &runOptions{load: true}), "load snapshot")
}
