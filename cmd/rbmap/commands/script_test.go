package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScript(t *testing.T) {
	t.Parallel()

	jsonScript := `{
  "bucket": "users",
  "steps": [
    {"op": "insert", "key": "alice", "value": "admin"},
    {"op": "range", "prefix": "a", "limit": 10},
    {"op": "get", "key": "bob", "bucket": "other"}
  ]
}`

	yamlScript := `
bucket: users
steps:
  - {op: insert, key: alice, value: admin}
  - {op: range, prefix: a, limit: 10}
  - {op: get, key: bob, bucket: other}
`

	for name, tc := range map[string]struct {
		data   string
		asYAML bool
	}{
		"json": {jsonScript, false},
		"yaml": {yamlScript, true},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			script, err := parseScript([]byte(tc.data), tc.asYAML)
			require.NoError(t, err)
			require.Len(t, script.Steps, 3)

			assert.Equal(t, Step{Op: stepInsert, Key: "alice", Value: "admin"}, script.Steps[0])
			assert.Equal(t, 10, script.Steps[1].Limit)
			assert.Equal(t, "users", script.bucketFor(script.Steps[0]))
			assert.Equal(t, "other", script.bucketFor(script.Steps[2]))
		})
	}
}

func TestParseScriptRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   string
		asYAML bool
		want   string
	}{
		{"not json", `{"steps": [`, false, ""},
		{"missing steps", `{"bucket": "b"}`, false, "steps"},
		{"unknown op", `{"steps": [{"op": "upsert", "key": "k"}]}`, false, "steps.0.op"},
		{"put without value", `{"steps": [{"op": "put", "key": "k"}]}`, false, "value"},
		{"delete without key", `{"steps": [{"op": "delete"}]}`, false, "key"},
		{"unknown field", `{"steps": [{"op": "validate", "ttl": 5}]}`, false, "ttl"},
		{"negative limit", `{"steps": [{"op": "range", "limit": -1}]}`, false, "limit"},
		{"empty bucket", `{"bucket": "", "steps": []}`, false, "bucket"},
		{"yaml number value", "steps:\n  - {op: put, key: k, value: 42}\n", true, "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := parseScript([]byte(tt.data), tt.asYAML)
			require.ErrorIs(t, err, ErrInvalidScript)

			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestBucketForDefault(t *testing.T) {
	t.Parallel()

	script := &Script{}
	assert.Equal(t, defaultBucket, script.bucketFor(Step{Op: stepGet}))
}

func TestIsYAML(t *testing.T) {
	t.Parallel()

	assert.True(t, isYAML("a/b.yaml"))
	assert.True(t, isYAML("B.YML"))
	assert.False(t, isYAML("script.json"))
	assert.False(t, isYAML("script"))
}
