package commands

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// defaultBucket is used by steps when neither the step nor the script names one.
const defaultBucket = "default"

// Script step operations.
const (
	stepInsert   = "insert"
	stepPut      = "put"
	stepGet      = "get"
	stepDelete   = "delete"
	stepRange    = "range"
	stepDrop     = "drop"
	stepValidate = "validate"
)

//go:embed script.schema.json
var scriptSchema []byte

// ErrInvalidScript is returned when a script does not match the schema.
var ErrInvalidScript = errors.New("invalid script")

// Script is a list of operations run in order against a store.
type Script struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Steps  []Step `json:"steps"  yaml:"steps"`
}

// Step is one operation of a Script.
type Step struct {
	Op     string `json:"op"               yaml:"op"`
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Key    string `json:"key,omitempty"    yaml:"key,omitempty"`
	Value  string `json:"value,omitempty"  yaml:"value,omitempty"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Limit  int    `json:"limit,omitempty"  yaml:"limit,omitempty"`
}

// bucketFor resolves the bucket of step.
func (s *Script) bucketFor(step Step) string {
	switch {
	case step.Bucket != "":
		return step.Bucket
	case s.Bucket != "":
		return s.Bucket
	default:
		return defaultBucket
	}
}

// loadScript reads path as YAML when its extension is .yaml or .yml and as
// JSON otherwise, then validates it against the embedded schema.
func loadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	return parseScript(data, isYAML(path))
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	return ext == ".yaml" || ext == ".yml"
}

func parseScript(data []byte, asYAML bool) (*Script, error) {
	var (
		document any
		script   Script
		err      error
	)

	if asYAML {
		err = yaml.Unmarshal(data, &document)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&document)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}

	err = validateScript(document)
	if err != nil {
		return nil, err
	}

	if asYAML {
		err = yaml.Unmarshal(data, &script)
	} else {
		err = json.Unmarshal(data, &script)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}

	return &script, nil
}

func validateScript(document any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(scriptSchema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))

	for _, verr := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}

	return fmt.Errorf("%w: %s", ErrInvalidScript, strings.Join(problems, "; "))
}
