package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/internal/kvstore"
	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/safeconv"
)

const (
	runCmdUse   = "run <script.json|script.yaml>"
	runCmdShort = "Execute a script of bucket operations"

	// rangePreview caps how many keys of a range step are echoed in the table.
	rangePreview = 5
)

// ErrStepsFailed is returned in strict mode when at least one step failed.
var ErrStepsFailed = errors.New("script steps failed")

type runOptions struct {
	load     bool
	save     bool
	strict   bool
	describe int
	dir      string
	noColor  bool
}

// stepResult is one row of the run report.
type stepResult struct {
	step   Step
	bucket string
	result string
	err    error
}

// NewRunCommand creates the run subcommand.
func NewRunCommand(globals *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   runCmdUse,
		Short: runCmdShort,
		Long: `Execute a script of bucket operations and print one row per step.

A script is a JSON or YAML document:

  bucket: users            # default bucket for the steps
  steps:
    - {op: insert, key: alice, value: admin}
    - {op: put, key: bob, value: dev}
    - {op: range, prefix: a}
    - {op: delete, key: alice}
    - {op: validate}

Operations: insert, put, get, delete, range, drop, validate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := globals.setup(observability.ModeCLI)
			if err != nil {
				return err
			}

			defer env.shutdown(context.WithoutCancel(cmd.Context()))

			if opts.dir != "" {
				env.cfg.Storage.Directory = opts.dir
			}

			return runScript(cmd.Context(), cmd.OutOrStdout(), env, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.load, "load", false, "load the configured snapshot before running")
	cmd.Flags().BoolVar(&opts.save, "save", false, "save a snapshot after running")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail when any step fails")
	cmd.Flags().IntVar(&opts.describe, "describe", 0, "print every bucket at this detail level (1-3)")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "snapshot directory (overrides storage.directory)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	return cmd
}

func runScript(ctx context.Context, out io.Writer, env *environment, path string, opts *runOptions) error {
	if opts.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	script, err := loadScript(path)
	if err != nil {
		return err
	}

	store, err := env.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.load {
		err = store.Load(ctx)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
	}

	results := make([]stepResult, 0, len(script.Steps))
	failed := 0

	for _, step := range script.Steps {
		res := executeStep(ctx, store, script, step)
		if res.err != nil {
			failed++
		}

		results = append(results, res)
	}

	fmt.Fprintln(out, renderResults(results))

	err = printBuckets(out, store, opts.describe)
	if err != nil {
		return err
	}

	if opts.save {
		err = store.Save(ctx)
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}

		fmt.Fprintf(out, "Snapshot written to %s (%s)\n", store.SnapshotPath(), snapshotSize(store.SnapshotPath()))
	}

	if failed == 0 {
		color.New(color.FgGreen).Fprintf(out, "%d steps succeeded\n", len(results))

		return nil
	}

	color.New(color.FgRed).Fprintf(out, "%d of %d steps failed\n", failed, len(results))

	if opts.strict {
		return fmt.Errorf("%w: %d of %d", ErrStepsFailed, failed, len(results))
	}

	return nil
}

func executeStep(ctx context.Context, store *kvstore.Store, script *Script, step Step) stepResult {
	res := stepResult{step: step, bucket: script.bucketFor(step)}

	switch step.Op {
	case stepInsert:
		res.err = store.Insert(ctx, res.bucket, step.Key, step.Value)
		res.result = "inserted"
	case stepPut:
		var created bool

		created, res.err = store.Put(ctx, res.bucket, step.Key, step.Value)

		res.result = "replaced"
		if created {
			res.result = "created"
		}
	case stepGet:
		var (
			value string
			found bool
		)

		value, found, res.err = store.Get(ctx, res.bucket, step.Key)

		res.result = "(missing)"
		if found {
			res.result = value
		}
	case stepDelete:
		res.err = store.Delete(ctx, res.bucket, step.Key)
		res.result = "deleted"
	case stepRange:
		res.result, res.err = rangeStep(ctx, store, res.bucket, step)
	case stepDrop:
		res.err = store.DropBucket(ctx, res.bucket)
		res.result = "dropped"
	case stepValidate:
		res.err = store.Validate()
		res.result = "valid"
	}

	return res
}

func rangeStep(ctx context.Context, store *kvstore.Store, bucket string, step Step) (string, error) {
	entries, err := store.Range(ctx, bucket, step.Prefix, step.Limit)
	if err != nil {
		return "", err
	}

	keys := make([]string, 0, min(len(entries), rangePreview))

	for _, entry := range entries {
		if len(keys) == rangePreview {
			keys = append(keys, "...")

			break
		}

		keys = append(keys, entry.Key)
	}

	return fmt.Sprintf("%d entries [%s]", len(entries), strings.Join(keys, ", ")), nil
}

func renderResults(results []stepResult) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"#", "Op", "Bucket", "Key", "Result"})

	for idx, res := range results {
		key := res.step.Key
		if res.step.Op == stepRange {
			key = res.step.Prefix + "*"
		}

		outcome := res.result
		if res.err != nil {
			outcome = "error: " + res.err.Error()
		}

		tbl.AppendRow(table.Row{idx + 1, res.step.Op, res.bucket, key, outcome})
	}

	tbl.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("Total: %d steps", len(results))})

	return tbl.Render()
}

func printBuckets(out io.Writer, store *kvstore.Store, level int) error {
	infos, err := store.Buckets()
	if err != nil {
		return err
	}

	keys := 0
	for _, info := range infos {
		keys += info.Keys
	}

	fmt.Fprintf(out, "%s in %s\n",
		humanize.Comma(int64(keys))+" keys",
		humanize.Comma(int64(len(infos)))+" buckets")

	if level <= 0 {
		return nil
	}

	for _, info := range infos {
		desc, descErr := store.Describe(info.Name, level)
		if descErr != nil {
			return descErr
		}

		fmt.Fprintf(out, "[%s] %s\n", info.Name, desc)
	}

	return nil
}

func snapshotSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown size"
	}

	return humanize.Bytes(safeconv.MustInt64ToUint64(info.Size()))
}
