package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/internal/kvstore"
	"github.com/Sumatoshi-tech/rbmap/pkg/persist"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
	"github.com/Sumatoshi-tech/rbmap/pkg/safeconv"
)

// NewDumpCommand creates the dump subcommand.
func NewDumpCommand() *cobra.Command {
	var level int

	cmd := &cobra.Command{
		Use:   "dump <snapshot>",
		Short: "Inspect a snapshot file",
		Long: `Rebuild every bucket of a snapshot, check its red-black invariants and
print its shape. The codec is picked from the file name: .json, .gob, .yaml,
optionally followed by .lz4.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd.OutOrStdout(), args[0], level)
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "also print every bucket at this detail level (1-3)")

	return cmd
}

func runDump(out io.Writer, path string, level int) error {
	codec, err := persist.CodecForPath(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	var snap kvstore.Snapshot

	err = persist.LoadFile(path, codec, &snap)
	if err != nil {
		return err
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Bucket", "Keys", "Height", "Black height", "Min", "Max", "Valid"})

	total := 0
	invalid := 0

	var details strings.Builder

	for _, bucket := range snap.Buckets {
		tree := rbtree.NewOrdered[string, string]()

		err = tree.Restore(bucket.Entries)
		if err != nil {
			return fmt.Errorf("bucket %q: %w", bucket.Name, err)
		}

		valid := "yes"

		validateErr := tree.Validate()
		if validateErr != nil {
			valid = validateErr.Error()
			invalid++
		}

		minKey, _, _ := tree.Min()
		maxKey, _, _ := tree.Max()

		tbl.AppendRow(table.Row{bucket.Name, tree.Len(), tree.Height(), tree.BlackHeight(), minKey, maxKey, valid})

		total += tree.Len()

		if level > 0 {
			fmt.Fprintf(&details, "[%s] %s\n", bucket.Name, tree.Describe(level))
		}
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("%d buckets", len(snap.Buckets)), total})

	fmt.Fprintf(out, "%s: %s, codec %s\n", path,
		humanize.Bytes(safeconv.MustInt64ToUint64(info.Size())), strings.TrimPrefix(codec.Extension(), "."))
	fmt.Fprintln(out, tbl.Render())
	fmt.Fprint(out, details.String())

	if invalid > 0 {
		color.New(color.FgRed).Fprintf(out, "%d buckets violate the red-black invariants\n", invalid)
	}

	return nil
}
