// bench-hibernation measures heap memory before and after Hibernate() calls
// on a store filled with synthetic buckets.
//
// Usage:
//
//	go run ./scripts/bench-hibernation --buckets 64 --keys 200000 --shards 8 \
//	  --profile-dir docs/profiles/hibernation
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/rbmap/internal/kvstore"
	"github.com/Sumatoshi-tech/rbmap/pkg/units"
)

type heapSnapshot struct {
	label     string
	heapInUse uint64
	heapSys   uint64
	heapIdle  uint64
}

func main() {
	buckets := flag.Int("buckets", 16, "Number of buckets")
	keys := flag.Int("keys", 100000, "Total number of keys")
	shards := flag.Int("shards", 4, "Arena shards")
	cycles := flag.Int("cycles", 2, "Hibernate/boot cycles")
	profileDir := flag.String("profile-dir", "", "Directory to write heap profiles (optional)")

	flag.Parse()

	if *buckets <= 0 || *keys <= 0 {
		log.Fatal("--buckets and --keys must be positive")
	}

	if *profileDir != "" {
		if err := os.MkdirAll(*profileDir, 0o750); err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}
	}

	ctx := context.Background()

	store, err := kvstore.New(kvstore.Options{Shards: *shards})
	if err != nil {
		log.Fatalf("create store: %v", err)
	}
	defer store.Close()

	var snapshots []heapSnapshot

	takeSnapshot := func(label string) {
		runtime.GC()
		runtime.GC()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		snapshots = append(snapshots, heapSnapshot{
			label:     label,
			heapInUse: m.HeapInuse,
			heapSys:   m.HeapSys,
			heapIdle:  m.HeapIdle,
		})
		log.Printf("  [heap] %-32s inuse=%s", label, humanize.Bytes(m.HeapInuse))
	}

	writeHeapProfile := func(name string) {
		if *profileDir == "" {
			return
		}

		runtime.GC()

		path := filepath.Join(*profileDir, name)

		f, ferr := os.Create(path)
		if ferr != nil {
			log.Printf("warning: create heap profile %s: %v", path, ferr)

			return
		}
		defer f.Close()

		if perr := pprof.WriteHeapProfile(f); perr != nil {
			log.Printf("warning: write heap profile %s: %v", path, perr)
		}
	}

	takeSnapshot("empty")

	for idx := range *keys {
		bucket := fmt.Sprintf("bucket-%03d", idx%*buckets)
		if _, perr := store.Put(ctx, bucket, fmt.Sprintf("key-%09d", idx), "value"); perr != nil {
			log.Fatalf("put: %v", perr)
		}
	}

	log.Printf("loaded %s keys into %d buckets", humanize.Comma(int64(*keys)), *buckets)

	for cycle := 1; cycle <= *cycles; cycle++ {
		takeSnapshot(fmt.Sprintf("cycle_%d_before_hibernate", cycle))
		writeHeapProfile(fmt.Sprintf("heap_cycle_%d_before_hibernate.prof", cycle))

		store.Hibernate(ctx)

		takeSnapshot(fmt.Sprintf("cycle_%d_after_hibernate", cycle))
		writeHeapProfile(fmt.Sprintf("heap_cycle_%d_after_hibernate.prof", cycle))

		store.Boot(ctx)

		takeSnapshot(fmt.Sprintf("cycle_%d_after_boot", cycle))
	}

	if err := store.Validate(); err != nil {
		log.Fatalf("validate after boot: %v", err)
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Phase", "InUse", "Sys", "Idle"})

	for _, s := range snapshots {
		tbl.AppendRow(table.Row{s.label, humanize.Bytes(s.heapInUse), humanize.Bytes(s.heapSys), humanize.Bytes(s.heapIdle)})
	}

	fmt.Println()
	fmt.Println(tbl.Render())

	fmt.Println()
	fmt.Println("=== Hibernation Memory Deltas ===")

	for i := 0; i+1 < len(snapshots); i++ {
		curr, next := snapshots[i], snapshots[i+1]

		if strings.HasSuffix(curr.label, "before_hibernate") && strings.HasSuffix(next.label, "after_hibernate") {
			delta := float64(curr.heapInUse) - float64(next.heapInUse)
			pct := (delta / float64(curr.heapInUse)) * 100
			fmt.Printf("  %s -> %s: %.1f MiB freed (%.1f%%)\n", curr.label, next.label, delta/units.MiB, pct)
		}
	}
}
