package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/google/pprof/profile"
	"github.com/spf13/cobra"
)

// newProfileCmd prints a flat, top-N summary of a CPU or heap profile —
// one captured by this binary's own --pprof/SIGUSR1 handler, or read
// back from the D_STAT-adjacent D_PROF device — without requiring the
// caller to have `go tool pprof` on hand. Grounded on
// github.com/google/pprof/profile's own Parse entry point, the same
// lightweight subpackage the standard toolchain vendors independently
// of pprof's web UI.
func newProfileCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "profile <file>",
		Short: "Print a flat top-N summary of a captured CPU or heap profile.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printProfileSummary(args[0], top)
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of functions to list")
	return cmd
}

func printProfileSummary(path string, top int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening profile %q: %w", path, err)
	}
	defer f.Close()

	prof, err := profile.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing profile %q: %w", path, err)
	}

	totals := make(map[string]int64)
	for _, s := range prof.Sample {
		if len(s.Value) == 0 || len(s.Location) == 0 {
			continue
		}
		loc := s.Location[0]
		if len(loc.Line) == 0 || loc.Line[0].Function == nil {
			continue
		}
		totals[loc.Line[0].Function.Name] += s.Value[0]
	}

	type row struct {
		name  string
		value int64
	}
	rows := make([]row, 0, len(totals))
	for name, v := range totals {
		rows = append(rows, row{name, v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].value > rows[j].value })

	if top > len(rows) {
		top = len(rows)
	}
	for _, r := range rows[:top] {
		fmt.Printf("%12d  %s\n", r.value, r.name)
	}
	return nil
}
