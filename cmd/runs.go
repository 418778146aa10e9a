package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/aerocodes/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded build runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(cmd.Context(), limit)
		if err != nil {
			return eris.Wrap(err, "runs: list")
		}
		runs, err = filterRuns(runs, status)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs recorded.")
			return nil
		}
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "newest runs to fetch")
	runsCmd.Flags().String("status", "", "only show runs in this state (running, complete, failed)")
	runsCmd.Flags().Bool("json", false, "print runs as JSON")
	rootCmd.AddCommand(runsCmd)
}

// filterRuns keeps runs whose status equals status. Empty keeps all.
func filterRuns(runs []store.Run, status string) ([]store.Run, error) {
	if status == "" {
		return runs, nil
	}
	want := store.RunStatus(status)
	switch want {
	case store.RunStatusRunning, store.RunStatusComplete, store.RunStatusFailed:
	default:
		return nil, eris.Errorf("runs: unknown status %q", status)
	}

	kept := runs[:0:0]
	for _, r := range runs {
		if r.Status == want {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// formatRunsList prints one row per run, newest first as returned by the store.
func formatRunsList(out io.Writer, runs []store.Run) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tTOOK\tCODES\tUNITS\tSOURCES\tERROR")

	for _, r := range runs {
		took := "-"
		if r.FinishedAt != nil {
			took = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			took,
			r.Codes,
			r.Units,
			sourceSummary(r.Sources),
			truncate(r.Error, 40),
		)
	}
	_ = tw.Flush()
}

// sourceSummary renders loaded/total, e.g. "2/3".
func sourceSummary(sources []store.SourceStat) string {
	loaded := 0
	for _, s := range sources {
		if s.Error == "" {
			loaded++
		}
	}
	return fmt.Sprintf("%d/%d", loaded, len(sources))
}

// truncateID shortens a run UUID to its first group.
func truncateID(id string) string {
	return truncate(id, 8, "")
}

// truncate caps s at n bytes, ending in "..." unless a different marker is given.
func truncate(s string, n int, marker ...string) string {
	if len(s) <= n {
		return s
	}
	m := "..."
	if len(marker) > 0 {
		m = marker[0]
	}
	return s[:n-len(m)] + m
}
