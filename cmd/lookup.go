package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sells-group/aerocodes/internal/lookup"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <code>...",
	Short: "Resolve codes against the partition files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("lookup"); err != nil {
			return err
		}

		ix, err := openLookupIndex()
		if err != nil {
			return err
		}

		missing, err := lookupCodes(cmd.Context(), os.Stdout, ix, args)
		if err != nil {
			return err
		}
		if missing > 0 {
			return eris.Errorf("lookup: %d of %d codes not found", missing, len(args))
		}
		return nil
	},
}

// openLookupIndex opens the configured build output.
func openLookupIndex() (*lookup.Index, error) {
	return lookup.Open(afero.NewOsFs(), lookupOptions())
}

func lookupOptions() lookup.Options {
	return lookup.Options{
		PartitionDir: cfg.Output.PartitionDir,
		Manifest:     cfg.Output.Manifest,
		Prefix:       cfg.Output.Prefix,
		SplitDir:     cfg.Output.SplitDir,
	}
}

// lookupCodes writes one row per code to out and returns how many were not
// found. Errors other than not-found abort.
func lookupCodes(ctx context.Context, out io.Writer, ix *lookup.Index, args []string) (int, error) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tLATITUDE\tLONGITUDE\tUNIT")

	missing := 0
	for _, code := range args {
		res, err := ix.Lookup(ctx, code)
		switch {
		case eris.Is(err, lookup.ErrNotFound):
			missing++
			_, _ = fmt.Fprintf(w, "%s\t-\t-\tnot found\n", lookup.Normalize(code))
		case err != nil:
			_ = w.Flush()
			return missing, err
		default:
			_, _ = fmt.Fprintf(w, "%s\t%g\t%g\t%s\n", res.Code, res.Latitude, res.Longitude, res.Unit)
		}
	}
	_ = w.Flush()
	return missing, nil
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
