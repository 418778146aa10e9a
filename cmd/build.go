package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sells-group/aerocodes/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the JSON code files from the NASR tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if dir, _ := cmd.Flags().GetString("source-dir"); dir != "" {
			cfg.Source.Dir = dir
		}
		if kb, _ := cmd.Flags().GetInt("max-kb"); kb > 0 {
			cfg.Partition.MaxUnitKB = kb
		}
		if cmd.Flags().Changed("geojson") {
			cfg.Output.GeoJSON, _ = cmd.Flags().GetBool("geojson")
		}
		if noPrune, _ := cmd.Flags().GetBool("no-prune"); noPrune {
			cfg.Output.Prune = false
		}

		if err := cfg.Validate("build"); err != nil {
			return err
		}

		layouts, err := initLayouts()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := pipeline.New(pipeline.OptionsFromConfig(cfg, layouts), st, afero.NewOsFs())
		res, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "build")
		}

		formatBuildSummary(os.Stdout, res)
		return nil
	},
}

func init() {
	buildCmd.Flags().String("source-dir", "", "directory holding the NASR tables (default from config)")
	buildCmd.Flags().Int("max-kb", 0, "partition size budget in KB (default from config)")
	buildCmd.Flags().Bool("geojson", false, "also write a GeoJSON feature collection")
	buildCmd.Flags().Bool("no-prune", false, "keep stale split and partition files")
	rootCmd.AddCommand(buildCmd)
}

// formatBuildSummary writes the per-source table and output counts to out.
func formatBuildSummary(out io.Writer, res *pipeline.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tFILE\tROWS\tACCEPTED\tREJECTED\tERROR")
	_, _ = fmt.Fprintln(w, "----\t----\t----\t--------\t--------\t-----")
	for _, s := range res.Sources {
		errText := ""
		if s.Err != nil {
			errText = s.Err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", s.Kind, s.File, s.Rows, s.Accepted, s.Rejected, errText)
	}
	_ = w.Flush()

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "\nCodes:\t%d\n", res.Codes)
	_, _ = fmt.Fprintf(w, "Aggregate:\t%s\n", res.AggregateFile)
	_, _ = fmt.Fprintf(w, "Split files:\t%d\n", len(res.SplitFiles))
	_, _ = fmt.Fprintf(w, "Partition units:\t%d\n", len(res.Units))
	_, _ = fmt.Fprintf(w, "Manifest:\t%s\n", res.ManifestFile)
	if res.GeoJSONFile != "" {
		_, _ = fmt.Fprintf(w, "GeoJSON:\t%s\n", res.GeoJSONFile)
	}
	if len(res.Pruned) > 0 {
		_, _ = fmt.Fprintf(w, "Pruned:\t%d\n", len(res.Pruned))
	}
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", res.Duration.Round(time.Millisecond))
	_ = w.Flush()
}
