package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/aerocodes/internal/config"
)

// version is stamped at link time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfg      *config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:          "aerocodes",
	Short:        "Build code-keyed JSON lookup files from FAA NASR tables",
	Long:         "Reads the NASR airport, fix and navaid tables and writes an aggregate JSON file, per-character split files and size-bounded partition files with a manifest.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "aerocodes: load config")
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		if err := config.InitLogger(loaded.Log); err != nil {
			return eris.Wrap(err, "aerocodes: init logger")
		}
		cfg = loaded

		zap.L().Debug("aerocodes: config loaded",
			zap.String("version", version),
			zap.String("source_dir", cfg.Source.Dir),
			zap.String("store", cfg.Store.Driver),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
