package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/aerocodes/internal/lookup"
)

var servePort int

// shutdownGrace bounds how long in-flight lookups may finish after a signal.
const shutdownGrace = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve code lookups over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := resolvePort(servePort, cfg.Server.Port)
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ix, err := openLookupIndex()
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           lookup.NewHandler(ix),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("serve: draining connections", zap.Duration("grace", shutdownGrace))
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				zap.L().Warn("serve: forced shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("serve: listening",
			zap.Int("port", port),
			zap.Int("units", len(ix.Manifest())),
			zap.String("partition_dir", cfg.Output.PartitionDir),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrapf(err, "serve: listen on %s", srv.Addr)
		}
		return nil
	},
}

// resolvePort prefers the --port flag over the configured port.
func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port, overriding server.port")
	rootCmd.AddCommand(serveCmd)
}
