package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/aerocodes/internal/fetcher"
	"github.com/sells-group/aerocodes/internal/nasr"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the current NASR CSV bundle into the source directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if u, _ := cmd.Flags().GetString("url"); u != "" {
			cfg.Fetch.URL = u
		}
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		date, _ := cmd.Flags().GetString("date")
		cycle, err := resolveCycle(date, time.Now())
		if err != nil {
			return err
		}

		layouts, err := initLayouts()
		if err != nil {
			return err
		}

		url := nasr.BundleURL(cfg.Fetch.URL, cycle)
		timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
		f, err := fetcher.ForURL(url,
			fetcher.HTTPOptions{UserAgent: cfg.Fetch.UserAgent, Timeout: timeout},
			fetcher.FTPOptions{Timeout: timeout},
		)
		if err != nil {
			return eris.Wrap(err, "fetch")
		}

		res, err := nasr.FetchBundle(ctx, f, url, cfg.Fetch.TempDir, cfg.Source.Dir, layouts)
		if err != nil {
			return eris.Wrap(err, "fetch")
		}

		fmt.Fprintf(os.Stdout, "Cycle %s: %d bytes, %d tables extracted to %s\n",
			cycle.Format("2006-01-02"), res.Bytes, len(res.Files), cfg.Source.Dir)
		for _, name := range res.Missing {
			fmt.Fprintf(os.Stdout, "  missing: %s\n", name)
		}
		return nil
	},
}

// resolveCycle returns the cycle effective on date (YYYY-MM-DD), or on now
// when date is empty.
func resolveCycle(date string, now time.Time) (time.Time, error) {
	if date == "" {
		return nasr.CycleDate(now), nil
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "fetch: parse --date %q", date)
	}
	return nasr.CycleDate(t), nil
}

func init() {
	fetchCmd.Flags().String("date", "", "fetch the cycle effective on this date, YYYY-MM-DD (default today)")
	fetchCmd.Flags().String("url", "", "bundle URL template, {date} is replaced by the cycle date (default from config)")
	rootCmd.AddCommand(fetchCmd)
}
