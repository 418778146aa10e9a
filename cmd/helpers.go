package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/aerocodes/internal/nasr"
	"github.com/sells-group/aerocodes/internal/store"
)

// initStore opens the configured run log.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// initLayouts returns the layout override file's sources, or the built-in
// layouts when none is configured.
func initLayouts() ([]nasr.Layout, error) {
	if cfg.Source.LayoutFile == "" {
		return nasr.DefaultLayouts(), nil
	}
	layouts, err := nasr.LoadLayouts(cfg.Source.LayoutFile)
	if err != nil {
		return nil, eris.Wrap(err, "init layouts")
	}
	return layouts, nil
}
