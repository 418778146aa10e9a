package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/aerocodes/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"build", "fetch", "lookup", "serve", "runs", "layouts"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "aerocodes", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Equal(t, version, rootCmd.Version)

	flag := rootCmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}

func TestBuildCommand_Flags(t *testing.T) {
	for _, name := range []string{"source-dir", "max-kb", "geojson", "no-prune"} {
		assert.NotNil(t, buildCmd.Flags().Lookup(name), "build should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_Flags(t *testing.T) {
	flag := runsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}

func TestInitLayouts(t *testing.T) {
	cfg = &config.Config{}
	layouts, err := initLayouts()
	require.NoError(t, err)
	assert.Len(t, layouts, 3)

	path := filepath.Join(t.TempDir(), "layouts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"sources:",
		"  - kind: fix",
		"    file: FIX_BASE.csv",
		"    lat: 9",
		"    lon: 14",
	}, "\n")), 0o644))
	cfg.Source.LayoutFile = path

	layouts, err = initLayouts()
	require.NoError(t, err)
	require.Len(t, layouts, 1)
	assert.Equal(t, "FIX_BASE.csv", layouts[0].File)

	cfg.Source.LayoutFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = initLayouts()
	assert.Error(t, err)
}
