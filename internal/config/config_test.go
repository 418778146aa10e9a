package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "CSV_Data", cfg.Source.Dir)
	assert.Empty(t, cfg.Source.LayoutFile)
	assert.Equal(t, ',', cfg.Source.DelimiterRune())
	assert.Zero(t, cfg.Source.CommentRune())
	assert.False(t, cfg.Source.LazyQuotes)
	assert.False(t, cfg.Source.TrimSpace)
	assert.Equal(t, "json_data", cfg.Output.Dir)
	assert.Equal(t, "json_data/split", cfg.Output.SplitDir)
	assert.Equal(t, "json_clean_split", cfg.Output.PartitionDir)
	assert.Equal(t, "airport_data", cfg.Output.Prefix)
	assert.Equal(t, "filenames.json", cfg.Output.Manifest)
	assert.True(t, cfg.Output.Prune)
	assert.False(t, cfg.Output.GeoJSON)
	assert.Equal(t, 75, cfg.Partition.MaxUnitKB)
	assert.Equal(t, 75*1024, cfg.Partition.MaxUnitBytes())
	assert.Contains(t, cfg.Fetch.URL, "{date}")
	assert.Equal(t, 300, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
source:
  dir: /data/nasr
  charset: windows-1252
  delimiter: "|"
  lazy_quotes: true
partition:
  max_unit_kb: 40
output:
  prefix: codes
  geojson: true
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/nasr", cfg.Source.Dir)
	assert.Equal(t, "windows-1252", cfg.Source.Charset)
	assert.Equal(t, '|', cfg.Source.DelimiterRune())
	assert.True(t, cfg.Source.LazyQuotes)
	assert.Equal(t, 40, cfg.Partition.MaxUnitKB)
	assert.Equal(t, "codes", cfg.Output.Prefix)
	assert.True(t, cfg.Output.GeoJSON)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, "json_clean_split", cfg.Output.PartitionDir)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
partition:
  max_unit_kb: 40
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("AEROCODES_PARTITION_MAX_UNIT_KB", "120")
	t.Setenv("AEROCODES_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, 120, cfg.Partition.MaxUnitKB)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("source: [unterminated"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Source.Dir = "CSV_Data"
	cfg.Output.Dir = "json_data"
	cfg.Output.SplitDir = "json_data/split"
	cfg.Output.PartitionDir = "json_clean_split"
	cfg.Output.Prefix = "airport_data"
	cfg.Output.Manifest = "filenames.json"
	cfg.Partition.MaxUnitKB = 75
	cfg.Fetch.URL = "https://example.com/{date}_CSV.zip"
	cfg.Store.Driver = "none"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateBuild_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("build"))
}

func TestValidateBuild_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Source.Dir = ""
	cfg.Output.Prefix = ""
	cfg.Partition.MaxUnitKB = 0

	err := cfg.Validate("build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.dir is required")
	assert.Contains(t, err.Error(), "output.prefix is required")
	assert.Contains(t, err.Error(), "partition.max_unit_kb must be > 0")
}

func TestValidateBuild_StoreNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"

	err := cfg.Validate("build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "runs.db"
	assert.NoError(t, cfg.Validate("build"))
}

func TestValidateBuild_SourceCSV(t *testing.T) {
	tests := []struct {
		name      string
		delimiter string
		comment   string
		wantErr   string
	}{
		{"defaults", "", "", ""},
		{"pipe and hash", "|", "#", ""},
		{"tab", "\t", "", ""},
		{"two characters", "||", "", `source.delimiter "||"`},
		{"quote", `"`, "", "source.delimiter"},
		{"newline comment", ",", "\n", "source.comment"},
		{"invalid utf-8", "\xff", "", "source.delimiter"},
		{"comment equals delimiter", ";", ";", "must differ from source.delimiter"},
		{"comment equals default delimiter", "", ",", "must differ from source.delimiter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			cfg.Source.Delimiter = tt.delimiter
			cfg.Source.Comment = tt.comment
			err := cfg.Validate("build")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSourceConfig_Runes(t *testing.T) {
	s := SourceConfig{Delimiter: "|", Comment: "#"}
	assert.Equal(t, '|', s.DelimiterRune())
	assert.Equal(t, '#', s.CommentRune())
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql"`)
}

func TestValidateFetch(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("fetch"))

	cfg.Fetch.URL = ""
	err := cfg.Validate("fetch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch.url is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateRuns_RequiresStore(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")

	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/aerocodes"
	assert.NoError(t, cfg.Validate("runs"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
