package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Partition PartitionConfig `yaml:"partition" mapstructure:"partition"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SourceConfig locates the NASR tables and describes how to read them.
type SourceConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	LayoutFile string `yaml:"layout_file" mapstructure:"layout_file"`
	Charset    string `yaml:"charset" mapstructure:"charset"`
	// Delimiter and Comment are single characters. An empty Comment
	// disables comment lines.
	Delimiter  string `yaml:"delimiter" mapstructure:"delimiter"`
	Comment    string `yaml:"comment" mapstructure:"comment"`
	LazyQuotes bool   `yaml:"lazy_quotes" mapstructure:"lazy_quotes"`
	TrimSpace  bool   `yaml:"trim_space" mapstructure:"trim_space"`
}

// DelimiterRune returns the configured field separator, ',' when unset.
func (s SourceConfig) DelimiterRune() rune {
	if s.Delimiter == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(s.Delimiter)
	return r
}

// CommentRune returns the configured comment character, or 0.
func (s SourceConfig) CommentRune() rune {
	if s.Comment == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.Comment)
	return r
}

func (s SourceConfig) csvErrors() []string {
	var errs []string
	okDelim := validCSVRune(s.Delimiter)
	if !okDelim {
		errs = append(errs, fmt.Sprintf("source.delimiter %q must be one character other than a quote or line break", s.Delimiter))
	}
	if !validCSVRune(s.Comment) {
		errs = append(errs, fmt.Sprintf("source.comment %q must be one character other than a quote or line break", s.Comment))
	} else if okDelim && s.Comment != "" && s.CommentRune() == s.DelimiterRune() {
		errs = append(errs, "source.comment must differ from source.delimiter")
	}
	return errs
}

// validCSVRune accepts "" or one valid character that encoding/csv allows
// as a separator.
func validCSVRune(v string) bool {
	if v == "" {
		return true
	}
	return utf8.ValidString(v) && utf8.RuneCountInString(v) == 1 && !strings.ContainsAny(v, "\"\r\n")
}

// OutputConfig controls where and how the JSON files are written.
type OutputConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	SplitDir     string `yaml:"split_dir" mapstructure:"split_dir"`
	PartitionDir string `yaml:"partition_dir" mapstructure:"partition_dir"`
	Prefix       string `yaml:"prefix" mapstructure:"prefix"`
	Manifest     string `yaml:"manifest" mapstructure:"manifest"`
	Prune        bool   `yaml:"prune" mapstructure:"prune"`
	GeoJSON      bool   `yaml:"geojson" mapstructure:"geojson"`
}

// PartitionConfig bounds the size of each partition file.
type PartitionConfig struct {
	MaxUnitKB int `yaml:"max_unit_kb" mapstructure:"max_unit_kb"`
}

// FetchConfig configures downloading the NASR CSV bundle.
type FetchConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// StoreConfig configures the run log backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the lookup server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MaxUnitBytes returns the partition budget in bytes.
func (p PartitionConfig) MaxUnitBytes() int {
	return p.MaxUnitKB * 1024
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AEROCODES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.dir", "CSV_Data")
	v.SetDefault("source.layout_file", "")
	v.SetDefault("source.charset", "")
	v.SetDefault("source.delimiter", ",")
	v.SetDefault("source.comment", "")
	v.SetDefault("source.lazy_quotes", false)
	v.SetDefault("source.trim_space", false)
	v.SetDefault("output.dir", "json_data")
	v.SetDefault("output.split_dir", "json_data/split")
	v.SetDefault("output.partition_dir", "json_clean_split")
	v.SetDefault("output.prefix", "airport_data")
	v.SetDefault("output.manifest", "filenames.json")
	v.SetDefault("output.prune", true)
	v.SetDefault("output.geojson", false)
	v.SetDefault("partition.max_unit_kb", 75)
	v.SetDefault("fetch.url", "https://nfdc.faa.gov/webContent/28DaySub/extra/{date}_CSV.zip")
	v.SetDefault("fetch.temp_dir", "/tmp/aerocodes")
	v.SetDefault("fetch.user_agent", "aerocodes/1.0")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Mode is one of
// "build", "fetch", "lookup", "serve" or "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "none", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of none, sqlite, postgres", c.Store.Driver))
	}

	switch mode {
	case "build":
		if c.Source.Dir == "" {
			errs = append(errs, "source.dir is required")
		}
		errs = append(errs, c.Source.csvErrors()...)
		if c.Output.Prefix == "" {
			errs = append(errs, "output.prefix is required")
		}
		if c.Output.Dir == "" || c.Output.SplitDir == "" || c.Output.PartitionDir == "" {
			errs = append(errs, "output.dir, output.split_dir and output.partition_dir are required")
		}
		if c.Output.Manifest == "" {
			errs = append(errs, "output.manifest is required")
		}
		if c.Partition.MaxUnitKB <= 0 {
			errs = append(errs, "partition.max_unit_kb must be > 0")
		}
		if c.Store.Driver != "none" && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required when store.driver is set")
		}
	case "fetch":
		if c.Fetch.URL == "" {
			errs = append(errs, "fetch.url is required")
		}
		if c.Source.Dir == "" {
			errs = append(errs, "source.dir is required")
		}
	case "lookup":
		if c.Output.PartitionDir == "" {
			errs = append(errs, "output.partition_dir is required")
		}
	case "serve":
		if c.Output.PartitionDir == "" {
			errs = append(errs, "output.partition_dir is required")
		}
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "runs":
		if c.Store.Driver == "none" {
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
