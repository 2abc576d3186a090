package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Family     []string         `yaml:"family" mapstructure:"family"`
	HSA        HSAConfig        `yaml:"hsa" mapstructure:"hsa"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Inbox      InboxConfig      `yaml:"inbox" mapstructure:"inbox"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// HSAConfig holds the account eligibility parameters. The family list order
// is load-bearing: position 0 is the primary holder, 1 the spouse, and the
// rest dependents, matching positional role tokens in payer exports.
type HSAConfig struct {
	StartDate string  `yaml:"start_date" mapstructure:"start_date"`
	OOPMax    float64 `yaml:"oop_max" mapstructure:"oop_max"`
}

// StoreConfig configures the ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sheet, sqlite, postgres
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds vision extraction API settings.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMin float64 `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	SkillsFile     string  `yaml:"skills_file" mapstructure:"skills_file"`
}

// ProcessingConfig holds extraction confidence thresholds.
type ProcessingConfig struct {
	AutoThreshold   float64 `yaml:"auto_threshold" mapstructure:"auto_threshold"`
	ReviewThreshold float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
}

// InboxConfig configures the inbox directory watcher.
type InboxConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
}

// ServerConfig configures the read-only reporting server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HSA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("hsa.start_date", "2026-01-01")
	v.SetDefault("hsa.oop_max", 6000)
	v.SetDefault("store.driver", "sheet")
	v.SetDefault("store.path", "hsa_ledger.csv")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.requests_per_min", 20)
	v.SetDefault("processing.auto_threshold", 0.85)
	v.SetDefault("processing.review_threshold", 0.70)
	v.SetDefault("inbox.dir", "inbox")
	v.SetDefault("inbox.schedule", "@every 60s")
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces startup preconditions. Violations here are fatal:
// no document may be touched under a broken family list or eligibility date.
func (c *Config) Validate() error {
	if len(c.Family) == 0 {
		return eris.New("config: family member list is required (position 0 is the primary holder)")
	}
	for i, name := range c.Family {
		if strings.TrimSpace(name) == "" {
			return eris.Errorf("config: family member %d is blank", i)
		}
	}
	if _, err := time.Parse("2006-01-02", c.HSA.StartDate); err != nil {
		return eris.Wrapf(err, "config: hsa.start_date %q is not YYYY-MM-DD", c.HSA.StartDate)
	}
	if c.HSA.OOPMax <= 0 {
		return eris.Errorf("config: hsa.oop_max must be positive, got %v", c.HSA.OOPMax)
	}
	switch c.Store.Driver {
	case "sheet", "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// StartTime returns the parsed HSA eligibility start date. Validate has
// already established that it parses.
func (c *Config) StartTime() time.Time {
	t, _ := time.Parse("2006-01-02", c.HSA.StartDate)
	return t
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
