package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/db-inlee/paper-digest-agent/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Parser   ParserConfig   `yaml:"parser" mapstructure:"parser"`
	Arxiv    ArxivConfig    `yaml:"arxiv" mapstructure:"arxiv"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Store    store.Config   `yaml:"store" mapstructure:"store"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// LLMConfig holds inference provider settings.
type LLMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // anthropic or openai
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
}

// ParserConfig holds the PDF parsing service settings.
type ParserConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ArxivConfig configures the arXiv metadata client.
type ArxivConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PipelineConfig configures deep-analysis behavior.
type PipelineConfig struct {
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`       // correction-loop bound
	StageAttempts int    `yaml:"stage_attempts" mapstructure:"stage_attempts"` // transient retry bound per stage
	Concurrency   int    `yaml:"concurrency" mapstructure:"concurrency"`
	PromptFile    string `yaml:"prompt_file" mapstructure:"prompt_file"`
}

// DataConfig configures where artifacts live on disk.
type DataConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("DIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Empty defaults register keys so AutomaticEnv picks them up.
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("parser.base_url", "")
	v.SetDefault("pipeline.prompt_file", "")
	v.SetDefault("parser.timeout_secs", 120)
	v.SetDefault("arxiv.base_url", "https://export.arxiv.org/api/query")
	v.SetDefault("pipeline.max_retries", 2)
	v.SetDefault("pipeline.stage_attempts", 3)
	v.SetDefault("pipeline.concurrency", 3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "data/jobs.db")
	v.SetDefault("data.dir", "data")
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
