// Package config loads flowedu settings from a YAML file and FLOWEDU_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/EberSantana/flowedu-sub004/internal/grading"
	"github.com/EberSantana/flowedu-sub004/internal/llm"
	"github.com/EberSantana/flowedu-sub004/internal/logging"
	"github.com/EberSantana/flowedu-sub004/internal/spacedrep"
	"github.com/EberSantana/flowedu-sub004/internal/wallet"
)

const envPrefix = "FLOWEDU"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	LLM       llm.Config      `mapstructure:"llm"`
	Grading   grading.Config  `mapstructure:"grading"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Wallet    wallet.Config   `mapstructure:"wallet"`
	Log       logging.Config  `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`

	// SessionTTL drops open review sessions idle for longer. Zero keeps
	// them until they are recorded.
	SessionTTL time.Duration `mapstructure:"session_ttl" validate:"gte=0"`
}

type StoreConfig struct {
	// Path of the SQLite file. Empty resolves to FLOWEDU_DB or the XDG
	// data directory.
	Path string `mapstructure:"path"`
}

// SchedulerConfig wraps the review algorithm parameters with the time zone
// used for calendar-day boundaries.
type SchedulerConfig struct {
	spacedrep.Params `mapstructure:",squash"`

	TimeZone string `mapstructure:"time_zone" validate:"required,timezone"`
}

// Default returns the configuration used when no file or env overrides
// are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			SessionTTL:      30 * time.Minute,
		},
		Store:     StoreConfig{},
		LLM:       llm.DefaultConfig(),
		Grading:   grading.DefaultConfig(),
		Scheduler: SchedulerConfig{Params: spacedrep.DefaultParams(), TimeZone: "UTC"},
		Wallet:    wallet.DefaultConfig(),
		Log:       logging.DefaultConfig(),
	}
}

// Load reads configFile (or config.yaml from the working directory and
// $HOME/.config/flowedu when empty), applies FLOWEDU_* overrides and
// validates the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/flowedu")
	}

	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The wallet token is a credential and only comes from the environment.
	if err := v.BindEnv("wallet.remote_token", envPrefix+"_WALLET_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind %s_WALLET_TOKEN environment variable: %w", envPrefix, err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	cfg.LLM.ApplyEnvKeys()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Scheduler.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", cfg.Scheduler.TimeZone, err)
	}
	cfg.Scheduler.Location = loc

	return &cfg, nil
}

// Validate checks field constraints and reports them as one error with a
// line per violation.
func (c *Config) Validate() error {
	validate, trans, err := newValidator()
	if err != nil {
		return err
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate configuration: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fe.Translate(trans))
		}
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
	}
	return nil
}

// SchedulerParams returns the review algorithm parameters with the
// configured location attached.
func (c *Config) SchedulerParams() spacedrep.Params {
	p := c.Scheduler.Params
	if p.Location == nil {
		if loc, err := time.LoadLocation(c.Scheduler.TimeZone); err == nil {
			p.Location = loc
		}
	}
	return p
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.session_ttl", d.Server.SessionTTL)

	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.anthropic.model", d.LLM.Anthropic.Model)
	v.SetDefault("llm.openai.model", d.LLM.OpenAI.Model)
	v.SetDefault("llm.openai.base_url", d.LLM.OpenAI.BaseURL)
	v.SetDefault("llm.gemini.model", d.LLM.Gemini.Model)
	v.SetDefault("llm.openrouter.model", d.LLM.OpenRouter.Model)
	v.SetDefault("llm.openrouter.base_url", d.LLM.OpenRouter.BaseURL)
	v.SetDefault("llm.retry.max_attempts", d.LLM.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", d.LLM.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", d.LLM.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", d.LLM.Retry.Multiplier)
	v.SetDefault("llm.rate_limit.requests_per_minute", d.LLM.RateLimit.RequestsPerMinute)
	v.SetDefault("llm.rate_limit.burst", d.LLM.RateLimit.Burst)
	v.SetDefault("llm.timeout", d.LLM.Timeout)

	v.SetDefault("grading.confidence_threshold", d.Grading.ConfidenceThreshold)
	v.SetDefault("grading.timeout", d.Grading.Timeout)
	v.SetDefault("grading.batch_concurrency", d.Grading.BatchConcurrency)
	v.SetDefault("grading.max_tokens", d.Grading.MaxTokens)
	v.SetDefault("grading.temperature", d.Grading.Temperature)

	p := d.Scheduler.Params
	v.SetDefault("scheduler.time_zone", d.Scheduler.TimeZone)
	v.SetDefault("scheduler.initial_interval_days", p.InitialIntervalDays)
	v.SetDefault("scheduler.initial_ease", p.InitialEase)
	v.SetDefault("scheduler.min_ease", p.MinEase)
	v.SetDefault("scheduler.ease_ceiling", p.EaseCeiling)
	v.SetDefault("scheduler.again_ease_penalty", p.AgainEasePenalty)
	v.SetDefault("scheduler.hard_multiplier", p.HardMultiplier)
	v.SetDefault("scheduler.hard_ease_penalty", p.HardEasePenalty)
	v.SetDefault("scheduler.easy_bonus", p.EasyBonus)
	v.SetDefault("scheduler.easy_ease_bonus", p.EasyEaseBonus)
	v.SetDefault("scheduler.max_interval_days", p.MaxIntervalDays)
	v.SetDefault("scheduler.mastery_interval_days", p.MasteryIntervalDays)
	v.SetDefault("scheduler.mastery_success_rate", p.MasterySuccessRate)
	v.SetDefault("scheduler.mastery_window", p.MasteryWindow)
	v.SetDefault("scheduler.overdue_weight", p.OverdueWeight)
	v.SetDefault("scheduler.success_weight", p.SuccessWeight)
	v.SetDefault("scheduler.difficulty_weight", p.DifficultyWeight)
	v.SetDefault("scheduler.high_priority", p.HighPriority)
	v.SetDefault("scheduler.medium_priority", p.MediumPriority)

	v.SetDefault("wallet.max_points_per_answer", d.Wallet.MaxPointsPerAnswer)
	v.SetDefault("wallet.remote_url", d.Wallet.RemoteURL)
	v.SetDefault("wallet.timeout", d.Wallet.Timeout)
	v.SetDefault("wallet.forward_interval", d.Wallet.ForwardInterval)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
	v.SetDefault("log.console", d.Log.Console)
}
