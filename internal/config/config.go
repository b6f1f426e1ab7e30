package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"WyckoffBacktester/internal/backtest"
	"WyckoffBacktester/internal/model"
	"WyckoffBacktester/internal/strategy"
)

// Data providers understood by the collector.
const (
	ProviderYahoo     = "yahoo"
	ProviderREST      = "rest"
	ProviderCSV       = "csv"
	ProviderSynthetic = "synthetic"
)

// Config holds all application configuration.
type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider          string        `yaml:"provider"`
		BaseURL           string        `yaml:"base_url"`
		APIKey            string        `yaml:"api_key"`
		CSVDir            string        `yaml:"csv_dir"`
		Symbols           []string      `yaml:"symbols"`
		Days              int           `yaml:"days"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Timeout           time.Duration `yaml:"timeout"`
	} `yaml:"data_source"`
	Schedule struct {
		BacktestCron string `yaml:"backtest_cron"`
		OptimizeCron string `yaml:"optimize_cron"`
	} `yaml:"schedule"`
	Database struct {
		Driver      string `yaml:"driver"`
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"database"`
	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`
	Backtest backtest.Config `yaml:"backtest"`
	Proxy    string          `yaml:"proxy"`
}

// Load reads config from a YAML file over the engine defaults, loads an optional .env file,
// then applies environment variable overrides and fills remaining defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{Backtest: backtest.DefaultConfig()}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &cfg.Log.Level)
	str("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID)
	str("DATA_PROVIDER", &cfg.DataSource.Provider)
	str("BARS_BASE_URL", &cfg.DataSource.BaseURL)
	str("BARS_API_KEY", &cfg.DataSource.APIKey)
	str("CSV_DIR", &cfg.DataSource.CSVDir)
	str("HTTPS_PROXY", &cfg.Proxy)
	str("CRON_BACKTEST", &cfg.Schedule.BacktestCron)
	str("CRON_OPTIMIZE", &cfg.Schedule.OptimizeCron)
	str("DB_DRIVER", &cfg.Database.Driver)
	str("SQLITE_PATH", &cfg.Database.SQLitePath)
	str("POSTGRES_DSN", &cfg.Database.PostgresDSN)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("SERVER_ADDR", &cfg.Server.Addr)
	str("OUTPUT_DIR", &cfg.Output.Dir)
	str("STRATEGY", &cfg.Backtest.Strategy.Name)

	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.DataSource.Symbols = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.DataSource.Symbols = append(cfg.DataSource.Symbols, strings.ToUpper(s))
			}
		}
	}
	if v := os.Getenv("INITIAL_CAPITAL"); v != "" {
		var capital float64
		if _, err := fmt.Sscanf(v, "%f", &capital); err == nil {
			cfg.Backtest.Simulator.InitialCapital = capital
		}
	}
	if v := os.Getenv("STOP_LOSS_PERCENT"); v != "" {
		var sl float64
		if _, err := fmt.Sscanf(v, "%f", &sl); err == nil {
			cfg.Backtest.Simulator.StopLossPercent = sl
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = ProviderYahoo
		if cfg.DataSource.BaseURL != "" {
			cfg.DataSource.Provider = ProviderREST
		}
	}
	if len(cfg.DataSource.Symbols) == 0 {
		cfg.DataSource.Symbols = []string{"SPY"}
	}
	if cfg.DataSource.Days == 0 {
		cfg.DataSource.Days = 730
	}
	if cfg.DataSource.RequestsPerSecond == 0 {
		cfg.DataSource.RequestsPerSecond = 2
	}
	if cfg.DataSource.Timeout == 0 {
		cfg.DataSource.Timeout = 30 * time.Second
	}
	if cfg.Schedule.BacktestCron == "" {
		cfg.Schedule.BacktestCron = "0 30 22 * * 1-5"
	}
	if cfg.Schedule.OptimizeCron == "" {
		cfg.Schedule.OptimizeCron = "0 0 9 * * 6"
	}
	if cfg.Database.Driver == "" && cfg.Database.SQLitePath != "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 6 * time.Hour
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":9102"
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "data/reports"
	}
}

// Validate checks the engine configuration and the collaborator settings it needs.
func (c *Config) Validate() error {
	if err := c.Backtest.Validate(); err != nil {
		return err
	}
	switch c.DataSource.Provider {
	case ProviderYahoo, ProviderSynthetic:
	case ProviderREST:
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("%w: data_source.base_url is required for the rest provider", model.ErrInvalidConfiguration)
		}
	case ProviderCSV:
		if c.DataSource.CSVDir == "" {
			return fmt.Errorf("%w: data_source.csv_dir is required for the csv provider", model.ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown data_source.provider %q", model.ErrInvalidConfiguration, c.DataSource.Provider)
	}
	if c.DataSource.Days <= 0 {
		return fmt.Errorf("%w: data_source.days must be positive", model.ErrInvalidConfiguration)
	}
	if c.DataSource.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: data_source.requests_per_second must be positive", model.ErrInvalidConfiguration)
	}
	switch c.Database.Driver {
	case "", "sqlite":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("%w: database.postgres_dsn is required for the postgres driver", model.ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown database.driver %q", model.ErrInvalidConfiguration, c.Database.Driver)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("%w: telegram.bot_token and telegram.chat_id must be set together", model.ErrInvalidConfiguration)
	}
	return nil
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// StrategyNames lists the accepted values of backtest.strategy.name.
func StrategyNames() []string {
	return []string{strategy.NamePhase, strategy.NameEMACrossover}
}
