// Package config assembles the typed Config the execution engine boots
// from: env vars with inline defaults, following the same getEnv* idiom
// across every sub-config (stops, reconciliation, safety, risk limits).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/ports"
	"github.com/marketstructure/execengine/reconcile"
	"github.com/marketstructure/execengine/safety"
	"github.com/marketstructure/execengine/stops"
)

// RunMode selects which adapters the engine wires: BACKTEST wires no broker
// or price feed, PAPER and LIVE both wire the HTTP broker client and the
// WebSocket feed against Broker.BaseURL, and PAPER always submits in DryRun
// mode. The storage backend is chosen separately by Storage.Driver.
type RunMode string

const (
	ModeBacktest RunMode = "backtest"
	ModePaper    RunMode = "paper"
	ModeLive     RunMode = "live"
)

// ParseRunMode defaults unrecognized or empty values to ModeBacktest, the
// safest mode: a bad EXECUTION_ENV should never accidentally reach a live
// broker.
func ParseRunMode(s string) RunMode {
	switch s {
	case string(ModePaper):
		return ModePaper
	case string(ModeLive):
		return ModeLive
	default:
		return ModeBacktest
	}
}

// BrokerConfig carries the HTTP broker adapter's connection settings.
type BrokerConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Passphrase string
	Account    string
	DryRun     bool
	Timeout    time.Duration
	Retry      ports.RetryPolicy
}

// FeedConfig carries the WebSocket price-feed adapter's connection settings.
type FeedConfig struct {
	URL string
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Driver is "memory", "sqlite", or "postgres".
	Driver          string
	SqliteDSN       string
	PostgresDSN     string
	AuditPostgresDSN string
}

// TelegramConfig carries the ops notifier's bot credentials.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

type Config struct {
	Env   RunMode
	Debug bool

	Telegram TelegramConfig

	Broker  BrokerConfig
	Feed    FeedConfig
	Storage StorageConfig

	Limits   domain.ConstraintsConfig
	Stops    stops.Config
	Reconcile reconcile.Config
	Recovery  reconcile.RecoveryConfig
	Safety    safety.Config

	GatewayTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:   ParseRunMode(getEnv("EXECUTION_ENV", string(ModeBacktest))),
		Debug: getEnvBool("DEBUG", false),

		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},

		Broker: BrokerConfig{
			BaseURL:    getEnv("BROKER_BASE_URL", "https://paper-api.broker.example/v1"),
			APIKey:     os.Getenv("BROKER_API_KEY"),
			APISecret:  os.Getenv("BROKER_API_SECRET"),
			Passphrase: os.Getenv("BROKER_PASSPHRASE"),
			Account:    os.Getenv("BROKER_ACCOUNT"),
			DryRun:     getEnvBool("BROKER_DRY_RUN", true),
			Timeout:    getEnvDuration("BROKER_TIMEOUT", 30*time.Second),
			Retry:      ports.DefaultRetryPolicy(),
		},

		Feed: FeedConfig{
			URL: getEnv("FEED_WS_URL", "wss://feed.broker.example/ws"),
		},

		Storage: StorageConfig{
			Driver:           getEnv("STORAGE_DRIVER", "memory"),
			SqliteDSN:        getEnv("STORAGE_SQLITE_PATH", "data/execengine.db"),
			PostgresDSN:      os.Getenv("STORAGE_POSTGRES_DSN"),
			AuditPostgresDSN: os.Getenv("STORAGE_AUDIT_POSTGRES_DSN"),
		},

		Limits:    domain.DefaultConstraintsConfig(),
		Stops:     stops.DefaultConfig(),
		Reconcile: reconcile.DefaultConfig(),
		Recovery:  reconcile.DefaultRecoveryConfig(),
		Safety:    safety.DefaultConfig(),

		GatewayTimeout: getEnvDuration("GATEWAY_TIMEOUT", 30*time.Second),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}

	cfg.Stops.Enabled = getEnvBool("STOPS_ENABLED", cfg.Stops.Enabled)
	cfg.Stops.MonitoringIntervalMs = getEnvInt("STOPS_MONITORING_INTERVAL_MS", cfg.Stops.MonitoringIntervalMs)
	cfg.Stops.UseBracketOrders = getEnvBool("STOPS_USE_BRACKET_ORDERS", cfg.Stops.UseBracketOrders)
	cfg.Stops.MinStopPct = getEnvDecimal("STOPS_MIN_STOP_PCT", cfg.Stops.MinStopPct)
	cfg.Stops.MaxStopPct = getEnvDecimal("STOPS_MAX_STOP_PCT", cfg.Stops.MaxStopPct)

	cfg.Reconcile.Enabled = getEnvBool("RECONCILE_ENABLED", cfg.Reconcile.Enabled)
	cfg.Reconcile.IntervalSecs = getEnvInt("RECONCILE_INTERVAL_SECS", cfg.Reconcile.IntervalSecs)
	cfg.Reconcile.ProtectionWindowSecs = getEnvInt("RECONCILE_PROTECTION_WINDOW_SECS", cfg.Reconcile.ProtectionWindowSecs)
	cfg.Reconcile.MaxOrderAgeSecs = getEnvInt("RECONCILE_MAX_ORDER_AGE_SECS", cfg.Reconcile.MaxOrderAgeSecs)
	cfg.Reconcile.AutoResolveOrphans = getEnvBool("RECONCILE_AUTO_RESOLVE_ORPHANS", cfg.Reconcile.AutoResolveOrphans)
	cfg.Reconcile.OnCriticalDiscrepancy = reconcile.ParseCriticalDiscrepancyPolicy(getEnv("RECONCILE_ON_CRITICAL_DISCREPANCY", string(cfg.Reconcile.OnCriticalDiscrepancy)))
	cfg.Reconcile.OnStartup = getEnvBool("RECONCILE_ON_STARTUP", cfg.Reconcile.OnStartup)
	cfg.Reconcile.OnReconnect = getEnvBool("RECONCILE_ON_RECONNECT", cfg.Reconcile.OnReconnect)
	cfg.Reconcile.PositionQtyTolerance = getEnvFloat("RECONCILE_POSITION_QTY_TOLERANCE", cfg.Reconcile.PositionQtyTolerance)
	cfg.Reconcile.PositionPriceTolerancePct = getEnvFloat("RECONCILE_POSITION_PRICE_TOLERANCE_PCT", cfg.Reconcile.PositionPriceTolerancePct)

	cfg.Recovery.Enabled = getEnvBool("RECOVERY_ENABLED", cfg.Recovery.Enabled)
	cfg.Recovery.AutoResolveOrphans = getEnvBool("RECOVERY_AUTO_RESOLVE_ORPHANS", cfg.Recovery.AutoResolveOrphans)
	cfg.Recovery.SyncPositions = getEnvBool("RECOVERY_SYNC_POSITIONS", cfg.Recovery.SyncPositions)
	cfg.Recovery.AbortOnCritical = getEnvBool("RECOVERY_ABORT_ON_CRITICAL", cfg.Recovery.AbortOnCritical)

	cfg.Safety.Enabled = getEnvBool("SAFETY_ENABLED", cfg.Safety.Enabled)
	cfg.Safety.GracePeriodSeconds = getEnvInt("SAFETY_GRACE_PERIOD_SECONDS", cfg.Safety.GracePeriodSeconds)
	cfg.Safety.HeartbeatIntervalMs = getEnvInt("SAFETY_HEARTBEAT_INTERVAL_MS", cfg.Safety.HeartbeatIntervalMs)
	cfg.Safety.HeartbeatTimeoutSeconds = getEnvInt("SAFETY_HEARTBEAT_TIMEOUT_SECONDS", cfg.Safety.HeartbeatTimeoutSeconds)
	cfg.Safety.GtcPolicy = safety.ParseGtcPolicy(getEnv("SAFETY_GTC_POLICY", string(cfg.Safety.GtcPolicy)))

	cfg.Limits.PerInstrument.MaxNotional = domain.NewMoney(getEnvDecimal("LIMITS_PER_INSTRUMENT_MAX_NOTIONAL", cfg.Limits.PerInstrument.MaxNotional.Decimal()))
	cfg.Limits.Portfolio.MaxGrossNotional = domain.NewMoney(getEnvDecimal("LIMITS_PORTFOLIO_MAX_GROSS_NOTIONAL", cfg.Limits.Portfolio.MaxGrossNotional.Decimal()))
	cfg.Limits.Portfolio.MaxNetNotional = domain.NewMoney(getEnvDecimal("LIMITS_PORTFOLIO_MAX_NET_NOTIONAL", cfg.Limits.Portfolio.MaxNetNotional.Decimal()))

	if cfg.Env == ModeLive && cfg.Broker.APIKey == "" {
		return nil, fmt.Errorf("BROKER_API_KEY is required when EXECUTION_ENV=live")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
