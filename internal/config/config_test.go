package config

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
)

func clearExecEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EXECUTION_ENV", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"BROKER_API_KEY", "STOPS_MIN_STOP_PCT", "SAFETY_GTC_POLICY",
		"RECONCILE_ON_CRITICAL_DISCREPANCY",
	} {
		os.Unsetenv(k)
	}
}

func TestLoadDefaultsToBacktestMode(t *testing.T) {
	clearExecEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Env != ModeBacktest {
		t.Fatalf("expected default mode backtest, got %s", cfg.Env)
	}
	if !cfg.Broker.DryRun {
		t.Fatal("expected DryRun default true")
	}
}

func TestLoadRequiresBrokerKeyInLiveMode(t *testing.T) {
	clearExecEnv(t)
	os.Setenv("EXECUTION_ENV", "live")
	defer os.Unsetenv("EXECUTION_ENV")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when EXECUTION_ENV=live without BROKER_API_KEY")
	}

	os.Setenv("BROKER_API_KEY", "k")
	defer os.Unsetenv("BROKER_API_KEY")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Env != ModeLive {
		t.Fatalf("expected live mode, got %s", cfg.Env)
	}
}

func TestParseRunModeDefaultsToBacktestOnUnknown(t *testing.T) {
	if ParseRunMode("garbage") != ModeBacktest {
		t.Fatal("expected unknown run mode to default to backtest")
	}
	if ParseRunMode("paper") != ModePaper {
		t.Fatal("expected paper to parse to ModePaper")
	}
}

func TestLoadOverridesStopsFromEnv(t *testing.T) {
	clearExecEnv(t)
	os.Setenv("STOPS_MIN_STOP_PCT", "0.005")
	defer os.Unsetenv("STOPS_MIN_STOP_PCT")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Stops.MinStopPct.Equal(decimal.RequireFromString("0.005")) {
		t.Fatalf("expected overridden MinStopPct, got %s", cfg.Stops.MinStopPct)
	}
}

func TestLoadParsesTelegramChatID(t *testing.T) {
	clearExecEnv(t)
	os.Setenv("TELEGRAM_CHAT_ID", "12345")
	defer os.Unsetenv("TELEGRAM_CHAT_ID")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.ChatID != 12345 {
		t.Fatalf("expected chat id 12345, got %d", cfg.Telegram.ChatID)
	}
}

func TestLoadRejectsInvalidTelegramChatID(t *testing.T) {
	clearExecEnv(t)
	os.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
	defer os.Unsetenv("TELEGRAM_CHAT_ID")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric TELEGRAM_CHAT_ID")
	}
}
