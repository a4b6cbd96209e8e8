// Package reconcile implements the Reconciliation Engine: periodic broker/
// local state diffing, discrepancy classification and resolution, and
// startup recovery.
package reconcile

import "time"

// CriticalDiscrepancyPolicy governs how a CRITICAL-severity discrepancy is handled.
type CriticalDiscrepancyPolicy string

const (
	PolicyHalt          CriticalDiscrepancyPolicy = "halt"
	PolicyLogAndContinue CriticalDiscrepancyPolicy = "log_and_continue"
	PolicyAlert          CriticalDiscrepancyPolicy = "alert"
)

// ParseCriticalDiscrepancyPolicy defaults unrecognized values to Halt, the
// safest option, matching the original config's fallback behavior.
func ParseCriticalDiscrepancyPolicy(s string) CriticalDiscrepancyPolicy {
	switch s {
	case string(PolicyLogAndContinue):
		return PolicyLogAndContinue
	case string(PolicyAlert):
		return PolicyAlert
	default:
		return PolicyHalt
	}
}

// Config mirrors original_source/config/reconciliation.rs's exact defaults.
type Config struct {
	Enabled               bool
	IntervalSecs          int
	ProtectionWindowSecs  int
	MaxOrderAgeSecs       int
	AutoResolveOrphans    bool
	OnCriticalDiscrepancy CriticalDiscrepancyPolicy
	OnStartup             bool
	OnReconnect           bool
	PositionQtyTolerance      float64 // decimal.Decimal in the original; float64 config threshold converted at the boundary
	PositionPriceTolerancePct float64
}

func DefaultConfig() Config {
	return Config{
		Enabled:                   true,
		IntervalSecs:              300,
		ProtectionWindowSecs:      1800,
		MaxOrderAgeSecs:           86400,
		AutoResolveOrphans:        true,
		OnCriticalDiscrepancy:     PolicyHalt,
		OnStartup:                 true,
		OnReconnect:                true,
		PositionQtyTolerance:      0.0,
		PositionPriceTolerancePct: 0.01,
	}
}

// IsEnabledForEnv returns false for BACKTEST even when Enabled is true: a
// simulated run has no external broker state to reconcile against.
func (c Config) IsEnabledForEnv(env string) bool {
	if env == "BACKTEST" {
		return false
	}
	return c.Enabled
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSecs) * time.Second
}

func (c Config) ProtectionWindow() time.Duration {
	return time.Duration(c.ProtectionWindowSecs) * time.Second
}

func (c Config) MaxOrderAge() time.Duration {
	return time.Duration(c.MaxOrderAgeSecs) * time.Second
}

// RecoveryConfig mirrors original_source/config/recovery.rs's exact defaults.
// ToRecoveryConfig() hardcodes MaxAttempts=3, matching the original's
// to_recovery_config() (the field is not independently configurable).
type RecoveryConfig struct {
	Enabled                   bool
	AutoResolveOrphans        bool
	SyncPositions             bool
	AbortOnCritical           bool
	PositionQtyTolerance      float64
	PositionPriceTolerancePct float64
	MaxAttempts               int
}

func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Enabled:                   true,
		AutoResolveOrphans:        true,
		SyncPositions:             true,
		AbortOnCritical:           true,
		PositionQtyTolerance:      0.0,
		PositionPriceTolerancePct: 0.01,
		MaxAttempts:               3,
	}
}
