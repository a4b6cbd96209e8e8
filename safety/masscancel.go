// Package safety implements the disconnect safety net: a heartbeat monitor
// that mass-cancels open orders after a broker disconnect outlasts its grace
// period, per original_source/config/safety.rs.
package safety

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketstructure/execengine/domain"
)

// GtcPolicy decides whether GTC orders are swept in along with the rest.
type GtcPolicy string

const (
	GtcInclude GtcPolicy = "include"
	GtcExclude GtcPolicy = "exclude"
)

// ParseGtcPolicy defaults unrecognized values to GtcInclude, matching
// to_mass_cancel_config()'s fallback.
func ParseGtcPolicy(s string) GtcPolicy {
	if s == string(GtcExclude) {
		return GtcExclude
	}
	return GtcInclude
}

// Config mirrors SafetyConfig's exact serde defaults.
type Config struct {
	Enabled                bool
	GracePeriodSeconds     int
	HeartbeatIntervalMs    int
	HeartbeatTimeoutSeconds int
	GtcPolicy              GtcPolicy
}

func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		GracePeriodSeconds:      30,
		HeartbeatIntervalMs:     30_000,
		HeartbeatTimeoutSeconds: 10,
		GtcPolicy:               GtcInclude,
	}
}

// OpenOrder is the minimal view MassCanceller needs of an outstanding order.
type OpenOrder struct {
	OrderID     domain.OrderId
	TimeInForce domain.TimeInForce
}

// CancelFunc performs the actual broker cancel; supplied by the Gateway.
type CancelFunc func(ctx context.Context, orderID domain.OrderId, reason domain.CancelReason) error

// OpenOrdersFunc lists currently-open orders; supplied by the Gateway/repository.
type OpenOrdersFunc func(ctx context.Context) []OpenOrder

// MassCanceller watches a heartbeat and cancels all (or all non-GTC) open
// orders once a disconnect has outlasted GracePeriodSeconds.
type MassCanceller struct {
	mu            sync.Mutex
	cfg           Config
	lastHeartbeat time.Time
	cancelFn      CancelFunc
	openOrdersFn  OpenOrdersFunc
	tripped       bool
}

func NewMassCanceller(cfg Config, cancelFn CancelFunc, openOrdersFn OpenOrdersFunc) *MassCanceller {
	return &MassCanceller{
		cfg:           cfg,
		lastHeartbeat: time.Now(),
		cancelFn:      cancelFn,
		openOrdersFn:  openOrdersFn,
	}
}

// Heartbeat records a successful broker liveness check.
func (m *MassCanceller) Heartbeat(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHeartbeat = now
	m.tripped = false
}

// disconnectedFor reports how long since the last heartbeat, as of now.
func (m *MassCanceller) disconnectedFor(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return now.Sub(m.lastHeartbeat)
}

// Check runs one evaluation tick: if the heartbeat has been missing longer
// than HeartbeatTimeoutSeconds + GracePeriodSeconds, it mass-cancels.
// Intended to be driven by a ticker at HeartbeatIntervalMs.
func (m *MassCanceller) Check(ctx context.Context, now time.Time) error {
	if !m.cfg.Enabled {
		return nil
	}
	timeout := time.Duration(m.cfg.HeartbeatTimeoutSeconds)*time.Second + time.Duration(m.cfg.GracePeriodSeconds)*time.Second
	if m.disconnectedFor(now) < timeout {
		return nil
	}

	m.mu.Lock()
	if m.tripped {
		m.mu.Unlock()
		return nil
	}
	m.tripped = true
	m.mu.Unlock()

	log.Warn().Dur("disconnected_for", m.disconnectedFor(now)).Msg("🔌 disconnect grace period exceeded, mass-cancelling")
	return m.cancelAll(ctx)
}

func (m *MassCanceller) cancelAll(ctx context.Context) error {
	orders := m.openOrdersFn(ctx)
	var firstErr error
	for _, o := range orders {
		if m.cfg.GtcPolicy == GtcExclude && o.TimeInForce == domain.TIFGtc {
			continue
		}
		if err := m.cancelFn(ctx, o.OrderID, domain.CancelDisconnectSafety); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MassCanceller) IsTripped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tripped
}
