// Command execengine runs the execution engine's long-running service: the
// Gateway, Stops Enforcer, Reconciliation loop, and mass-cancel safety net,
// wired to a broker/price-feed adapter pair selected by EXECUTION_ENV.
//
// Architecture: DecisionPlan -> Risk -> Gateway -> Broker
// - Upstream strategy agents submit DecisionPlans over the RPC surface
// - The Gateway validates against risk limits, then submits to the broker
// - The Stops Enforcer and Reconciler run alongside as background loops
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/marketstructure/execengine/broker"
	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/execution"
	"github.com/marketstructure/execengine/feed"
	"github.com/marketstructure/execengine/internal/config"
	"github.com/marketstructure/execengine/ops"
	"github.com/marketstructure/execengine/ports"
	"github.com/marketstructure/execengine/reconcile"
	"github.com/marketstructure/execengine/safety"
	"github.com/marketstructure/execengine/storage"
	"github.com/marketstructure/execengine/stops"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Str("env", string(cfg.Env)).Msg("🚀 execengine starting")

	repo, policyStore, audit, err := openStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}

	var notifier reconcile.Notifier
	if cfg.Telegram.Token != "" {
		tg, err := ops.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️  ops notifier unavailable, continuing without alerts")
		} else {
			notifier = tg
		}
	}

	var brokerPort ports.BrokerPort
	var priceFeed ports.PriceFeedPort
	if cfg.Env == config.ModeBacktest {
		log.Info().Msg("🧪 backtest mode: broker and feed adapters are not wired, use cmd/gridsearch instead")
	} else {
		client := broker.NewClient(broker.Config{
			BaseURL: cfg.Broker.BaseURL, APIKey: cfg.Broker.APIKey, APISecret: cfg.Broker.APISecret,
			Passphrase: cfg.Broker.Passphrase, Account: cfg.Broker.Account,
			DryRun: cfg.Broker.DryRun || cfg.Env == config.ModePaper, Timeout: cfg.Broker.Timeout, Retry: cfg.Broker.Retry,
		})
		brokerPort = client

		f := feed.NewFeed(cfg.Feed.URL)
		f.Start()
		defer f.Stop()
		priceFeed = f
	}

	stopsEnf := stops.NewEnforcer(cfg.Stops, priceFeed, func(ctx context.Context, pos *domain.MonitoredPosition, trigger stops.TriggerKind, price domain.Money) {
		log.Warn().Str("position_id", pos.PositionID).Str("trigger", string(trigger)).Str("price", price.String()).Msg("🎯 stop/target triggered")
	})

	gateway := execution.NewGateway(execution.GatewayConfig{BrokerTimeout: cfg.GatewayTimeout, Limits: cfg.Limits}, brokerPort, repo, stopsEnf)

	masscanceller := safety.NewMassCanceller(cfg.Safety,
		func(ctx context.Context, orderID domain.OrderId, reason domain.CancelReason) error {
			order, err := repo.FindByID(ctx, orderID)
			if err != nil {
				return err
			}
			return gateway.CancelOrder(ctx, order, reason)
		},
		func(ctx context.Context) []safety.OpenOrder {
			orders, err := repo.FindOpen(ctx)
			if err != nil {
				log.Error().Err(err).Msg("failed to list open orders for heartbeat sweep")
				return nil
			}
			out := make([]safety.OpenOrder, 0, len(orders))
			for _, o := range orders {
				out = append(out, safety.OpenOrder{OrderID: o.ID(), TimeInForce: o.TimeInForce()})
			}
			return out
		},
	)

	var reconciler *reconcile.Reconciler
	if brokerPort != nil {
		reconciler = reconcile.NewReconciler(cfg.Reconcile, brokerPort, repo, audit, notifier)
	}

	_ = policyStore

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.Reconcile.IsEnabledForEnv(string(cfg.Env)) && reconciler != nil {
		go runReconciliationLoop(ctx, cfg, reconciler, brokerPort, repo)
	}
	if cfg.Safety.Enabled {
		go runHeartbeatLoop(ctx, cfg, masscanceller)
	}

	log.Info().Msg("✅ execengine ready")
	<-sigCh
	log.Info().Msg("🛑 shutting down")
}

func openStorage(cfg *config.Config) (ports.OrderRepository, ports.RiskPolicyStore, ports.AuditLog, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := storage.OpenGorm(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		audit, err := storage.NewPostgresAuditLog(cfg.Storage.AuditPostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return storage.NewGormOrderRepository(db), storage.NewGormPolicyStore(db), audit, nil
	case "sqlite":
		db, err := storage.OpenGorm(cfg.Storage.SqliteDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return storage.NewGormOrderRepository(db), storage.NewGormPolicyStore(db), storage.NewMemoryAuditLog(), nil
	default:
		return storage.NewMemoryOrderRepository(), storage.NewMemoryPolicyStore(), storage.NewMemoryAuditLog(), nil
	}
}

func runReconciliationLoop(ctx context.Context, cfg *config.Config, r *reconcile.Reconciler, brokerPort ports.BrokerPort, repo ports.OrderRepository) {
	ticker := time.NewTicker(cfg.Reconcile.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reconcileOnce(ctx, cfg, r, brokerPort, repo)
		}
	}
}

func reconcileOnce(ctx context.Context, cfg *config.Config, r *reconcile.Reconciler, brokerPort ports.BrokerPort, repo ports.OrderRepository) {
	acks, err := brokerPort.GetOpenOrders(ctx)
	if err != nil {
		log.Error().Err(err).Msg("🔌 reconciliation: failed to fetch broker open orders")
		return
	}
	snapshot := reconcile.BrokerStateSnapshot{FetchedAt: time.Now()}
	for _, ack := range acks {
		snapshot.Orders = append(snapshot.Orders, reconcile.BrokerOrderView{
			BrokerID: ack.BrokerID, Status: ack.Status, Quantity: ack.FilledQty, CreatedAt: ack.Timestamp,
		})
	}

	localOrders, err := repo.FindOpen(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reconciliation: failed to list local open orders")
		return
	}
	var localViews []reconcile.LocalOrderView
	for _, o := range localOrders {
		view := reconcile.LocalOrderView{OrderID: o.ID(), Status: o.Status()}
		if bid, ok := o.BrokerOrderID(); ok {
			view.BrokerID = &bid
		}
		localViews = append(localViews, view)
	}

	discrepancies := reconcile.Diff(snapshot, localViews, nil, cfg.Reconcile, time.Now())
	if len(discrepancies) == 0 {
		return
	}
	log.Warn().Int("count", len(discrepancies)).Msg("⚠️  reconciliation discrepancies found")
	if _, err := r.Resolve(ctx, discrepancies, time.Now()); err != nil {
		log.Error().Err(err).Msg("reconciliation: resolution failed")
	}
}

func runHeartbeatLoop(ctx context.Context, cfg *config.Config, mc *safety.MassCanceller) {
	interval := time.Duration(cfg.Safety.HeartbeatIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			mc.Heartbeat(now)
			if err := mc.Check(ctx, now); err != nil {
				log.Error().Err(err).Msg("🚨 mass-cancel check failed")
			}
		}
	}
}
