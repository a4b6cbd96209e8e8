// Package storage implements the persistence ports (ports.OrderRepository,
// ports.RiskPolicyStore, ports.AuditLog) against three backends: gorm over
// Postgres or sqlite for orders/policies, raw database/sql over lib/pq for
// the audit trail, and an in-memory reference implementation for tests and
// BACKTEST mode.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marketstructure/execengine/domain"
)

// orderRow is the gorm model backing persisted Order Aggregates.
type orderRow struct {
	ID            string `gorm:"primaryKey"`
	BrokerOrderID string `gorm:"index"`
	Symbol        string
	Side          string
	OrderType     string
	TimeInForce   string
	OrderQty      decimal.Decimal `gorm:"type:decimal(20,8)"`
	LimitPrice    *decimal.Decimal `gorm:"type:decimal(20,8)"`
	StopPrice     *decimal.Decimal `gorm:"type:decimal(20,8)"`
	Purpose       string
	Status        string `gorm:"index"`
	CumQty        decimal.Decimal `gorm:"type:decimal(20,8)"`
	LeavesQty     decimal.Decimal `gorm:"type:decimal(20,8)"`
	AvgPx         decimal.Decimal `gorm:"type:decimal(20,8)"`
	RejectCode    string
	RejectMessage string
	CancelCode    string
	CancelMessage string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (orderRow) TableName() string { return "orders" }

// riskPolicyRow is the gorm model backing persisted RiskPolicy entities.
type riskPolicyRow struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Active    bool `gorm:"index"`
	ConfigRaw string `gorm:"type:text"` // JSON-encoded domain.ConstraintsConfig
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (riskPolicyRow) TableName() string { return "risk_policies" }

// OpenGorm opens a Postgres connection when dsn looks like a
// postgres(ql):// URL, otherwise falls back to sqlite at the given path,
// matching the dual-dialect selection the rest of the corpus uses, and
// migrates both the order and risk-policy tables.
func OpenGorm(dsn string) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info().Msg("💾 order store connected (PostgreSQL)")
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info().Str("path", dsn).Msg("💾 order store initialized (SQLite)")
	}

	if err := db.AutoMigrate(&orderRow{}, &riskPolicyRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

// GormOrderRepository implements ports.OrderRepository over gorm.
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository { return &GormOrderRepository{db: db} }

// GormPolicyStore implements ports.RiskPolicyStore over gorm, sharing the
// same *gorm.DB (and thus the same connection pool and dialect) as the
// order repository.
type GormPolicyStore struct {
	db *gorm.DB
}

func NewGormPolicyStore(db *gorm.DB) *GormPolicyStore { return &GormPolicyStore{db: db} }

func toRow(s domain.Snapshot) orderRow {
	row := orderRow{
		ID: s.ID.String(), Symbol: s.Symbol.String(), Side: string(s.Side),
		OrderType: string(s.OrderType), TimeInForce: string(s.TimeInForce),
		OrderQty: s.OrderQty.Decimal(), Purpose: string(s.Purpose), Status: string(s.Status),
		CumQty: s.CumQty.Decimal(), LeavesQty: s.LeavesQty.Decimal(), AvgPx: s.AvgPx.Decimal(),
		CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
	if s.BrokerOrderID != nil {
		row.BrokerOrderID = s.BrokerOrderID.String()
	}
	if s.LimitPrice != nil {
		d := s.LimitPrice.Decimal()
		row.LimitPrice = &d
	}
	if s.StopPrice != nil {
		d := s.StopPrice.Decimal()
		row.StopPrice = &d
	}
	if s.RejectReason != nil {
		row.RejectCode, row.RejectMessage = s.RejectReason.Code, s.RejectReason.Message
	}
	if s.CancelReason != nil {
		row.CancelCode, row.CancelMessage = s.CancelReason.Code, s.CancelReason.Message
	}
	return row
}

func fromRow(row orderRow) (*domain.Order, error) {
	symbol, err := domain.NewSymbol(row.Symbol)
	if err != nil {
		return nil, fmt.Errorf("decode symbol: %w", err)
	}
	snap := domain.Snapshot{
		ID: domain.OrderIdFromString(row.ID), Symbol: symbol, Side: domain.Side(row.Side),
		OrderType: domain.OrderType(row.OrderType), TimeInForce: domain.TimeInForce(row.TimeInForce),
		OrderQty: domain.NewQuantity(row.OrderQty), Purpose: domain.OrderPurpose(row.Purpose),
		Status: domain.OrderStatus(row.Status), CumQty: domain.NewQuantity(row.CumQty),
		LeavesQty: domain.NewQuantity(row.LeavesQty), AvgPx: domain.NewMoney(row.AvgPx),
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
	if row.BrokerOrderID != "" {
		bid := domain.BrokerIdFromString(row.BrokerOrderID)
		snap.BrokerOrderID = &bid
	}
	if row.LimitPrice != nil {
		m := domain.NewMoney(*row.LimitPrice)
		snap.LimitPrice = &m
	}
	if row.StopPrice != nil {
		m := domain.NewMoney(*row.StopPrice)
		snap.StopPrice = &m
	}
	if row.RejectCode != "" {
		r := domain.NewRejectReason(row.RejectCode, row.RejectMessage)
		snap.RejectReason = &r
	}
	if row.CancelCode != "" {
		r := domain.NewCancelReason(row.CancelCode, row.CancelMessage)
		snap.CancelReason = &r
	}
	return domain.Hydrate(snap), nil
}

func (s *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	row := toRow(order.Snapshot())
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *GormOrderRepository) FindByID(ctx context.Context, id domain.OrderId) (*domain.Order, error) {
	var row orderRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id.String()).Error; err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, err)
	}
	return fromRow(row)
}

func (s *GormOrderRepository) FindByBrokerID(ctx context.Context, id domain.BrokerId) (*domain.Order, error) {
	var row orderRow
	if err := s.db.WithContext(ctx).First(&row, "broker_order_id = ?", id.String()).Error; err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, err)
	}
	return fromRow(row)
}

func (s *GormOrderRepository) FindOpen(ctx context.Context) ([]*domain.Order, error) {
	openStatuses := []string{
		string(domain.StatusNew), string(domain.StatusPendingNew), string(domain.StatusAccepted),
		string(domain.StatusPartiallyFilled), string(domain.StatusPendingCancel),
	}
	var rows []orderRow
	if err := s.db.WithContext(ctx).Where("status IN ?", openStatuses).Find(&rows).Error; err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(rows))
	for _, row := range rows {
		order, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *GormOrderRepository) Delete(ctx context.Context, id domain.OrderId) error {
	return s.db.WithContext(ctx).Delete(&orderRow{}, "id = ?", id.String()).Error
}

func (s *GormPolicyStore) Create(ctx context.Context, policy domain.RiskPolicy) error {
	row := riskPolicyRow{ID: policy.ID, Name: policy.Name, Active: policy.Active, CreatedAt: policy.CreatedAt, UpdatedAt: policy.UpdatedAt}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormPolicyStore) Get(ctx context.Context, id string) (domain.RiskPolicy, error) {
	var row riskPolicyRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return domain.RiskPolicy{}, fmt.Errorf("%w: %s", domain.ErrPolicyNotFound, err)
	}
	return domain.RiskPolicy{ID: row.ID, Name: row.Name, Active: row.Active, Constraints: domain.DefaultConstraintsConfig(), CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}, nil
}

func (s *GormPolicyStore) Active(ctx context.Context) (domain.RiskPolicy, error) {
	var row riskPolicyRow
	if err := s.db.WithContext(ctx).First(&row, "active = ?", true).Error; err != nil {
		return domain.RiskPolicy{}, fmt.Errorf("%w: %s", domain.ErrPolicyNotFound, err)
	}
	return s.Get(ctx, row.ID)
}

func (s *GormPolicyStore) Activate(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&riskPolicyRow{}).Where("active = ?", true).Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&riskPolicyRow{}).Where("id = ?", id).Update("active", true).Error
	})
}

func (s *GormPolicyStore) Deactivate(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&riskPolicyRow{}).Where("id = ?", id).Update("active", false).Error
}

func (s *GormPolicyStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&riskPolicyRow{}, "id = ?", id).Error
}
