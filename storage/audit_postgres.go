package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/ports"
)

// PostgresAuditLog implements ports.AuditLog as a raw database/sql append-only
// table, independent of the gorm-backed order/policy stores so the audit
// trail survives even if those backends are swapped for sqlite.
type PostgresAuditLog struct {
	db *sql.DB
}

func NewPostgresAuditLog(connStr string) (*PostgresAuditLog, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id SERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		order_id TEXT,
		message TEXT NOT NULL,
		occurred_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_occurred ON audit_log(occurred_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate audit_log: %w", err)
	}

	log.Info().Msg("💾 audit log connected (PostgreSQL)")
	return &PostgresAuditLog{db: db}, nil
}

func (a *PostgresAuditLog) Append(ctx context.Context, record ports.AuditRecord) error {
	var orderID *string
	if record.OrderID != nil {
		s := record.OrderID.String()
		orderID = &s
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO audit_log (kind, order_id, message, occurred_at) VALUES ($1, $2, $3, $4)`,
		record.Kind, orderID, record.Message, record.Timestamp)
	return err
}

func (a *PostgresAuditLog) Recent(ctx context.Context, limit int) ([]ports.AuditRecord, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT kind, order_id, message, occurred_at FROM audit_log ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.AuditRecord
	for rows.Next() {
		var rec ports.AuditRecord
		var orderID sql.NullString
		if err := rows.Scan(&rec.Kind, &orderID, &rec.Message, &rec.Timestamp); err != nil {
			return nil, err
		}
		if orderID.Valid {
			id := domain.OrderIdFromString(orderID.String)
			rec.OrderID = &id
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
