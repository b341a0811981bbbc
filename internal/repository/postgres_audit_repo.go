package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresAuditRepo はPostgreSQLを使用した監査イベントリポジトリ。
type PostgresAuditRepo struct {
	db *sql.DB
}

// NewPostgresAuditRepo はPostgresAuditRepoを生成する。
func NewPostgresAuditRepo(db *sql.DB) *PostgresAuditRepo {
	return &PostgresAuditRepo{db: db}
}

// Insert は監査イベントを記録する。payloadはJSONバイト列。
func (r *PostgresAuditRepo) Insert(ctx context.Context, id, eventType string, payload []byte) error {
	if payload == nil {
		payload = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, event_type, payload)
		 VALUES ($1, $2, $3)`,
		id, eventType, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AuditEventRepository = (*PostgresAuditRepo)(nil)
