// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れのログインセッションと、保持期間（デフォルト90日）を超過した
// 監査イベントを日次バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れセッションと古い監査イベントの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db                 Executor
	logger             *slog.Logger
	AuditRetentionDays int // 監査イベントの保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの監査イベント保持日数は90日。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:                 db,
		logger:             logger,
		AuditRetentionDays: 90,
	}
}

// Run は期限切れセッションと保持期間を超過した監査イベントを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessionsDeleted, err := j.deleteExpiredSessions(ctx)
	if err != nil {
		return err
	}

	auditDeleted, err := j.deleteOldAuditEvents(ctx)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	j.logger.Info("cleanup job completed",
		slog.Int64("sessions_deleted", sessionsDeleted),
		slog.Int64("audit_events_deleted", auditDeleted),
		slog.Int("audit_retention_days", j.AuditRetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// deleteExpiredSessions は有効期限を過ぎたセッションを削除する。
func (j *CleanupJob) deleteExpiredSessions(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < now()`
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("failed to delete expired sessions",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted session count: %w", err)
	}
	return deleted, nil
}

// deleteOldAuditEvents は保持期間を超過した監査イベントを削除する。
func (j *CleanupJob) deleteOldAuditEvents(ctx context.Context) (int64, error) {
	interval := fmt.Sprintf("%d days", j.AuditRetentionDays)

	query := `DELETE FROM audit_events WHERE created_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("failed to delete old audit events",
			slog.String("error", err.Error()),
			slog.Int("audit_retention_days", j.AuditRetentionDays),
		)
		return 0, fmt.Errorf("failed to delete old audit events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted audit event count: %w", err)
	}
	return deleted, nil
}
