// Package events はログインフローの監査イベント記録を提供する。
//
// イベント記録はfire-and-forgetであり、記録に失敗してもログインフローは
// 中断されない。失敗はログに残すのみ。
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/idbridge/internal/repository"
)

// イベントタイプ
const (
	TypeLoginSuccess       = "login_success"
	TypeLoginFailure       = "login_failure"
	TypeAccountProvisioned = "account_provisioned"
	TypeAccountWithdrawn   = "account_withdrawn"
	TypeLogout             = "logout"
)

// LoginEvent はログイン関連イベントのペイロード。
// 失敗イベントではAccountIDとDisplayNameは空になる。
type LoginEvent struct {
	Provider       string `json:"provider"`
	ProviderUserID string `json:"provider_user_id,omitempty"`
	AccountID      string `json:"account_id,omitempty"`
	DisplayName    string `json:"display_name,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Recorder は監査イベントの記録インターフェース。
type Recorder interface {
	// Record はイベントを記録する。呼び出し元をブロックせず、エラーも返さない。
	Record(ctx context.Context, eventType string, event LoginEvent)
}

// AsyncRecorder は監査イベントを非同期でPostgresに書き込むRecorder。
// 書き込みはリクエストのライフサイクルから切り離して実行される。
type AsyncRecorder struct {
	repo    repository.AuditEventRepository
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsyncRecorder はAsyncRecorderを生成する。
func NewAsyncRecorder(repo repository.AuditEventRepository) *AsyncRecorder {
	return &AsyncRecorder{
		repo:    repo,
		timeout: 5 * time.Second,
	}
}

// Record はイベントを非同期で記録する。
// リクエストのcontextがキャンセルされても書き込みは完了させるため、
// 独立したタイムアウト付きcontextを使う。
func (r *AsyncRecorder) Record(ctx context.Context, eventType string, event LoginEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal audit event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		if err := r.repo.Insert(writeCtx, uuid.New().String(), eventType, payload); err != nil {
			slog.Error("failed to record audit event",
				slog.String("event_type", eventType),
				slog.String("provider", event.Provider),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait は進行中の書き込みが完了するまでブロックする。シャットダウン用。
func (r *AsyncRecorder) Wait() {
	r.wg.Wait()
}

// compile-time interface check
var _ Recorder = (*AsyncRecorder)(nil)
