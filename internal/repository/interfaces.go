// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/idbridge/internal/model"
)

// AccountRepository はアカウントストアの永続化インターフェース。
// 外部IdP連携に必要なルックアップ、作成、更新、クレーム操作を提供する。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByExternalLogin は (provider, providerUserID) でアカウントを検索する。
	// 見つからない場合はnilを返す。未リンクは想定内の結果でありエラーではない。
	FindByExternalLogin(ctx context.Context, provider, providerUserID string) (*model.Account, error)

	// CreateWithLogin はアカウント、プロフィールクレーム、外部ログインの紐付けを
	// 同一トランザクションで作成する。(provider, provider_user_id) が既に存在する
	// 場合は全体をロールバックし model.ErrExternalLoginExists を返す。
	// 同時コールバックの競合はこのcreate-if-absentプリミティブで直列化される。
	CreateWithLogin(ctx context.Context, account *model.Account, claims []model.Claim, login *model.ExternalLogin) error

	// Update はアカウントのプロフィールフィールドを更新する。
	Update(ctx context.Context, account *model.Account) error

	// ReplaceClaim はアカウントの指定タイプのクレーム値を置き換える。
	// 既存クレームが存在しない場合は新規に追加する。
	ReplaceClaim(ctx context.Context, accountID string, oldClaim, newClaim model.Claim) error

	// ListClaims はアカウントに紐付くクレーム一覧を返す。
	ListClaims(ctx context.Context, accountID string) ([]model.Claim, error)

	// DeleteByID は指定IDのアカウントを削除する。
	// 関連するaccount_claims、external_loginsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByAccountID は指定アカウントの全セッションを削除する。
	DeleteByAccountID(ctx context.Context, accountID string) error
}

// AuditEventRepository は監査イベントの永続化インターフェース。
type AuditEventRepository interface {
	// Insert は監査イベントを記録する。
	Insert(ctx context.Context, id, eventType string, payload []byte) error
}
