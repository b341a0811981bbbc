// Package gateway は外部IdPとのハンドシェイクを担うIdentity Provider Gatewayを提供する。
//
// チャレンジ開始時に署名付きラウンドトリップ状態Cookieを書き込み、
// コールバック時に状態を検証・消費した上で認可コードを検証済みの
// ExternalIdentityに交換する。状態Cookieは1回のコールバックで必ず
// 消費され、再利用できない。
package gateway

import (
	"context"

	"github.com/hitoshi/idbridge/internal/model"
)

// Provider は外部IdPのプロトコル処理（認可URL生成、コード交換）の
// インターフェース。複数IdP（Google, GitHub等）に対応するための抽象化。
type Provider interface {
	// AuthCodeURL は認可リクエストURLを生成する。
	AuthCodeURL(state string) string
	// Exchange は認可コードをトークンに交換し、検証済みの外部アイデンティティを返す。
	Exchange(ctx context.Context, code string) (*model.ExternalIdentity, error)
}

// Registry はスキーム名からProviderへのルックアップを提供する。
// 構築時に全プロバイダーを登録し、以降は読み取り専用として扱う。
type Registry struct {
	providers map[string]Provider
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register はスキーム名でプロバイダーを登録する。
func (r *Registry) Register(scheme string, p Provider) {
	r.providers[scheme] = p
}

// Get はスキーム名でプロバイダーを検索する。
func (r *Registry) Get(scheme string) (Provider, bool) {
	p, ok := r.providers[scheme]
	return p, ok
}

// Schemes は登録済みのスキーム名一覧を返す。
func (r *Registry) Schemes() []string {
	schemes := make([]string, 0, len(r.providers))
	for s := range r.providers {
		schemes = append(schemes, s)
	}
	return schemes
}
