package security

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// EgressGuardService は外部IdPエンドポイントへのアウトバウンドHTTPを保護する
// インターフェースを定義する。トークン交換とユーザー情報取得で使用される。
type EgressGuardService interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// safeurlライブラリにより、プライベートIP、ループバック、リンクローカル、
	// メタデータIPへのリクエストが自動的にブロックされる。
	// DNS再バインディング攻撃への対策も有効化される。
	NewSafeClient(timeout time.Duration) *http.Client
}

// egressGuard はEgressGuardServiceの実装。
type egressGuard struct{}

// NewEgressGuard はEgressGuardServiceの新しいインスタンスを生成する。
func NewEgressGuard() *egressGuard {
	return &egressGuard{}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// プロバイダーのトークン・ユーザー情報エンドポイントは必ず公開ネットワーク上に
// あるため、内部ネットワークへ向くリクエストは設定ミスか攻撃のどちらかである。
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// DNS再バインディング攻撃にも対応している。
func (g *egressGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https", "http").
		SetAllowedPorts(80, 443).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}

// compile-time interface check
var _ EgressGuardService = (*egressGuard)(nil)
