package gateway

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/idbridge/internal/model"
)

// stateCookieName はラウンドトリップ状態を保持するCookieの名前。
const stateCookieName = "external_state"

// Config はHTTPGatewayの設定。
type Config struct {
	// ラウンドトリップ状態の署名鍵
	StateSecret string
	// ラウンドトリップ状態の有効期間
	StateMaxAge time.Duration
	// Cookie属性
	CookieSecure bool
	CookieDomain string
}

// HTTPGateway は外部IdPとのハンドシェイクを実行するIdentity Provider Gateway。
// ラウンドトリップ状態は署名付きCookieで運び、コールバックで1回だけ消費する。
type HTTPGateway struct {
	registry *Registry
	codec    *stateCodec
	config   Config
}

// New はHTTPGatewayを生成する。
func New(registry *Registry, config Config) *HTTPGateway {
	if config.StateMaxAge <= 0 {
		config.StateMaxAge = 10 * time.Minute
	}
	return &HTTPGateway{
		registry: registry,
		codec:    newStateCodec(config.StateSecret),
		config:   config,
	}
}

// BeginChallenge はラウンドトリップ状態Cookieを書き込み、プロバイダーの
// 認可リクエストURLを返す。スキームが未登録の場合はエラーを返す。
func (g *HTTPGateway) BeginChallenge(w http.ResponseWriter, state model.RoundTripState) (string, error) {
	provider, ok := g.registry.Get(state.Scheme)
	if !ok {
		return "", model.NewUnknownProviderError(state.Scheme)
	}

	nonce, err := generateNonce()
	if err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	encoded, err := g.codec.Encode(statePayload{
		Nonce:     nonce,
		ReturnURL: state.ReturnURL,
		Scheme:    state.Scheme,
		ExpiresAt: time.Now().Add(g.config.StateMaxAge).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode round-trip state: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     "/",
		Domain:   g.config.CookieDomain,
		MaxAge:   int(g.config.StateMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   g.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	return provider.AuthCodeURL(nonce), nil
}

// CompleteCallback はコールバックリクエストを処理し、GatewayResultを返す。
// 状態Cookieの検証（署名、期限、nonce一致）に失敗した場合、および
// コード交換に失敗した場合はSucceeded=falseの結果を返す。
// 状態Cookieはどの経路でも必ず削除され、再利用できない。
func (g *HTTPGateway) CompleteCallback(w http.ResponseWriter, r *http.Request) *model.GatewayResult {
	failed := &model.GatewayResult{Succeeded: false}

	cookie, err := r.Cookie(stateCookieName)

	// 状態Cookieは単回使用。結果に関わらずここで消費する。
	g.clearStateCookie(w)

	if err != nil || cookie.Value == "" {
		slog.Warn("external callback without round-trip state cookie")
		return failed
	}

	payload, err := g.codec.Decode(cookie.Value)
	if err != nil {
		slog.Warn("invalid round-trip state", slog.String("error", err.Error()))
		return failed
	}

	query := r.URL.Query()

	if state := query.Get("state"); state == "" || state != payload.Nonce {
		slog.Warn("state nonce mismatch", slog.String("scheme", payload.Scheme))
		return failed
	}

	if errParam := query.Get("error"); errParam != "" {
		slog.Warn("provider returned error",
			slog.String("scheme", payload.Scheme),
			slog.String("provider_error", errParam),
		)
		return failed
	}

	code := query.Get("code")
	if code == "" {
		slog.Warn("external callback without authorization code", slog.String("scheme", payload.Scheme))
		return failed
	}

	provider, ok := g.registry.Get(payload.Scheme)
	if !ok {
		slog.Warn("round-trip state references unregistered scheme", slog.String("scheme", payload.Scheme))
		return failed
	}

	identity, err := provider.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("authorization code exchange failed",
			slog.String("scheme", payload.Scheme),
			slog.String("error", err.Error()),
		)
		return failed
	}

	return &model.GatewayResult{
		Succeeded: true,
		Identity:  identity,
		State: &model.RoundTripState{
			ReturnURL: payload.ReturnURL,
			Scheme:    payload.Scheme,
		},
	}
}

// clearStateCookie は状態Cookieを削除する。
func (g *HTTPGateway) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		Domain:   g.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateNonce は暗号的に安全なstate nonceを生成する。
func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
