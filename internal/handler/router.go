package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/idbridge/internal/events"
	"github.com/hitoshi/idbridge/internal/metrics"
	"github.com/hitoshi/idbridge/internal/middleware"
)

// HealthChecker はヘルスチェックでのDB疎通確認に必要なインターフェース。
// *sql.DB がそのまま実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ヘルスチェック
	HealthChecker HealthChecker

	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 外部ログインフロー
	FederationService FederationServiceInterface
	Gateway           GatewayInterface

	// アカウント・セッション管理
	AccountService AccountServiceInterface
	SessionRevoker SessionRevoker

	// 監査・メトリクス
	Recorder events.Recorder
	Metrics  metrics.MetricsCollector

	// セッションCookie
	CookieConfig CookieConfig
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging
//
// チャレンジ・コールバックエンドポイントは認証前のため、セッションミドルウェアの
// 外に配置する。チャレンジにはIP単位のレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))

	fedHandler := NewFederationHandler(deps.FederationService, deps.Gateway, deps.Metrics, deps.Recorder, deps.CookieConfig)
	sessionHandler := NewSessionHandler(deps.SessionRevoker, deps.AccountService, deps.Recorder, deps.CookieConfig)
	accountHandler := NewAccountHandler(deps.AccountService, deps.CookieConfig)

	// --- 認証不要のルート ---

	r.Get("/healthz", newHealthzHandler(deps.HealthChecker))
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 外部ログインフロー
	r.Route("/external", func(r chi.Router) {
		r.With(deps.RateLimiter.ChallengeMiddleware()).Get("/challenge", fedHandler.Challenge)
		r.Get("/callback", fedHandler.Callback)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// セッション管理
		r.Route("/auth", func(r chi.Router) {
			r.Post("/logout", sessionHandler.Logout)
			r.Get("/me", sessionHandler.Me)
		})

		// アカウント管理
		r.Route("/api/accounts", func(r chi.Router) {
			r.Delete("/me", accountHandler.Withdraw)
		})
	})

	return r
}

// newHealthzHandler はヘルスチェックエンドポイントのハンドラーを返す。
// GET /healthz
// DBへの疎通確認に失敗した場合は503を返す。
func newHealthzHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
