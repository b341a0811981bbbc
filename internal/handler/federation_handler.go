// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/idbridge/internal/events"
	"github.com/hitoshi/idbridge/internal/metrics"
	"github.com/hitoshi/idbridge/internal/middleware"
	"github.com/hitoshi/idbridge/internal/model"
)

// FederationServiceInterface は外部ログインハンドラーが必要とするサービスインターフェース。
type FederationServiceInterface interface {
	// Challenge はリダイレクト先を検証し、ラウンドトリップ状態を構築する。
	Challenge(scheme, returnURL string) (model.RoundTripState, error)
	// Callback はゲートウェイのコールバック結果を処理し、セッションとリダイレクト先を返す。
	Callback(ctx context.Context, result *model.GatewayResult) (*model.Session, string, error)
}

// GatewayInterface は外部IdPとのハンドシェイクを実行するゲートウェイのインターフェース。
type GatewayInterface interface {
	// BeginChallenge はラウンドトリップ状態Cookieを書き込み、認可リクエストURLを返す。
	BeginChallenge(w http.ResponseWriter, state model.RoundTripState) (string, error)
	// CompleteCallback はコールバックリクエストを検証し、ハンドシェイクの結果を返す。
	CompleteCallback(w http.ResponseWriter, r *http.Request) *model.GatewayResult
}

// CookieConfig はセッションCookieの設定。
type CookieConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// FederationHandler は外部ログインフローのHTTPハンドラー。
// チャレンジ開始とコールバック処理の2つのエンドポイントを提供する。
type FederationHandler struct {
	service  FederationServiceInterface
	gateway  GatewayInterface
	metrics  metrics.MetricsCollector
	recorder events.Recorder
	config   CookieConfig
}

// NewFederationHandler はFederationHandlerを生成する。
func NewFederationHandler(
	service FederationServiceInterface,
	gateway GatewayInterface,
	collector metrics.MetricsCollector,
	recorder events.Recorder,
	config CookieConfig,
) *FederationHandler {
	return &FederationHandler{
		service:  service,
		gateway:  gateway,
		metrics:  collector,
		recorder: recorder,
		config:   config,
	}
}

// Challenge は外部IdPへのログインチャレンジを開始する。
// GET /external/challenge?provider=xxx&returnUrl=yyy
func (h *FederationHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	scheme := query.Get("provider")
	returnURL := query.Get("returnUrl")

	h.metrics.RecordLoginAttempt(scheme)

	state, err := h.service.Challenge(scheme, returnURL)
	if err != nil {
		h.metrics.RecordLoginFailure(scheme, failureReason(err))
		h.recordChallengeFailure(r.Context(), scheme, err)
		handleServiceError(w, err)
		return
	}

	authURL, err := h.gateway.BeginChallenge(w, state)
	if err != nil {
		h.metrics.RecordLoginFailure(scheme, failureReason(err))
		h.recordChallengeFailure(r.Context(), scheme, err)
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback は外部IdPからのコールバックを処理する。
// GET /external/callback?code=xxx&state=yyy
//
// ハンドシェイク結果の検証、アカウント解決、セッション発行まで成功した場合のみ
// セッションCookieを設定し、チャレンジ時に検証済みのリダイレクト先へ転送する。
func (h *FederationHandler) Callback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	result := h.gateway.CompleteCallback(w, r)
	provider := callbackProvider(result)

	session, returnURL, err := h.service.Callback(r.Context(), result)
	if err != nil {
		h.metrics.RecordLoginFailure(provider, failureReason(err))
		writeCallbackError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.RecordLoginSuccess(provider)
	h.metrics.RecordCallbackLatency(time.Since(start))

	http.Redirect(w, r, returnURL, http.StatusFound)
}

// callbackProvider はコールバック結果からプロバイダー名を取り出す。
// 失敗結果でアイデンティティがない場合は "unknown" を返す。
func callbackProvider(result *model.GatewayResult) string {
	if result != nil && result.Identity != nil {
		return result.Identity.Provider
	}
	if result != nil && result.State != nil {
		return result.State.Scheme
	}
	return "unknown"
}

// failureReason はメトリクスのreasonラベルに使うエラーコードを返す。
func failureReason(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "INTERNAL_ERROR"
}

// recordChallengeFailure はチャレンジ段階で終端した失敗を監査イベントに記録する。
// コールバック段階の失敗はサービス層が記録するため、ここではチャレンジ段階のみ扱う。
func (h *FederationHandler) recordChallengeFailure(ctx context.Context, scheme string, err error) {
	h.recorder.Record(ctx, events.TypeLoginFailure, events.LoginEvent{
		Provider: scheme,
		Reason:   challengeFailureReason(err),
	})
}

// challengeFailureReason は監査イベントに残すチャレンジ失敗の理由を返す。
func challengeFailureReason(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeInvalidRedirect:
			return "untrusted return URL"
		case model.ErrCodeUnknownProvider:
			return "unknown provider"
		}
	}
	return "challenge failed"
}

// writeCallbackError はコールバック失敗時のレスポンスを書き込む。
// 外部認証失敗は401、それ以外の終端失敗は一律の内部エラーとして返す。
// 失敗の内訳はログ・監査イベント・メトリクスにのみ残し、レスポンスから
// アカウントのリンク状態を推測できないようにする。
func writeCallbackError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if apiErr.Code == model.ErrCodeExternalAuth {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
		return
	}

	middleware.WriteInternalServerError(w)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRedirect, model.ErrCodeUnknownProvider:
		return http.StatusBadRequest
	case model.ErrCodeExternalAuth:
		return http.StatusUnauthorized
	case model.ErrCodeDuplicateUsername:
		return http.StatusConflict
	case model.ErrCodeAccountNotFound:
		return http.StatusNotFound
	case model.ErrCodeProvisioning, model.ErrCodeProfileSync, model.ErrCodeSessionEstablish:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
