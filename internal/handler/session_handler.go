package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/idbridge/internal/account"
	"github.com/hitoshi/idbridge/internal/events"
	"github.com/hitoshi/idbridge/internal/middleware"
	"github.com/hitoshi/idbridge/internal/model"
)

// SessionRevoker はセッション破棄のためのインターフェース。
// ログアウト処理で使用する。
type SessionRevoker interface {
	DeleteByID(ctx context.Context, id string) error
}

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// Profile はアカウントのプロフィールとクレーム一覧を返す。
	Profile(ctx context.Context, accountID string) (*account.Profile, error)
	// Withdraw はアカウントの退会処理を実行する。
	Withdraw(ctx context.Context, accountID string) error
}

// SessionHandler はセッション管理のHTTPハンドラー。
type SessionHandler struct {
	sessions SessionRevoker
	accounts AccountServiceInterface
	recorder events.Recorder
	config   CookieConfig
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(
	sessions SessionRevoker,
	accounts AccountServiceInterface,
	recorder events.Recorder,
	config CookieConfig,
) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		accounts: accounts,
		recorder: recorder,
		config:   config,
	}
}

// claimResponse はクレームのAPIレスポンス。
type claimResponse struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	DisplayName string          `json:"display_name"`
	PictureURL  string          `json:"picture_url"`
	Claims      []claimResponse `json:"claims"`
}

// Logout は現在のセッションを破棄する。
// POST /auth/logout
//
// セッションの削除に失敗してもCookieはクリアし、クライアント側のログアウトは成立させる。
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.sessions.DeleteByID(r.Context(), sessionID); err != nil {
		slog.Error("failed to delete session on logout",
			slog.String("error", err.Error()),
		)
	}

	accountID, _ := middleware.AccountIDFromContext(r.Context())
	h.recorder.Record(r.Context(), events.TypeLogout, events.LoginEvent{
		AccountID: accountID,
	})

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在ログイン中のアカウントのプロフィールを返す。
// GET /auth/me
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	profile, err := h.accounts.Profile(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	claims := make([]claimResponse, len(profile.Claims))
	for i, c := range profile.Claims {
		claims[i] = claimResponse{Type: c.Type, Value: c.Value}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profileResponse{
		ID:          profile.Account.ID,
		Username:    profile.Account.Username,
		Email:       profile.Account.Email,
		DisplayName: profile.Account.DisplayName,
		PictureURL:  profile.Account.PictureURL,
		Claims:      claims,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func (h *SessionHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeUnauthorized は認証必須エンドポイントの401レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}
