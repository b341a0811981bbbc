package handler

import (
	"net/http"

	"github.com/hitoshi/idbridge/internal/middleware"
)

// AccountHandler はアカウント管理のHTTPハンドラー。
type AccountHandler struct {
	accounts AccountServiceInterface
	config   CookieConfig
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(accounts AccountServiceInterface, config CookieConfig) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		config:   config,
	}
}

// Withdraw はアカウントの退会処理を実行する。
// DELETE /api/accounts/me
//
// 全セッションが無効化されるため、処理後にセッションCookieもクリアする。
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.accounts.Withdraw(r.Context(), accountID); err != nil {
		handleServiceError(w, err)
		return
	}

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

	w.WriteHeader(http.StatusNoContent)
}
