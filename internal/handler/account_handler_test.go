package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/idbridge/internal/model"
)

func newTestAccountHandler(accounts *mockAccountService) *AccountHandler {
	return NewAccountHandler(accounts, CookieConfig{
		CookieSecure:  true,
		SessionMaxAge: 86400,
	})
}

// --- DELETE /api/accounts/me テスト ---

func TestAccountHandler_Withdraw_Success(t *testing.T) {
	withdrawCalled := false
	accounts := &mockAccountService{
		withdrawFn: func(ctx context.Context, accountID string) error {
			withdrawCalled = true
			if accountID != "account-123" {
				t.Errorf("accountID = %q, want %q", accountID, "account-123")
			}
			return nil
		},
	}

	h := newTestAccountHandler(accounts)

	req := httptest.NewRequest(http.MethodDelete, "/api/accounts/me", nil)
	req = withSession(req, "account-123", "session-1")
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if !withdrawCalled {
		t.Error("expected Withdraw to be called")
	}
	if clearedSessionCookie(resp) == nil {
		t.Error("session cookie should be cleared after withdrawal")
	}
}

func TestAccountHandler_Withdraw_NoSession_Returns401(t *testing.T) {
	h := newTestAccountHandler(&mockAccountService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/accounts/me", nil)
	// アカウントIDを注入しない
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestAccountHandler_Withdraw_AccountNotFound_Returns404(t *testing.T) {
	accounts := &mockAccountService{
		withdrawFn: func(ctx context.Context, accountID string) error {
			return model.NewAccountNotFoundError()
		},
	}

	h := newTestAccountHandler(accounts)

	req := httptest.NewRequest(http.MethodDelete, "/api/accounts/me", nil)
	req = withSession(req, "account-123", "session-1")
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestAccountHandler_Withdraw_InternalError_Returns500(t *testing.T) {
	accounts := &mockAccountService{
		withdrawFn: func(ctx context.Context, accountID string) error {
			return errors.New("transaction failed")
		},
	}

	h := newTestAccountHandler(accounts)

	req := httptest.NewRequest(http.MethodDelete, "/api/accounts/me", nil)
	req = withSession(req, "account-123", "session-1")
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}
