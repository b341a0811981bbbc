package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/idbridge/internal/account"
	"github.com/hitoshi/idbridge/internal/events"
	"github.com/hitoshi/idbridge/internal/middleware"
	"github.com/hitoshi/idbridge/internal/model"
)

// --- モック定義 ---

// mockSessionRevoker はSessionRevokerのモック実装。
type mockSessionRevoker struct {
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRevoker) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

// mockAccountService はAccountServiceInterfaceのモック実装。
type mockAccountService struct {
	profileFn  func(ctx context.Context, accountID string) (*account.Profile, error)
	withdrawFn func(ctx context.Context, accountID string) error
}

func (m *mockAccountService) Profile(ctx context.Context, accountID string) (*account.Profile, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, accountID)
	}
	return nil, model.NewAccountNotFoundError()
}

func (m *mockAccountService) Withdraw(ctx context.Context, accountID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, accountID)
	}
	return nil
}

// mockEventRecorder はevents.Recorderのモック実装。
type mockEventRecorder struct {
	recorded []string
}

func (m *mockEventRecorder) Record(ctx context.Context, eventType string, event events.LoginEvent) {
	m.recorded = append(m.recorded, eventType)
}

// withSession はリクエストコンテキストに認証済みセッションを注入する。
func withSession(req *http.Request, accountID, sessionID string) *http.Request {
	ctx := middleware.ContextWithAccountID(req.Context(), accountID)
	ctx = middleware.ContextWithSessionID(ctx, sessionID)
	return req.WithContext(ctx)
}

func newTestSessionHandler(sessions *mockSessionRevoker, accounts *mockAccountService, recorder *mockEventRecorder) *SessionHandler {
	return NewSessionHandler(sessions, accounts, recorder, CookieConfig{
		CookieSecure:  true,
		SessionMaxAge: 86400,
	})
}

// clearedSessionCookie はレスポンスから削除指示されたセッションCookieを探す。
func clearedSessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName && c.MaxAge < 0 {
			return c
		}
	}
	return nil
}

// --- POST /auth/logout テスト ---

func TestSessionHandler_Logout_DeletesSessionAndClearsCookie(t *testing.T) {
	var deletedID string
	sessions := &mockSessionRevoker{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	recorder := &mockEventRecorder{}
	h := newTestSessionHandler(sessions, &mockAccountService{}, recorder)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req = withSession(req, "account-1", "session-1")
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if deletedID != "session-1" {
		t.Errorf("deleted session = %q, want %q", deletedID, "session-1")
	}
	if clearedSessionCookie(resp) == nil {
		t.Error("session cookie should be cleared")
	}
	if len(recorder.recorded) != 1 || recorder.recorded[0] != events.TypeLogout {
		t.Errorf("recorded events = %v, want [logout]", recorder.recorded)
	}
}

func TestSessionHandler_Logout_DeleteFailure_StillClearsCookie(t *testing.T) {
	sessions := &mockSessionRevoker{
		deleteByIDFn: func(ctx context.Context, id string) error {
			return errors.New("db error")
		},
	}
	h := newTestSessionHandler(sessions, &mockAccountService{}, &mockEventRecorder{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req = withSession(req, "account-1", "session-1")
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if clearedSessionCookie(resp) == nil {
		t.Error("session cookie should be cleared even if deletion fails")
	}
}

func TestSessionHandler_Logout_NoSession_Returns401(t *testing.T) {
	h := newTestSessionHandler(&mockSessionRevoker{}, &mockAccountService{}, &mockEventRecorder{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	// セッションIDを注入しない
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

// --- GET /auth/me テスト ---

func TestSessionHandler_Me_ReturnsProfile(t *testing.T) {
	accounts := &mockAccountService{
		profileFn: func(ctx context.Context, accountID string) (*account.Profile, error) {
			return &account.Profile{
				Account: &model.Account{
					ID:          accountID,
					Username:    "b1946ac9-2a3c-4a1e-9f5b-0d7e8c9f0a1b",
					Email:       "ada@example.com",
					DisplayName: "Ada Lovelace",
					PictureURL:  "https://cdn.example.com/ada.png",
				},
				Claims: []model.Claim{
					{Type: model.ClaimName, Value: "Ada Lovelace"},
					{Type: model.ClaimIdP, Value: "Google"},
				},
			}, nil
		},
	}
	h := newTestSessionHandler(&mockSessionRevoker{}, accounts, &mockEventRecorder{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = withSession(req, "account-1", "session-1")
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ID != "account-1" {
		t.Errorf("id = %q, want %q", body.ID, "account-1")
	}
	if body.DisplayName != "Ada Lovelace" {
		t.Errorf("display_name = %q", body.DisplayName)
	}
	if len(body.Claims) != 2 {
		t.Errorf("claims = %d, want 2", len(body.Claims))
	}
}

func TestSessionHandler_Me_AccountNotFound_Returns404(t *testing.T) {
	h := newTestSessionHandler(&mockSessionRevoker{}, &mockAccountService{}, &mockEventRecorder{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = withSession(req, "deleted-account", "session-1")
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestSessionHandler_Me_NoSession_Returns401(t *testing.T) {
	h := newTestSessionHandler(&mockSessionRevoker{}, &mockAccountService{}, &mockEventRecorder{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}
