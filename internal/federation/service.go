// Package federation は外部IdPアサーションをローカルアカウントとセッションに
// 変換するログインフローのオーケストレーションを提供する。
//
// チャレンジ時にリダイレクト先を検証してラウンドトリップ状態を構築し、
// コールバック時に外部アイデンティティをアカウントに解決（未リンクなら
// 自動登録）、プロフィールを同期し、セッションを発行する。
package federation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/idbridge/internal/events"
	"github.com/hitoshi/idbridge/internal/metrics"
	"github.com/hitoshi/idbridge/internal/model"
	"github.com/hitoshi/idbridge/internal/redirect"
	"github.com/hitoshi/idbridge/internal/repository"
	"github.com/hitoshi/idbridge/internal/security"
)

// Service は外部ログインフローのオーケストレーター。
type Service struct {
	accounts      repository.AccountRepository
	sessions      repository.SessionRepository
	recorder      events.Recorder
	metrics       metrics.MetricsCollector
	validator     *redirect.Validator
	sanitizer     security.ClaimSanitizerService
	sessionMaxAge time.Duration
}

// NewService はServiceを生成する。
func NewService(
	accounts repository.AccountRepository,
	sessions repository.SessionRepository,
	recorder events.Recorder,
	collector metrics.MetricsCollector,
	validator *redirect.Validator,
	sanitizer security.ClaimSanitizerService,
	sessionMaxAge time.Duration,
) *Service {
	return &Service{
		accounts:      accounts,
		sessions:      sessions,
		recorder:      recorder,
		metrics:       collector,
		validator:     validator,
		sanitizer:     sanitizer,
		sessionMaxAge: sessionMaxAge,
	}
}

// Challenge はチャレンジ開始時のラウンドトリップ状態を構築する。
// returnURLが空の場合はアプリケーションルート "/" にフォールバックする。
// 信頼できないリダイレクト先の場合はエラーを返し、チャレンジは開始されない。
func (s *Service) Challenge(scheme, returnURL string) (model.RoundTripState, error) {
	if returnURL == "" {
		returnURL = "/"
	}

	if !s.validator.Validate(returnURL) {
		slog.Warn("challenge rejected for untrusted return URL",
			slog.String("scheme", scheme),
			slog.String("return_url", returnURL),
		)
		return model.RoundTripState{}, model.NewInvalidRedirectError(returnURL)
	}

	return model.RoundTripState{
		ReturnURL: returnURL,
		Scheme:    scheme,
	}, nil
}

// Callback はゲートウェイのコールバック結果を処理し、セッションと
// リダイレクト先を返す。
//
// ゲートウェイ失敗時は外部認証エラー。成功時は (provider, providerUserID) で
// アカウントを解決し、未リンクなら自動登録、リンク済みならプロフィールを
// 同期した上でセッションを発行する。ラウンドトリップ状態のリダイレクト先は
// ここで再検証され、信頼できない場合は "/" に落とす。
func (s *Service) Callback(ctx context.Context, result *model.GatewayResult) (*model.Session, string, error) {
	if result == nil || !result.Succeeded {
		s.recorder.Record(ctx, events.TypeLoginFailure, events.LoginEvent{
			Reason: "external authentication failed",
		})
		return nil, "", model.NewExternalAuthError()
	}

	identity := result.Identity

	account, err := s.accounts.FindByExternalLogin(ctx, identity.Provider, identity.ProviderUserID)
	if err != nil {
		// ストア障害は認証失敗ではないため、5xx系のエラーとして返す
		slog.Error("failed to resolve external login",
			slog.String("provider", identity.Provider),
			slog.String("error", err.Error()),
		)
		s.recordFailure(ctx, identity, "identity resolution failed")
		return nil, "", model.NewProvisioningError()
	}

	if account == nil {
		account, err = s.provisionAccount(ctx, identity)
		if err != nil {
			slog.Error("account provisioning failed",
				slog.String("provider", identity.Provider),
				slog.String("error", err.Error()),
			)
			s.recordFailure(ctx, identity, "provisioning failed")
			return nil, "", model.NewProvisioningError()
		}
	} else {
		if err := s.syncProfile(ctx, account, identity); err != nil {
			slog.Error("profile synchronization failed",
				slog.String("provider", identity.Provider),
				slog.String("account_id", account.ID),
				slog.String("error", err.Error()),
			)
			s.recordFailure(ctx, identity, "profile sync failed")
			return nil, "", model.NewProfileSyncError()
		}
	}

	session, err := s.establishSession(ctx, account, identity)
	if err != nil {
		slog.Error("session establishment failed",
			slog.String("provider", identity.Provider),
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		s.recordFailure(ctx, identity, "session establishment failed")
		return nil, "", model.NewSessionEstablishError()
	}

	s.recorder.Record(ctx, events.TypeLoginSuccess, events.LoginEvent{
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		AccountID:      account.ID,
		DisplayName:    account.DisplayName,
	})
	slog.Info("external login completed",
		slog.String("provider", identity.Provider),
		slog.String("account_id", account.ID),
	)

	return session, s.resolveRedirect(result.State), nil
}

// establishSession はマージ済みクレームセットでセッションを発行する。
// クレームには外部クレーム（subを除く）と、どのIdP経由かを示すidpクレームを含む。
func (s *Service) establishSession(ctx context.Context, account *model.Account, identity *model.ExternalIdentity) (*model.Session, error) {
	claims := filterClaims(identity.Claims, s.sanitizer)
	claims = append(claims, model.Claim{Type: model.ClaimIdP, Value: identity.Provider})

	now := time.Now()
	session := &model.Session{
		ID:          uuid.New().String(),
		AccountID:   account.ID,
		DisplayName: account.DisplayName,
		Claims:      claims,
		ExpiresAt:   now.Add(s.sessionMaxAge),
		CreatedAt:   now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// resolveRedirect はラウンドトリップ状態のリダイレクト先を再検証する。
// 状態は改ざんされうるため、検証に失敗した場合は "/" に落とす。
func (s *Service) resolveRedirect(state *model.RoundTripState) string {
	if state == nil || state.ReturnURL == "" {
		return "/"
	}
	if !s.validator.Validate(state.ReturnURL) {
		slog.Warn("untrusted return URL in round-trip state, falling back to root",
			slog.String("return_url", state.ReturnURL),
		)
		return "/"
	}
	return state.ReturnURL
}

// recordFailure はログイン失敗イベントを記録する。
func (s *Service) recordFailure(ctx context.Context, identity *model.ExternalIdentity, reason string) {
	s.recorder.Record(ctx, events.TypeLoginFailure, events.LoginEvent{
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		Reason:         reason,
	})
}
