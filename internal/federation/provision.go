package federation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/idbridge/internal/events"
	"github.com/hitoshi/idbridge/internal/model"
)

// provisionAccount は外部アイデンティティから新規アカウントを自動登録する。
// ユーザー名はクレーム由来の値を使わず、不透明な一意値（UUID）を生成する。
// アカウント、プロフィールクレーム、外部ログインの紐付けは単一トランザクション
// で作成され、部分的に作成された状態は残らない。
//
// 同時コールバックで他のリクエストが先に紐付けを作成していた場合は、
// 作成をロールバックして既存アカウントを採用する。
func (s *Service) provisionAccount(ctx context.Context, identity *model.ExternalIdentity) (*model.Account, error) {
	prof := deriveProfile(identity.Claims, s.sanitizer)

	// INSERTは全カラムをバインドするため、タイムスタンプはここで確定させる
	now := time.Now()

	account := &model.Account{
		ID:          uuid.New().String(),
		Username:    uuid.New().String(),
		Email:       prof.Email,
		DisplayName: prof.DisplayName,
		PictureURL:  prof.PictureURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	login := &model.ExternalLogin{
		ID:             uuid.New().String(),
		AccountID:      account.ID,
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		CreatedAt:      now,
	}

	claims := filterClaims(identity.Claims, s.sanitizer)

	err := s.accounts.CreateWithLogin(ctx, account, claims, login)
	if errors.Is(err, model.ErrExternalLoginExists) {
		// 同時コールバックの競合。先行リクエストが作成したアカウントを採用する。
		existing, findErr := s.accounts.FindByExternalLogin(ctx, identity.Provider, identity.ProviderUserID)
		if findErr != nil {
			return nil, fmt.Errorf("failed to re-resolve after provisioning race: %w", findErr)
		}
		if existing == nil {
			return nil, fmt.Errorf("external login reported as existing but not found")
		}
		slog.Info("provisioning race resolved to existing account",
			slog.String("provider", identity.Provider),
			slog.String("account_id", existing.ID),
		)
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to provision account: %w", err)
	}

	slog.Info("account provisioned",
		slog.String("provider", identity.Provider),
		slog.String("account_id", account.ID),
	)
	s.recorder.Record(ctx, events.TypeAccountProvisioned, events.LoginEvent{
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		AccountID:      account.ID,
		DisplayName:    account.DisplayName,
	})
	s.metrics.RecordAccountProvisioned(identity.Provider)

	return account, nil
}
