// Package account はローカルアカウント管理のドメインロジックを提供する。
package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/idbridge/internal/events"
	"github.com/hitoshi/idbridge/internal/model"
	"github.com/hitoshi/idbridge/internal/repository"
)

// Profile はアカウントのプロフィール表現。
// /auth/me および退会前の確認画面で返す。
type Profile struct {
	Account *model.Account
	Claims  []model.Claim
}

// Service はアカウント管理のサービス層。
// プロフィール参照と退会処理のビジネスロジックを提供する。
type Service struct {
	accounts repository.AccountRepository
	sessions repository.SessionRepository
	recorder events.Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	accounts repository.AccountRepository,
	sessions repository.SessionRepository,
	recorder events.Recorder,
) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		recorder: recorder,
	}
}

// Profile は指定アカウントのプロフィールとクレーム一覧を返す。
func (s *Service) Profile(ctx context.Context, accountID string) (*Profile, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError()
	}

	claims, err := s.accounts.ListClaims(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}

	return &Profile{Account: account, Claims: claims}, nil
}

// Withdraw はアカウントの退会処理を実行する。
// 削除順序: sessions → account（+ CASCADE: account_claims, external_logins）
// 全セッションが無効化されるため、他デバイスのログインも同時に失効する。
func (s *Service) Withdraw(ctx context.Context, accountID string) error {
	// アカウント存在確認
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return model.NewAccountNotFoundError()
	}

	slog.Info("account withdrawal started",
		slog.String("account_id", accountID),
	)

	// 1. 全セッションを削除
	if err := s.sessions.DeleteByAccountID(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	// 2. アカウントを削除（account_claims, external_loginsはCASCADE削除）
	if err := s.accounts.DeleteByID(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	s.recorder.Record(ctx, events.TypeAccountWithdrawn, events.LoginEvent{
		AccountID: accountID,
	})
	slog.Info("account withdrawal completed",
		slog.String("account_id", accountID),
	)

	return nil
}
