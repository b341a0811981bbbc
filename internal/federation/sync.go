package federation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/idbridge/internal/model"
)

// syncProfile は既存アカウントのプロフィール属性を外部クレームと同期する。
// 属性ごとに独立して比較・更新する冪等な操作で、外部の値が空の場合は
// ローカルの値を保持する（削除はしない）。変更が無ければストアへの
// 書き込みは一切発生しない。
//
// クレーム置換とアカウント更新は属性単位で対にして実行する。後続属性の
// 書き込みが失敗しても、適用済みの属性はクレームとアカウントの両方に
// 反映された状態で残る。
func (s *Service) syncProfile(ctx context.Context, account *model.Account, identity *model.ExternalIdentity) error {
	prof := deriveProfile(identity.Claims, s.sanitizer)

	changed := false

	if prof.DisplayName != "" && prof.DisplayName != account.DisplayName {
		old := account.DisplayName
		account.DisplayName = prof.DisplayName
		account.UpdatedAt = time.Now()
		if err := s.accounts.ReplaceClaim(ctx, account.ID,
			model.Claim{Type: model.ClaimName, Value: old},
			model.Claim{Type: model.ClaimName, Value: prof.DisplayName},
		); err != nil {
			return fmt.Errorf("failed to replace name claim: %w", err)
		}
		if err := s.accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("failed to update account profile: %w", err)
		}
		changed = true
	}

	if prof.PictureURL != "" && prof.PictureURL != account.PictureURL {
		old := account.PictureURL
		account.PictureURL = prof.PictureURL
		account.UpdatedAt = time.Now()
		if err := s.accounts.ReplaceClaim(ctx, account.ID,
			model.Claim{Type: model.ClaimPicture, Value: old},
			model.Claim{Type: model.ClaimPicture, Value: prof.PictureURL},
		); err != nil {
			return fmt.Errorf("failed to replace picture claim: %w", err)
		}
		if err := s.accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("failed to update account profile: %w", err)
		}
		changed = true
	}

	if !changed {
		return nil
	}

	slog.Info("profile synchronized",
		slog.String("provider", identity.Provider),
		slog.String("account_id", account.ID),
	)
	return nil
}
