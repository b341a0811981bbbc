package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/idbridge/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	account := &model.Account{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, display_name, picture_url, created_at, updated_at
		 FROM accounts WHERE id = $1`,
		id,
	).Scan(&account.ID, &account.Username, &account.Email, &account.DisplayName,
		&account.PictureURL, &account.CreatedAt, &account.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}

	return account, nil
}

// FindByExternalLogin は (provider, providerUserID) でアカウントを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByExternalLogin(ctx context.Context, provider, providerUserID string) (*model.Account, error) {
	account := &model.Account{}
	err := r.db.QueryRowContext(ctx,
		`SELECT a.id, a.username, a.email, a.display_name, a.picture_url, a.created_at, a.updated_at
		 FROM accounts a
		 JOIN external_logins l ON l.account_id = a.id
		 WHERE l.provider = $1 AND l.provider_user_id = $2`,
		provider, providerUserID,
	).Scan(&account.ID, &account.Username, &account.Email, &account.DisplayName,
		&account.PictureURL, &account.CreatedAt, &account.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by external login: %w", err)
	}

	return account, nil
}

// CreateWithLogin はアカウント、クレーム、外部ログインを同一トランザクションで作成する。
// external_loginsへのINSERTはON CONFLICT DO NOTHINGで行い、既存の紐付けが
// 検出された場合は全体をロールバックして model.ErrExternalLoginExists を返す。
// これにより同一 (provider, provider_user_id) への同時プロビジョニングは
// ストア層で直列化され、重複アカウントは作られない。
func (r *PostgresAccountRepo) CreateWithLogin(ctx context.Context, account *model.Account, claims []model.Claim, login *model.ExternalLogin) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// アカウントを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, username, email, display_name, picture_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.ID, account.Username, account.Email, account.DisplayName,
		account.PictureURL, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	// プロフィールクレームを作成
	for _, c := range claims {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_claims (account_id, claim_type, claim_value)
			 VALUES ($1, $2, $3)`,
			account.ID, c.Type, c.Value,
		)
		if err != nil {
			return fmt.Errorf("failed to insert account claim: %w", err)
		}
	}

	// 外部ログインの紐付けを作成。
	// アカウントはこの紐付けが作られて初めてリゾルバーから見えるようになる。
	result, err := tx.ExecContext(ctx,
		`INSERT INTO external_logins (id, account_id, provider, provider_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (provider, provider_user_id) DO NOTHING`,
		login.ID, login.AccountID, login.Provider, login.ProviderUserID, login.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert external login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// 別のコールバックが先に紐付けを作成した。ロールバックして競合を通知する。
		return model.ErrExternalLoginExists
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update はアカウントのプロフィールフィールドを更新する。
func (r *PostgresAccountRepo) Update(ctx context.Context, account *model.Account) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET email = $2, display_name = $3, picture_url = $4, updated_at = $5
		 WHERE id = $1`,
		account.ID, account.Email, account.DisplayName, account.PictureURL, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %s", account.ID)
	}
	return nil
}

// ReplaceClaim はアカウントの指定タイプのクレーム値を置き換える。
// 旧クレームが存在しない場合は新クレームを追加する。
func (r *PostgresAccountRepo) ReplaceClaim(ctx context.Context, accountID string, oldClaim, newClaim model.Claim) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE account_claims
		 SET claim_value = $4
		 WHERE account_id = $1 AND claim_type = $2 AND claim_value = $3`,
		accountID, oldClaim.Type, oldClaim.Value, newClaim.Value,
	)
	if err != nil {
		return fmt.Errorf("failed to replace claim: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO account_claims (account_id, claim_type, claim_value)
			 VALUES ($1, $2, $3)`,
			accountID, newClaim.Type, newClaim.Value,
		)
		if err != nil {
			return fmt.Errorf("failed to insert replacement claim: %w", err)
		}
	}

	return nil
}

// ListClaims はアカウントに紐付くクレーム一覧を返す。
func (r *PostgresAccountRepo) ListClaims(ctx context.Context, accountID string) ([]model.Claim, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT claim_type, claim_value FROM account_claims
		 WHERE account_id = $1 ORDER BY id`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		var c model.Claim
		if err := rows.Scan(&c.Type, &c.Value); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claims: %w", err)
	}

	return claims, nil
}

// DeleteByID は指定IDのアカウントを削除する。
// 関連するaccount_claims、external_loginsはCASCADE削除される。
func (r *PostgresAccountRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
