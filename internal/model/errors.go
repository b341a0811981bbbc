package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRedirect   = "INVALID_REDIRECT"
	ErrCodeUnknownProvider   = "UNKNOWN_PROVIDER"
	ErrCodeExternalAuth      = "EXTERNAL_AUTH_FAILED"
	ErrCodeProvisioning      = "PROVISIONING_FAILED"
	ErrCodeDuplicateUsername = "DUPLICATE_USERNAME"
	ErrCodeProfileSync       = "PROFILE_SYNC_FAILED"
	ErrCodeSessionEstablish  = "SESSION_ESTABLISH_FAILED"
	ErrCodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
)

// ErrExternalLoginExists は (provider, provider_user_id) の紐付けが既に存在する
// ことを示すセンチネルエラー。同時コールバックの競合時にストア層が返し、
// 呼び出し側は再検索で既存アカウントを採用する。
var ErrExternalLoginExists = errors.New("external login already exists")

// NewInvalidRedirectError は信頼できないリダイレクト先エラーを生成する。
// オープンリダイレクト攻撃の可能性があるため、チャレンジは中断される。
func NewInvalidRedirectError(returnURL string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRedirect,
		Message:  fmt.Sprintf("許可されていないリダイレクト先です: %s", returnURL),
		Category: "validation",
		Action:   "アプリケーション内のリンクからログインをやり直してください。",
	}
}

// NewUnknownProviderError は未登録のIdPスキームエラーを生成する。
func NewUnknownProviderError(scheme string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownProvider,
		Message:  fmt.Sprintf("未登録の認証プロバイダーです: %s", scheme),
		Category: "validation",
		Action:   "サポートされているログイン方法を選択してください。",
	}
}

// NewExternalAuthError は外部認証失敗エラーを生成する。
// 列挙攻撃を防ぐため、失敗理由の詳細は含めない（詳細はログにのみ記録する）。
func NewExternalAuthError() *APIError {
	return &APIError{
		Code:     ErrCodeExternalAuth,
		Message:  "外部プロバイダーでの認証に失敗しました。",
		Category: "auth",
		Action:   "ログインをやり直してください。",
	}
}

// NewProvisioningError はアカウント自動登録失敗エラーを生成する。
func NewProvisioningError() *APIError {
	return &APIError{
		Code:     ErrCodeProvisioning,
		Message:  "アカウントの作成に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewDuplicateUsernameError はユーザー名の一意性違反エラーを生成する。
// オーケストレーターにはPROVISIONING_FAILEDとして伝搬する。
func NewDuplicateUsernameError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  "ユーザー名が重複しています。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewProfileSyncError はプロフィール同期失敗エラーを生成する。
func NewProfileSyncError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileSync,
		Message:  "プロフィールの更新に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSessionEstablishError はセッション発行失敗エラーを生成する。
func NewSessionEstablishError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionEstablish,
		Message:  "セッションの発行に失敗しました。",
		Category: "auth",
		Action:   "ログインをやり直してください。",
	}
}

// NewAccountNotFoundError はアカウントが見つからない場合のエラーを生成する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "アカウントが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
