// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ClaimSanitizerService は外部IdPから受け取ったプロフィールクレーム値を
// 永続化前にサニタイズし、ストアドXSS等のリスクからユーザーを保護する。
// クレーム値は検証済みアサーションに含まれるとはいえ、プロバイダー上で
// ユーザー自身が自由に設定できる値であり、信頼できない入力として扱う。
package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxClaimValueLength はサニタイズ後のクレーム値の最大長。
// 表示名やメールアドレスとして常識的な上限を超える値は切り詰める。
const maxClaimValueLength = 256

// ClaimSanitizerService はクレーム値のサニタイズ機能のインターフェースを定義する。
type ClaimSanitizerService interface {
	// SanitizeText はテキストクレーム値（表示名等）をサニタイズする。
	// 全てのHTMLタグを除去し、前後の空白をトリムし、最大長で切り詰める。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(value string) string

	// SanitizePictureURL はpictureクレームのURLを検証する。
	// http/httpsの絶対URLのみ許可し、それ以外は空文字列を返す。
	SanitizePictureURL(value string) string
}

// claimSanitizer はClaimSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type claimSanitizer struct {
	policy *bluemonday.Policy
}

// NewClaimSanitizer はClaimSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全てのタグと属性を除去し、テキストのみを残す。
func NewClaimSanitizer() *claimSanitizer {
	return &claimSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はテキストクレーム値をサニタイズする。
func (s *claimSanitizer) SanitizeText(value string) string {
	cleaned := strings.TrimSpace(s.policy.Sanitize(value))
	if len(cleaned) > maxClaimValueLength {
		cleaned = cleaned[:maxClaimValueLength]
	}
	return cleaned
}

// SanitizePictureURL はpictureクレームのURLを検証する。
// スキームがhttp/https以外、相対URL、パース不能なURLは空文字列に落とす。
func (s *claimSanitizer) SanitizePictureURL(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return ""
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	if parsed.Host == "" {
		return ""
	}

	if len(value) > maxClaimValueLength {
		return ""
	}

	return value
}

// compile-time interface check
var _ ClaimSanitizerService = (*claimSanitizer)(nil)
