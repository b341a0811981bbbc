// Package redirect はログイン後リダイレクト先の検証を提供する。
//
// オープンリダイレクト攻撃を防ぐため、リダイレクト先は
// (1) アプリケーション内の相対パス、または
// (2) 登録済みクライアントのリダイレクトURL
// のいずれかに一致する場合のみ許可される。
// ラウンドトリップ状態は攻撃者が改ざん可能なため、
// チャレンジ時とコールバック時の両方で再検証する必要がある。
package redirect

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Validator はリダイレクト先URLの検証器。副作用のない純粋な述語として動作する。
type Validator struct {
	// 正規化済みの登録クライアントURL（scheme://host/path）
	clientURLs map[string]struct{}
}

// NewValidator はValidatorを生成する。
// clientRedirectURLsには登録済みクライアントのリダイレクトURLおよび
// ポストログアウトURLを指定する。正規化できないURLは無視される。
func NewValidator(clientRedirectURLs []string) *Validator {
	v := &Validator{clientURLs: make(map[string]struct{})}
	for _, raw := range clientRedirectURLs {
		normalized, err := normalizeURL(raw)
		if err != nil {
			continue
		}
		v.clientURLs[normalized] = struct{}{}
	}
	return v
}

// Validate はリダイレクト先が安全かどうかを判定する。
// ローカルパスまたは登録済みクライアントURLの場合にtrueを返す。
func (v *Validator) Validate(candidate string) bool {
	return v.IsLocalURL(candidate) || v.IsKnownClientURL(candidate)
}

// IsLocalURL は同一オリジンの相対パスかどうかを判定する。
// "/" で始まるパスのみ許可する。"//host" や "/\host" はブラウザが
// スキーム相対URLとして解釈するため拒否する。
func (v *Validator) IsLocalURL(candidate string) bool {
	if candidate == "" {
		return false
	}
	if candidate[0] != '/' {
		return false
	}
	if len(candidate) > 1 && (candidate[1] == '/' || candidate[1] == '\\') {
		return false
	}
	// バックスラッシュはブラウザによってスラッシュと同一視されることがある
	if strings.ContainsAny(candidate, "\\") {
		return false
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	// 相対パスにスキームやホストが混入していないこと
	return parsed.Scheme == "" && parsed.Host == ""
}

// IsKnownClientURL は登録済みクライアントのリダイレクトURLかどうかを判定する。
// scheme、host（punycode正規化後）、pathの完全一致で比較する。
// クエリおよびフラグメントは比較対象に含めない。
func (v *Validator) IsKnownClientURL(candidate string) bool {
	if len(v.clientURLs) == 0 {
		return false
	}
	normalized, err := normalizeURL(candidate)
	if err != nil {
		return false
	}
	_, ok := v.clientURLs[normalized]
	return ok
}

// normalizeURL は絶対URLを比較用に正規化する。
// スキームとホストを小文字化し、国際化ドメイン名はpunycodeに変換する。
// Unicodeホモグラフによる許可リストすり抜けを防ぐ。
func normalizeURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("not an absolute URL: %s", raw)
	}

	host, err := idna.Lookup.ToASCII(strings.ToLower(parsed.Hostname()))
	if err != nil {
		return "", err
	}
	if port := parsed.Port(); port != "" {
		host = host + ":" + port
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}

	return strings.ToLower(parsed.Scheme) + "://" + host + path, nil
}
