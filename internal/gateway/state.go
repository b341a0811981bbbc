package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// statePayload はラウンドトリップ状態Cookieに格納されるデータ。
// nonceはプロバイダーへのstateパラメータと突き合わせ、CSRFを防ぐ。
type statePayload struct {
	Nonce     string `json:"nonce"`
	ReturnURL string `json:"return_url"`
	Scheme    string `json:"scheme"`
	ExpiresAt int64  `json:"expires_at"` // Unix秒
}

// stateCodec はラウンドトリップ状態の署名付きエンコード/デコードを行う。
// フォーマット: base64url(JSON) + "." + base64url(HMAC-SHA256)
// Cookieはユーザーが改ざん可能なため、署名検証なしでは一切信用しない。
type stateCodec struct {
	secret []byte
}

// newStateCodec はstateCodecを生成する。
func newStateCodec(secret string) *stateCodec {
	return &stateCodec{secret: []byte(secret)}
}

// Encode はペイロードを署名付き文字列にエンコードする。
func (c *stateCodec) Encode(p statePayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(data)
	return encoded + "." + c.sign(encoded), nil
}

// Decode は署名を検証し、期限内のペイロードを返す。
// 署名不一致、フォーマット不正、期限切れはすべてエラー。
func (c *stateCodec) Decode(raw string) (*statePayload, error) {
	encoded, sig, found := strings.Cut(raw, ".")
	if !found {
		return nil, fmt.Errorf("malformed state token")
	}

	expected := c.sign(encoded)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return nil, fmt.Errorf("state signature mismatch")
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode state payload: %w", err)
	}

	var p statePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state payload: %w", err)
	}

	if time.Now().Unix() > p.ExpiresAt {
		return nil, fmt.Errorf("state expired")
	}

	return &p, nil
}

// sign はHMAC-SHA256署名をbase64urlで返す。
func (c *stateCodec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
