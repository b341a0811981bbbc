package model

// 標準クレームタイプ。OIDC標準クレームのサブセット。
const (
	ClaimSubject    = "sub"
	ClaimName       = "name"
	ClaimGivenName  = "given_name"
	ClaimFamilyName = "family_name"
	ClaimEmail      = "email"
	ClaimPicture    = "picture"
	ClaimIdP        = "idp" // どのIdP経由でログインしたかを示すローカルクレーム
)

// Claim はアイデンティティソースが主張するユーザー属性を表す。
type Claim struct {
	Type  string
	Value string
}

// ClaimValue はクレームリストから指定タイプの最初の値を返す。
// 見つからない場合は空文字列を返す。
func ClaimValue(claims []Claim, claimType string) string {
	for _, c := range claims {
		if c.Type == claimType {
			return c.Value
		}
	}
	return ""
}

// ExternalIdentity は外部IdPが検証済みとして主張するアイデンティティを表す。
// コールバックごとに1回生成されるイミュータブルな値で、そのまま永続化はされない。
type ExternalIdentity struct {
	Provider       string
	ProviderUserID string
	Claims         []Claim
}

// RoundTripState はチャレンジ時に保存し、プロバイダーからのリダイレクトで
// そのまま読み戻すラウンドトリップデータ。コールバックで1回だけ消費される。
type RoundTripState struct {
	ReturnURL string
	Scheme    string
}

// GatewayResult はIdentity Provider Gatewayのコールバック処理結果を表す。
// Succeededがfalseの場合、IdentityとStateはnil。
type GatewayResult struct {
	Succeeded bool
	Identity  *ExternalIdentity
	State     *RoundTripState
}
