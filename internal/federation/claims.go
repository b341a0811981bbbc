package federation

import (
	"strings"

	"github.com/hitoshi/idbridge/internal/model"
	"github.com/hitoshi/idbridge/internal/security"
)

// profile は外部クレームから導出されるプロフィール属性。
type profile struct {
	DisplayName string
	Email       string
	PictureURL  string
}

// deriveProfile は外部クレームからプロフィール属性を導出する。
// 表示名の優先順位: name > given_name + family_name（スペース結合、
// 片方のみの場合はその値）。どちらも無ければ空。
// 全ての値はサニタイズ済みで返す。
func deriveProfile(claims []model.Claim, sanitizer security.ClaimSanitizerService) profile {
	name := model.ClaimValue(claims, model.ClaimName)
	if name == "" {
		given := model.ClaimValue(claims, model.ClaimGivenName)
		family := model.ClaimValue(claims, model.ClaimFamilyName)
		name = strings.TrimSpace(given + " " + family)
	}

	return profile{
		DisplayName: sanitizer.SanitizeText(name),
		Email:       sanitizer.SanitizeText(model.ClaimValue(claims, model.ClaimEmail)),
		PictureURL:  sanitizer.SanitizePictureURL(model.ClaimValue(claims, model.ClaimPicture)),
	}
}

// filterClaims は永続化・セッション発行用のクレームセットを作る。
// subはプロバイダー内部の識別子でありローカルクレームとしては保持しない。
// 残りのクレーム値はサニタイズし、空になった値は除外する。
func filterClaims(claims []model.Claim, sanitizer security.ClaimSanitizerService) []model.Claim {
	filtered := make([]model.Claim, 0, len(claims))
	for _, c := range claims {
		if c.Type == model.ClaimSubject {
			continue
		}
		value := c.Value
		if c.Type == model.ClaimPicture {
			value = sanitizer.SanitizePictureURL(value)
		} else {
			value = sanitizer.SanitizeText(value)
		}
		if value == "" {
			continue
		}
		filtered = append(filtered, model.Claim{Type: c.Type, Value: value})
	}
	return filtered
}
