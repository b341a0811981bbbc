// Package model はドメインモデルを定義する。
package model

import "time"

// Account はローカルアカウントを表す。
// プロフィール属性（DisplayName, PictureURL）は外部IdPのクレームから導出され、
// 再ログイン時に同期される。
type Account struct {
	ID          string
	Username    string // 自動登録時に生成される不透明な一意値。クレーム由来の値は使わない。
	Email       string
	DisplayName string
	PictureURL  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExternalLogin は外部IdPとローカルアカウントの紐付け情報を表す。
// (Provider, ProviderUserID) の組は全アカウントを通じて一意。
type ExternalLogin struct {
	ID             string
	AccountID      string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はログインセッションを表す。
// Claimsにはリンク時に生成されたクレームを含むマージ済みクレームセットを保持する。
type Session struct {
	ID          string
	AccountID   string
	DisplayName string
	Claims      []Claim
	ExpiresAt   time.Time
	CreatedAt   time.Time
}
