package dto

import "time"

// ── 認証モジュール DTO ──

// RegisterRequest ユーザー登録リクエスト
type RegisterRequest struct {
	UserID            string `json:"user_id"             binding:"required,min=3,max=50"`
	Email             string `json:"email"               binding:"required,email"`
	Password          string `json:"password"            binding:"required,min=8,max=72"`
	ConfirmPassword   string `json:"confirm_password"    binding:"required,eqfield=Password"`
	ReasonForStudying string `json:"reason_for_studying"`
	OrgCode           string `json:"org_code"`
	Timezone          string `json:"timezone"            binding:"required"`
}

// LoginRequest ユーザーログインリクエスト
type LoginRequest struct {
	UserID   string `json:"user_id"  binding:"required"`
	Password string `json:"password" binding:"required"`
}

// OrgLoginRequest 組織ログインリクエスト
type OrgLoginRequest struct {
	OrgCode  string `json:"org_code" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserView ユーザーのセッションビュー
// DaysLeft は登録時刻から導出した残り試用日数（Inactive なら 0）
type UserView struct {
	UserID            string     `json:"user_id"`
	Email             string     `json:"email"`
	ReasonForStudying string     `json:"reason_for_studying"`
	OrgCode           string     `json:"org_code"`
	Timezone          string     `json:"timezone"`
	Status            string     `json:"status"`
	DaysLeft          int        `json:"days_left"`
	RegisterAt        *time.Time `json:"register_at,omitempty"`
}

// OrgView 組織のセッションビュー
type OrgView struct {
	OrgCode       string `json:"org_code"`
	OrgName       string `json:"org_name"`
	Timezone      string `json:"timezone"`
	FullDashboard bool   `json:"full_dashboard"`
}

// AuthResponse 認証成功レスポンス（ユーザー）
type AuthResponse struct {
	Token string    `json:"token"`
	User  *UserView `json:"user"`
}

// OrgAuthResponse 認証成功レスポンス（組織）
type OrgAuthResponse struct {
	Token        string   `json:"token"`
	Organization *OrgView `json:"organization"`
}
