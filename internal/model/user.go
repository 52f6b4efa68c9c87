package model

import "time"

// UserStatus ユーザーの利用状態
// 登録からの経過日数のみで決まる導出値であり、DB の status 列は
// 直近の計算結果のキャッシュに過ぎない（ログインの度に再計算・照合する）
type UserStatus string

const (
	StatusActive   UserStatus = "Active"
	StatusInactive UserStatus = "Inactive"
)

// User ユーザーテーブル — users
type User struct {
	UserID            string     `gorm:"type:varchar(50);primaryKey"            json:"user_id"`
	Email             string     `gorm:"type:varchar(255);not null"             json:"email"`
	PasswordHash      string     `gorm:"type:varchar(255);not null"             json:"-"`
	ReasonForStudying string     `gorm:"type:text;not null;default:''"          json:"reason_for_studying"`
	OrgCode           string     `gorm:"type:varchar(50)"                       json:"org_code"`
	RegisterAt        *time.Time `gorm:""                                       json:"register_at"` // 旧データでは欠落し得る
	Timezone          string     `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	Status            UserStatus `gorm:"type:varchar(10);not null;default:'Active'" json:"status"`
	BaseModel

	// 関連
	Organization *Organization `gorm:"foreignKey:OrgCode;references:OrgCode" json:"organization,omitempty"`
}

// TableName テーブル名を指定する
func (User) TableName() string { return "users" }
