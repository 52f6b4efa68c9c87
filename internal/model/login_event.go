package model

import "time"

// LoginEvent ログイン履歴テーブル — login_events
// ログイン成功の度に追記される。端末・ブラウザは User-Agent からの
// ベストエフォート判定で、判定できない場合は "Unknown"
type LoginEvent struct {
	EventID    string    `gorm:"type:uuid;primaryKey"                        json:"event_id"`
	UserID     string    `gorm:"type:varchar(50);not null"                   json:"user_id"`
	OccurredAt time.Time `gorm:"not null"                                    json:"occurred_at"`
	DeviceType string    `gorm:"type:varchar(20);not null;default:'Unknown'" json:"device_type"`
	Browser    string    `gorm:"type:varchar(50);not null;default:'Unknown'" json:"browser"`
}

// TableName テーブル名を指定する
func (LoginEvent) TableName() string { return "login_events" }
