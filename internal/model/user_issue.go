package model

import "time"

// UserIssue 診断記録テーブル — user_issues
// ログイン時に構造的に不正な保存データ（登録日時の欠落など）を
// 検出した場合に追記される。推測で補完せず記録に残す方針
type UserIssue struct {
	IssueID     string    `gorm:"type:uuid;primaryKey"      json:"issue_id"`
	UserID      string    `gorm:"type:varchar(50);not null" json:"user_id"`
	Description string    `gorm:"type:text;not null"        json:"description"`
	OccurredAt  time.Time `gorm:"not null"                  json:"occurred_at"`
}

// TableName テーブル名を指定する
func (UserIssue) TableName() string { return "user_issues" }
