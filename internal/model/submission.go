package model

import "time"

// Submission 提出テーブル — submissions
// 採点 1 回につき 1 行作成され、以後変更されない
type Submission struct {
	SubmissionID string     `gorm:"type:uuid;primaryKey"          json:"submission_id"`
	UserID       string     `gorm:"type:varchar(50);not null"     json:"user_id"`
	Text         string     `gorm:"type:text;not null"            json:"text"`
	Feedback     string     `gorm:"type:text;not null;default:''" json:"feedback"`
	Score        *float64   `gorm:""                              json:"score"` // フィードバックから抽出できない場合は NULL
	SubmitAt     time.Time  `gorm:"not null"                      json:"submit_at"`
	CreatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName テーブル名を指定する
func (Submission) TableName() string { return "submissions" }
