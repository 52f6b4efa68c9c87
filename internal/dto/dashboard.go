package dto

import "time"

// ── ダッシュボードモジュール DTO ──

// DashboardSummary サインポスト指標
type DashboardSummary struct {
	ActiveUsers            int     `json:"active_users"`
	TotalUsers             int     `json:"total_users"`
	MultipleSubmissionRate float64 `json:"multiple_submission_rate"` // 当日内に複数回提出したユーザーの割合（%）
	RetentionRate          float64 `json:"retention_rate"`           // 登録 14 日以上で直近 2 週間に 2 回以上ログインした割合（%）
}

// ScorePoint スコア推移の 1 点
type ScorePoint struct {
	UserID   string    `json:"user_id"`
	Score    *float64  `json:"score"`
	SubmitAt time.Time `json:"submit_at"`
}

// NorthStarMetrics ノーススターメトリック（期間指定）
type NorthStarMetrics struct {
	StartDate                 time.Time    `json:"start_date"`
	EndDate                   time.Time    `json:"end_date"`
	AverageSubmissionsPerUser float64      `json:"average_submissions_per_user"`
	AverageScoreImprovement   float64      `json:"average_score_improvement"`
	ScoreProgression          []ScorePoint `json:"score_progression"`
}

// DashboardUser ダッシュボードのユーザー一覧 1 件
type DashboardUser struct {
	UserID            string     `json:"user_id"`
	ReasonForStudying string     `json:"reason_for_studying"`
	Status            string     `json:"status"`
	RegisterAt        *time.Time `json:"register_at,omitempty"`
}

// LoginEventView ログイン履歴の 1 件
type LoginEventView struct {
	OccurredAt time.Time `json:"occurred_at"`
	DeviceType string    `json:"device_type"`
	Browser    string    `json:"browser"`
}

// UserDetail ユーザー詳細（提出履歴・ログイン履歴込み）
type UserDetail struct {
	User        DashboardUser    `json:"user"`
	Submissions []SubmissionView `json:"submissions"`
	LoginEvents []LoginEventView `json:"login_events"`
}
