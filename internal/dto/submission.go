package dto

import "time"

// ── 提出・採点モジュール DTO ──

// GradeRequest 採点リクエスト
type GradeRequest struct {
	Text string `json:"text" binding:"required"`
}

// GradeResponse 採点結果
// Saved が false の場合、フィードバックは生成済みだが提出記録の
// 永続化に失敗している（フィードバック自体は返す）
type GradeResponse struct {
	SubmissionID string   `json:"submission_id"`
	Feedback     string   `json:"feedback"`
	Score        *float64 `json:"score"`
	Saved        bool     `json:"saved"`
}

// AskRequest 表現提案（VocabVan）リクエスト
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// AskResponse 表現提案レスポンス
type AskResponse struct {
	Answer string `json:"answer"`
}

// TranscribeResponse 画像文字起こしレスポンス
type TranscribeResponse struct {
	Text string `json:"text"`
}

// DraftRequest 下書き保存リクエスト
type DraftRequest struct {
	Text string `json:"text"`
}

// WorkspaceResponse セッションワークスペースの状態
type WorkspaceResponse struct {
	Draft             string `json:"draft"`
	TranscriptionDone bool   `json:"transcription_done"`
	Feedback          string `json:"feedback"`
}

// SubmissionView 提出履歴の 1 件
type SubmissionView struct {
	SubmissionID string    `json:"submission_id"`
	Text         string    `json:"text"`
	Feedback     string    `json:"feedback"`
	Score        *float64  `json:"score"`
	SubmitAt     time.Time `json:"submit_at"`
}
