package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bigkaiyoh/Hinotama/config"
	"github.com/bigkaiyoh/Hinotama/internal/dto"
	"github.com/bigkaiyoh/Hinotama/internal/model"
	"github.com/bigkaiyoh/Hinotama/internal/repository"
	"github.com/bigkaiyoh/Hinotama/pkg/metrics"
	"github.com/bigkaiyoh/Hinotama/pkg/openai"
	"github.com/bigkaiyoh/Hinotama/pkg/redis"
)

// ── 採点モジュール業務エラー ──

var (
	ErrAccountInactive = errors.New("無料利用期間が終了しています")
	ErrRunTimeout      = errors.New("採点処理がタイムアウトしました")
	ErrRunFailed       = errors.New("採点処理が失敗しました")
	ErrQANotConfigured = errors.New("表現提案アシスタントが設定されていません")
	ErrEmptyCompletion = errors.New("文字起こし結果が空です")
)

// scorePattern フィードバック本文からのスコア抽出パターン
// 「スコア: **92**」「スコア:85.5」のような表記を許容する
var scorePattern = regexp.MustCompile(`スコア:?\s*\*{0,2}\s*(\d+(\.\d+)?)`)

// transcribePrompt 画像文字起こし時の固定プロンプト
const transcribePrompt = "Please transcribe the handwritten text in this image."

// transcribeMaxTokens 文字起こし応答の上限トークン数
const transcribeMaxTokens = 300

// GradingService 採点・文字起こし・ワークスペース業務インターフェース
type GradingService interface {
	// Grade 本文を採点アシスタントへ送り、フィードバックと抽出スコアを返す。
	// 提出記録の保存に失敗してもフィードバックは返し、Saved=false で知らせる
	Grade(ctx context.Context, userID string, req *dto.GradeRequest) (*dto.GradeResponse, error)
	// Ask 表現提案アシスタント（VocabVan）への自由質問
	Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error)
	// Transcribe 手書き画像をテキスト化し、結果を下書きとして保存する
	Transcribe(ctx context.Context, userID string, image []byte, mimeType string) (*dto.TranscribeResponse, error)
	Workspace(ctx context.Context, userID string) (*dto.WorkspaceResponse, error)
	SaveDraft(ctx context.Context, userID string, req *dto.DraftRequest) error
	ListSubmissions(ctx context.Context, userID string, limit int) ([]dto.SubmissionView, error)
}

type gradingService struct {
	cfg      *config.Config
	repo     *repository.Repository
	api      AssistantAPI
	sessions SessionStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewGradingService GradingService を生成する
func NewGradingService(
	cfg *config.Config,
	repo *repository.Repository,
	api AssistantAPI,
	sessions SessionStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) GradingService {
	return &gradingService{
		cfg:      cfg,
		repo:     repo,
		api:      api,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
	}
}

func (s *gradingService) Grade(ctx context.Context, userID string, req *dto.GradeRequest) (*dto.GradeResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("ユーザー照会に失敗", zap.Error(err))
		return nil, err
	}

	// 利用状態は保存値ではなく登録時刻から都度導出して判定する
	if user.RegisterAt == nil {
		return nil, ErrCorruptRecord
	}
	if status, _ := CheckUserStatus(*user.RegisterAt, time.Now().UTC()); status != model.StatusActive {
		return nil, ErrAccountInactive
	}

	feedback, err := s.runAssistant(ctx, s.cfg.OpenAI.GradingAssistantID, "Writing: "+req.Text)
	if err != nil {
		return nil, err
	}

	score := ExtractScore(feedback)

	resp := &dto.GradeResponse{
		SubmissionID: uuid.New().String(),
		Feedback:     feedback,
		Score:        score,
		Saved:        true,
	}

	submission := &model.Submission{
		SubmissionID: resp.SubmissionID,
		UserID:       user.UserID,
		Text:         req.Text,
		Feedback:     feedback,
		Score:        score,
		SubmitAt:     time.Now().UTC(),
	}
	if err := s.repo.Submission.Create(ctx, submission); err != nil {
		// フィードバック生成は完了している。保存失敗で結果を握り潰さず、
		// Saved=false を返して利用者側での再提出を促す
		s.logger.Error("提出記録の保存に失敗",
			zap.String("user_id", user.UserID),
			zap.Error(err),
		)
		s.countSave("error")
		resp.Saved = false
	} else {
		s.countSave("success")
	}

	// 採点完了でワークスペースを畳み、フィードバックだけ残す
	if s.sessions != nil {
		ws := &redis.Workspace{Feedback: feedback}
		if err := s.sessions.SaveWorkspace(ctx, user.UserID, ws, s.cfg.Auth.SessionTTL); err != nil {
			s.logger.Warn("ワークスペース更新に失敗", zap.Error(err))
		}
	}

	return resp, nil
}

func (s *gradingService) Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error) {
	if s.cfg.OpenAI.QAAssistantID == "" {
		return nil, ErrQANotConfigured
	}

	answer, err := s.runAssistant(ctx, s.cfg.OpenAI.QAAssistantID, req.Question)
	if err != nil {
		return nil, err
	}
	return &dto.AskResponse{Answer: answer}, nil
}

func (s *gradingService) Transcribe(ctx context.Context, userID string, image []byte, mimeType string) (*dto.TranscribeResponse, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := s.api.CreateChatCompletion(ctx, &openai.ChatCompletionRequest{
		Model: s.cfg.OpenAI.VisionModel,
		Messages: []openai.ChatMessage{
			{
				Role: "user",
				Content: []openai.ChatContent{
					{Type: "text", Text: transcribePrompt},
					{Type: "image_url", ImageURL: &openai.ImageURL{URL: dataURI}},
				},
			},
		},
		MaxTokens: transcribeMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyCompletion
	}
	text := resp.Choices[0].Message.Content

	// 文字起こし結果を下書きとして引き継ぐ
	if s.sessions != nil {
		ws := &redis.Workspace{Draft: text, TranscriptionDone: true}
		if err := s.sessions.SaveWorkspace(ctx, userID, ws, s.cfg.Auth.SessionTTL); err != nil {
			s.logger.Warn("ワークスペース更新に失敗", zap.Error(err))
		}
	}

	return &dto.TranscribeResponse{Text: text}, nil
}

func (s *gradingService) Workspace(ctx context.Context, userID string) (*dto.WorkspaceResponse, error) {
	if s.sessions == nil {
		return &dto.WorkspaceResponse{}, nil
	}

	ws, err := s.sessions.GetWorkspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.WorkspaceResponse{
		Draft:             ws.Draft,
		TranscriptionDone: ws.TranscriptionDone,
		Feedback:          ws.Feedback,
	}, nil
}

func (s *gradingService) SaveDraft(ctx context.Context, userID string, req *dto.DraftRequest) error {
	if s.sessions == nil {
		return nil
	}

	ws, err := s.sessions.GetWorkspace(ctx, userID)
	if err != nil {
		return err
	}
	ws.Draft = req.Text
	return s.sessions.SaveWorkspace(ctx, userID, ws, s.cfg.Auth.SessionTTL)
}

func (s *gradingService) ListSubmissions(ctx context.Context, userID string, limit int) ([]dto.SubmissionView, error) {
	subs, err := s.repo.Submission.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	views := make([]dto.SubmissionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, dto.SubmissionView{
			SubmissionID: sub.SubmissionID,
			Text:         sub.Text,
			Feedback:     sub.Feedback,
			Score:        sub.Score,
			SubmitAt:     sub.SubmitAt,
		})
	}
	return views, nil
}

// ── 内部ヘルパー ──

// runAssistant 新規スレッドで 1 往復のアシスタントランを実行し、
// 最後のアシスタント応答本文を返す。空入力は API を呼ばず空文字を返す
func (s *gradingService) runAssistant(ctx context.Context, assistantID, input string) (string, error) {
	if input == "" {
		return "", nil
	}

	start := time.Now()

	// ラン開始前にアシスタント定義を取得し、ID の誤設定を早期に検出する
	if _, err := s.api.RetrieveAssistant(ctx, assistantID); err != nil {
		s.countRun(assistantID, "error")
		return "", fmt.Errorf("アシスタント取得に失敗: %w", err)
	}

	// 会話の持ち越しはしない。毎回使い捨てのスレッドを作る
	thread, err := s.api.CreateThread(ctx)
	if err != nil {
		s.countRun(assistantID, "error")
		return "", fmt.Errorf("スレッド作成に失敗: %w", err)
	}

	if _, err := s.api.CreateMessage(ctx, thread.ID, "user", input); err != nil {
		s.countRun(assistantID, "error")
		return "", fmt.Errorf("メッセージ送信に失敗: %w", err)
	}

	run, err := s.api.CreateRun(ctx, thread.ID, assistantID)
	if err != nil {
		s.countRun(assistantID, "error")
		return "", fmt.Errorf("ラン開始に失敗: %w", err)
	}

	// 完了までポーリングする。回数上限とコンテキスト打ち切りの両方で有界
	polls := 0
	for attempt := 0; ; attempt++ {
		switch run.Status {
		case openai.RunStatusCompleted:
			s.observeRun(assistantID, "success", start, polls)
			return s.lastAssistantText(ctx, thread.ID)
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired:
			s.observeRun(assistantID, "failed", start, polls)
			s.logger.Error("アシスタントランが失敗",
				zap.String("run_id", run.ID),
				zap.String("status", run.Status),
			)
			return "", ErrRunFailed
		}

		if attempt >= s.cfg.OpenAI.RunMaxAttempts {
			s.observeRun(assistantID, "timeout", start, polls)
			return "", ErrRunTimeout
		}

		select {
		case <-ctx.Done():
			s.countRun(assistantID, "cancelled")
			return "", ctx.Err()
		case <-time.After(s.cfg.OpenAI.RunPollInterval):
		}

		run, err = s.api.RetrieveRun(ctx, thread.ID, run.ID)
		if err != nil {
			s.countRun(assistantID, "error")
			return "", fmt.Errorf("ラン状態の取得に失敗: %w", err)
		}
		polls++
	}
}

// lastAssistantText スレッドの最後のアシスタント応答を返す
// API は新しい順で返すため、末尾から古い順に走査して最後の応答を拾う
func (s *gradingService) lastAssistantText(ctx context.Context, threadID string) (string, error) {
	list, err := s.api.ListMessages(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("メッセージ取得に失敗: %w", err)
	}

	text := ""
	for i := len(list.Data) - 1; i >= 0; i-- {
		if list.Data[i].Role == "assistant" {
			text = list.Data[i].Text()
		}
	}
	return text, nil
}

func (s *gradingService) countRun(assistantID, outcome string) {
	if s.metrics != nil {
		s.metrics.AssistantRunsTotal.WithLabelValues(assistantID, outcome).Inc()
	}
}

func (s *gradingService) observeRun(assistantID, outcome string, start time.Time, polls int) {
	if s.metrics == nil {
		return
	}
	s.metrics.AssistantRunsTotal.WithLabelValues(assistantID, outcome).Inc()
	s.metrics.AssistantRunDuration.Observe(time.Since(start).Seconds())
	s.metrics.AssistantRunPolls.Observe(float64(polls))
}

func (s *gradingService) countSave(outcome string) {
	if s.metrics != nil {
		s.metrics.SubmissionSavesTotal.WithLabelValues(outcome).Inc()
	}
}

// ExtractScore フィードバック本文からスコアを抽出する
// 見つからない場合は nil（提出は NULL スコアで保存される）
func ExtractScore(feedback string) *float64 {
	m := scorePattern.FindStringSubmatch(feedback)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}
