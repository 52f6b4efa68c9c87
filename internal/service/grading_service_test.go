package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/bigkaiyoh/Hinotama/internal/dto"
	"github.com/bigkaiyoh/Hinotama/internal/model"
	"github.com/bigkaiyoh/Hinotama/internal/repository"
	"github.com/bigkaiyoh/Hinotama/pkg/openai"
)

// ── テスト補助 ──

func setupTestGradingService(api *mockAssistantAPI) (GradingService, *mockUserRepo, *mockSubmissionRepo, *mockSessionStore) {
	userRepo := newMockUserRepo()
	subRepo := newMockSubmissionRepo()
	sessions := newMockSessionStore()
	repo := &repository.Repository{
		User:         userRepo,
		Organization: newMockOrgRepo(),
		Submission:   subRepo,
		LoginEvent:   newMockLoginEventRepo(),
		UserIssue:    newMockUserIssueRepo(),
	}
	svc := NewGradingService(testConfig(), repo, api, sessions, nil, zap.NewNop())
	return svc, userRepo, subRepo, sessions
}

func addActiveUser(users *mockUserRepo, userID string, registeredDaysAgo int) {
	users.users[userID] = &model.User{
		UserID:     userID,
		RegisterAt: daysAgo(registeredDaysAgo),
		Status:     model.StatusActive,
	}
}

// ── Grade テスト ──

func TestGradingService_Grade_Success(t *testing.T) {
	api := newMockAssistantAPI("よく書けています。スコア: **85**")
	svc, users, subRepo, sessions := setupTestGradingService(api)
	addActiveUser(users, "taro", 5)

	resp, err := svc.Grade(context.Background(), "taro", &dto.GradeRequest{Text: "私は日本語を勉強しています。"})
	if err != nil {
		t.Fatalf("採点に失敗: %v", err)
	}
	if resp.Feedback != "よく書けています。スコア: **85**" {
		t.Errorf("フィードバックが不正: %s", resp.Feedback)
	}
	if resp.Score == nil || *resp.Score != 85 {
		t.Errorf("期待したスコア 85、実際: %v", resp.Score)
	}
	if !resp.Saved {
		t.Error("保存成功のはずが Saved=false")
	}

	// 提出記録が 1 件保存される
	if len(subRepo.submissions) != 1 {
		t.Fatalf("期待した提出記録 1 件、実際: %d", len(subRepo.submissions))
	}
	saved := subRepo.submissions[0]
	if saved.UserID != "taro" || saved.Text != "私は日本語を勉強しています。" {
		t.Errorf("提出記録の内容が不正: %+v", saved)
	}

	// 採点後のワークスペースはフィードバックのみ残る
	ws := sessions.workspaces["taro"]
	if ws == nil || ws.Feedback != resp.Feedback || ws.Draft != "" {
		t.Errorf("ワークスペースの状態が不正: %+v", ws)
	}
}

func TestGradingService_Grade_InactiveUser(t *testing.T) {
	api := newMockAssistantAPI("ignored")
	svc, users, _, _ := setupTestGradingService(api)
	addActiveUser(users, "taro", 31)

	_, err := svc.Grade(context.Background(), "taro", &dto.GradeRequest{Text: "text"})
	if !errors.Is(err, ErrAccountInactive) {
		t.Errorf("期待したエラー ErrAccountInactive、実際: %v", err)
	}
	// 期限切れは API を一切呼ばない
	if api.threadCalls != 0 {
		t.Error("期限切れユーザーで API が呼ばれた")
	}
}

func TestGradingService_Grade_SaveFailure(t *testing.T) {
	api := newMockAssistantAPI("スコア: 70")
	svc, users, subRepo, _ := setupTestGradingService(api)
	addActiveUser(users, "taro", 5)
	subRepo.createErr = errors.New("db down")

	resp, err := svc.Grade(context.Background(), "taro", &dto.GradeRequest{Text: "text"})
	if err != nil {
		t.Fatalf("保存失敗でもフィードバックは返るはず: %v", err)
	}
	if resp.Saved {
		t.Error("保存失敗なのに Saved=true")
	}
	if resp.Feedback != "スコア: 70" {
		t.Errorf("フィードバックが欠落: %s", resp.Feedback)
	}
}

func TestGradingService_Grade_RunTimeout(t *testing.T) {
	api := newMockAssistantAPI("never")
	api.runStatuses = []string{openai.RunStatusInProgress}
	svc, users, _, _ := setupTestGradingService(api)
	addActiveUser(users, "taro", 5)

	_, err := svc.Grade(context.Background(), "taro", &dto.GradeRequest{Text: "text"})
	if !errors.Is(err, ErrRunTimeout) {
		t.Errorf("期待したエラー ErrRunTimeout、実際: %v", err)
	}
}

func TestGradingService_Grade_RunFailed(t *testing.T) {
	api := newMockAssistantAPI("never")
	api.runStatuses = []string{openai.RunStatusInProgress, openai.RunStatusFailed}
	svc, users, _, _ := setupTestGradingService(api)
	addActiveUser(users, "taro", 5)

	_, err := svc.Grade(context.Background(), "taro", &dto.GradeRequest{Text: "text"})
	if !errors.Is(err, ErrRunFailed) {
		t.Errorf("期待したエラー ErrRunFailed、実際: %v", err)
	}
}

// ── runAssistant テスト ──

// ラン開始前のアシスタント取得で ID の誤設定が早期に検出されること
func TestGradingService_RunAssistant_UnknownAssistant(t *testing.T) {
	api := newMockAssistantAPI("never")
	api.assistantErr = &openai.UpstreamError{StatusCode: 404, Body: "No assistant found"}
	svc, users, _, _ := setupTestGradingService(api)
	addActiveUser(users, "taro", 5)

	_, err := svc.Grade(context.Background(), "taro", &dto.GradeRequest{Text: "作文"})
	if err == nil {
		t.Fatal("エラーを期待した")
	}
	var ue *openai.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("期待した *UpstreamError、実際: %v", err)
	}
	// スレッド作成まで進まない
	if api.assistantCalls != 1 || api.threadCalls != 0 {
		t.Errorf("アシスタント取得で打ち切られるはず: assistant=%d thread=%d",
			api.assistantCalls, api.threadCalls)
	}
}

func TestGradingService_RunAssistant_EmptyInput(t *testing.T) {
	api := newMockAssistantAPI("ignored")
	svc, _, _, _ := setupTestGradingService(api)

	resp, err := svc.Ask(context.Background(), &dto.AskRequest{Question: ""})
	if err != nil {
		t.Fatalf("空入力でエラー: %v", err)
	}
	if resp.Answer != "" {
		t.Errorf("空入力は空応答のはず、実際: %s", resp.Answer)
	}
	// 空入力は API を呼ばない
	if api.threadCalls != 0 || api.messageCalls != 0 || api.runCalls != 0 {
		t.Error("空入力で API が呼ばれた")
	}
}

func TestGradingService_RunAssistant_CompletesAfterPolling(t *testing.T) {
	api := newMockAssistantAPI("改善点は次の通りです。")
	api.runStatuses = []string{openai.RunStatusInProgress, openai.RunStatusInProgress, openai.RunStatusCompleted}
	svc, _, _, _ := setupTestGradingService(api)

	resp, err := svc.Ask(context.Background(), &dto.AskRequest{Question: "「嬉しい」の言い換えは？"})
	if err != nil {
		t.Fatalf("質問に失敗: %v", err)
	}
	if resp.Answer != "改善点は次の通りです。" {
		t.Errorf("応答が不正: %s", resp.Answer)
	}
	if api.retrieveCalls != 3 {
		t.Errorf("期待したポーリング 3 回、実際: %d", api.retrieveCalls)
	}
}

// ── Transcribe テスト ──

func TestGradingService_Transcribe_Success(t *testing.T) {
	api := newMockAssistantAPI("私は昨日、映画を見ました。")
	svc, _, _, sessions := setupTestGradingService(api)

	resp, err := svc.Transcribe(context.Background(), "taro", []byte{0xFF, 0xD8}, "image/jpeg")
	if err != nil {
		t.Fatalf("文字起こしに失敗: %v", err)
	}
	if resp.Text != "私は昨日、映画を見ました。" {
		t.Errorf("文字起こし結果が不正: %s", resp.Text)
	}
	if api.chatCalls != 1 {
		t.Errorf("期待したチャット呼び出し 1 回、実際: %d", api.chatCalls)
	}

	// 結果が下書きとして引き継がれる
	ws := sessions.workspaces["taro"]
	if ws == nil || ws.Draft != resp.Text || !ws.TranscriptionDone {
		t.Errorf("ワークスペースの状態が不正: %+v", ws)
	}
}

func TestGradingService_Transcribe_UpstreamError(t *testing.T) {
	api := newMockAssistantAPI("")
	api.chatErr = &openai.UpstreamError{StatusCode: 429, Body: "rate limited"}
	svc, _, _, _ := setupTestGradingService(api)

	_, err := svc.Transcribe(context.Background(), "taro", []byte{0x01}, "")
	var upstream *openai.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("期待したエラー UpstreamError、実際: %v", err)
	}
	if upstream.StatusCode != 429 {
		t.Errorf("期待したステータス 429、実際: %d", upstream.StatusCode)
	}
}

// ── ワークスペース・提出履歴テスト ──

func TestGradingService_SaveDraftAndWorkspace(t *testing.T) {
	svc, _, _, _ := setupTestGradingService(newMockAssistantAPI(""))

	if err := svc.SaveDraft(context.Background(), "taro", &dto.DraftRequest{Text: "書きかけの作文"}); err != nil {
		t.Fatalf("下書き保存に失敗: %v", err)
	}

	ws, err := svc.Workspace(context.Background(), "taro")
	if err != nil {
		t.Fatalf("ワークスペース取得に失敗: %v", err)
	}
	if ws.Draft != "書きかけの作文" || ws.TranscriptionDone {
		t.Errorf("ワークスペースの状態が不正: %+v", ws)
	}
}

func TestGradingService_ListSubmissions(t *testing.T) {
	svc, users, subRepo, _ := setupTestGradingService(newMockAssistantAPI("スコア: 60"))
	addActiveUser(users, "taro", 5)

	for _, text := range []string{"一回目", "二回目"} {
		if _, err := svc.Grade(context.Background(), "taro", &dto.GradeRequest{Text: text}); err != nil {
			t.Fatalf("採点に失敗: %v", err)
		}
	}
	if len(subRepo.submissions) != 2 {
		t.Fatalf("期待した提出記録 2 件、実際: %d", len(subRepo.submissions))
	}

	views, err := svc.ListSubmissions(context.Background(), "taro", 10)
	if err != nil {
		t.Fatalf("提出履歴の取得に失敗: %v", err)
	}
	if len(views) != 2 {
		t.Errorf("期待した提出履歴 2 件、実際: %d", len(views))
	}
}

// ── ExtractScore テスト ──

func TestExtractScore(t *testing.T) {
	tests := []struct {
		name     string
		feedback string
		want     *float64
	}{
		{"太字表記", "全体的に良い文章です。スコア: **92**", f64(92)},
		{"コロン直後", "スコア:85.5点でした", f64(85.5)},
		{"空白あり", "スコア: 70", f64(70)},
		{"スコアなし", "がんばりましょう", nil},
		{"空文字", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractScore(tt.feedback)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("期待 nil、実際: %v", *got)
			case tt.want != nil && got == nil:
				t.Errorf("期待 %v、実際: nil", *tt.want)
			case tt.want != nil && got != nil && *tt.want != *got:
				t.Errorf("期待 %v、実際: %v", *tt.want, *got)
			}
		})
	}
}

func f64(v float64) *float64 { return &v }
