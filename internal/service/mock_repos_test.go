package service

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/bigkaiyoh/Hinotama/internal/model"
	"github.com/bigkaiyoh/Hinotama/pkg/openai"
	"github.com/bigkaiyoh/Hinotama/pkg/redis"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users         map[string]*model.User
	statusUpdates int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) UpdateStatus(_ context.Context, id string, status model.UserStatus) error {
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Status = status
	m.statusUpdates++
	return nil
}

func (m *mockUserRepo) List(_ context.Context, orgCode string, limit int) ([]model.User, error) {
	var result []model.User
	for _, u := range m.users {
		if orgCode != "" && u.OrgCode != orgCode {
			continue
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ── Mock OrganizationRepository ──

type mockOrgRepo struct {
	orgs map[string]*model.Organization
}

func newMockOrgRepo() *mockOrgRepo {
	return &mockOrgRepo{orgs: make(map[string]*model.Organization)}
}

func (m *mockOrgRepo) GetByCode(_ context.Context, orgCode string) (*model.Organization, error) {
	if o, ok := m.orgs[orgCode]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock SubmissionRepository ──

type mockSubmissionRepo struct {
	submissions []model.Submission
	userOrgs    map[string]string // ListRange の組織 JOIN を模倣する
	createErr   error
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{userOrgs: make(map[string]string)}
}

func (m *mockSubmissionRepo) Create(_ context.Context, submission *model.Submission) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.submissions = append(m.submissions, *submission)
	return nil
}

func (m *mockSubmissionRepo) ListByUser(_ context.Context, userID string, limit int) ([]model.Submission, error) {
	var result []model.Submission
	for _, s := range m.submissions {
		if s.UserID == userID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubmitAt.After(result[j].SubmitAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockSubmissionRepo) ListRange(_ context.Context, orgCode string, start, end time.Time, limit int) ([]model.Submission, error) {
	var result []model.Submission
	for _, s := range m.submissions {
		if s.SubmitAt.Before(start) || s.SubmitAt.After(end) {
			continue
		}
		if orgCode != "" && m.userOrgs[s.UserID] != orgCode {
			continue
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubmitAt.Before(result[j].SubmitAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ── Mock LoginEventRepository ──

type mockLoginEventRepo struct {
	events    []model.LoginEvent
	userOrgs  map[string]string
	createErr error
}

func newMockLoginEventRepo() *mockLoginEventRepo {
	return &mockLoginEventRepo{userOrgs: make(map[string]string)}
}

func (m *mockLoginEventRepo) Create(_ context.Context, event *model.LoginEvent) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *mockLoginEventRepo) ListByUser(_ context.Context, userID string, limit int) ([]model.LoginEvent, error) {
	var result []model.LoginEvent
	for _, e := range m.events {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OccurredAt.After(result[j].OccurredAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockLoginEventRepo) ListRange(_ context.Context, orgCode string, start, end time.Time, limit int) ([]model.LoginEvent, error) {
	var result []model.LoginEvent
	for _, e := range m.events {
		if e.OccurredAt.Before(start) || e.OccurredAt.After(end) {
			continue
		}
		if orgCode != "" && m.userOrgs[e.UserID] != orgCode {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OccurredAt.Before(result[j].OccurredAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ── Mock UserIssueRepository ──

type mockUserIssueRepo struct {
	issues []model.UserIssue
}

func newMockUserIssueRepo() *mockUserIssueRepo {
	return &mockUserIssueRepo{}
}

func (m *mockUserIssueRepo) Create(_ context.Context, issue *model.UserIssue) error {
	m.issues = append(m.issues, *issue)
	return nil
}

// ── Mock SessionStore ──

type mockSessionStore struct {
	blacklist  map[string]bool
	workspaces map[string]*redis.Workspace
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{
		blacklist:  make(map[string]bool),
		workspaces: make(map[string]*redis.Workspace),
	}
}

func (m *mockSessionStore) BlacklistToken(_ context.Context, jti string, _ time.Duration) error {
	m.blacklist[jti] = true
	return nil
}

func (m *mockSessionStore) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return m.blacklist[jti], nil
}

func (m *mockSessionStore) GetWorkspace(_ context.Context, userID string) (*redis.Workspace, error) {
	if ws, ok := m.workspaces[userID]; ok {
		copied := *ws
		return &copied, nil
	}
	return &redis.Workspace{}, nil
}

func (m *mockSessionStore) SaveWorkspace(_ context.Context, userID string, ws *redis.Workspace, _ time.Duration) error {
	copied := *ws
	m.workspaces[userID] = &copied
	return nil
}

func (m *mockSessionStore) ClearWorkspace(_ context.Context, userID string) error {
	delete(m.workspaces, userID)
	return nil
}

// ── Mock AssistantAPI ──

// mockAssistantAPI ラン 1 往復を模倣する
// runStatuses を RetrieveRun が先頭から順に返す（尽きたら最後の値を返し続ける）
type mockAssistantAPI struct {
	createRunStatus string
	runStatuses     []string
	replyText       string
	assistantErr    error

	assistantCalls int
	threadCalls    int
	messageCalls   int
	runCalls       int
	retrieveCalls  int
	listCalls      int
	chatCalls      int

	chatResponse *openai.ChatCompletionResponse
	chatErr      error
}

func newMockAssistantAPI(reply string) *mockAssistantAPI {
	return &mockAssistantAPI{
		createRunStatus: openai.RunStatusQueued,
		runStatuses:     []string{openai.RunStatusCompleted},
		replyText:       reply,
	}
}

func (m *mockAssistantAPI) RetrieveAssistant(_ context.Context, assistantID string) (*openai.Assistant, error) {
	m.assistantCalls++
	if m.assistantErr != nil {
		return nil, m.assistantErr
	}
	return &openai.Assistant{ID: assistantID, Name: "HINOTAMA", Model: "gpt-4o"}, nil
}

func (m *mockAssistantAPI) CreateThread(_ context.Context) (*openai.Thread, error) {
	m.threadCalls++
	return &openai.Thread{ID: "thread-1"}, nil
}

func (m *mockAssistantAPI) CreateMessage(_ context.Context, threadID, role, content string) (*openai.Message, error) {
	m.messageCalls++
	return &openai.Message{ID: "msg-1", Role: role}, nil
}

func (m *mockAssistantAPI) CreateRun(_ context.Context, threadID, assistantID string) (*openai.Run, error) {
	m.runCalls++
	return &openai.Run{ID: "run-1", ThreadID: threadID, Status: m.createRunStatus}, nil
}

func (m *mockAssistantAPI) RetrieveRun(_ context.Context, threadID, runID string) (*openai.Run, error) {
	idx := m.retrieveCalls
	m.retrieveCalls++
	if idx >= len(m.runStatuses) {
		idx = len(m.runStatuses) - 1
	}
	return &openai.Run{ID: runID, ThreadID: threadID, Status: m.runStatuses[idx]}, nil
}

func (m *mockAssistantAPI) ListMessages(_ context.Context, threadID string) (*openai.MessageList, error) {
	m.listCalls++
	// API と同じく新しい順で返す
	return &openai.MessageList{Data: []openai.Message{
		{
			ID:   "msg-2",
			Role: "assistant",
			Content: []openai.MessageContent{
				{Type: "text", Text: &openai.MessageText{Value: m.replyText}},
			},
		},
		{
			ID:   "msg-1",
			Role: "user",
			Content: []openai.MessageContent{
				{Type: "text", Text: &openai.MessageText{Value: "input"}},
			},
		},
	}}, nil
}

func (m *mockAssistantAPI) CreateChatCompletion(_ context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	m.chatCalls++
	if m.chatErr != nil {
		return nil, m.chatErr
	}
	if m.chatResponse != nil {
		return m.chatResponse, nil
	}
	return &openai.ChatCompletionResponse{
		Choices: []openai.ChatChoice{
			{Message: openai.ChatResponseMessage{Role: "assistant", Content: m.replyText}},
		},
	}, nil
}
