package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bigkaiyoh/Hinotama/config"
	"github.com/bigkaiyoh/Hinotama/internal/repository"
	"github.com/bigkaiyoh/Hinotama/pkg/jwt"
	"github.com/bigkaiyoh/Hinotama/pkg/metrics"
	"github.com/bigkaiyoh/Hinotama/pkg/openai"
	"github.com/bigkaiyoh/Hinotama/pkg/redis"
)

// SessionStore セッション付随状態の保管先
// *redis.Client が実装する。nil の場合は各機能が縮退動作する
type SessionStore interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	GetWorkspace(ctx context.Context, userID string) (*redis.Workspace, error)
	SaveWorkspace(ctx context.Context, userID string, ws *redis.Workspace, ttl time.Duration) error
	ClearWorkspace(ctx context.Context, userID string) error
}

// AssistantAPI アシスタント API 呼び出しインターフェース
// *openai.Client が実装する
type AssistantAPI interface {
	RetrieveAssistant(ctx context.Context, assistantID string) (*openai.Assistant, error)
	CreateThread(ctx context.Context) (*openai.Thread, error)
	CreateMessage(ctx context.Context, threadID, role, content string) (*openai.Message, error)
	CreateRun(ctx context.Context, threadID, assistantID string) (*openai.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (*openai.Run, error)
	ListMessages(ctx context.Context, threadID string) (*openai.MessageList, error)
	CreateChatCompletion(ctx context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
}

// Service 全 Service の集約
type Service struct {
	Auth      AuthService
	Grading   GradingService
	Dashboard DashboardService
}

// NewService Service 集約を生成する
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	api AssistantAPI,
	sessions SessionStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:      NewAuthService(cfg, repo, jwtMgr, sessions, m, logger),
		Grading:   NewGradingService(cfg, repo, api, sessions, m, logger),
		Dashboard: NewDashboardService(repo, logger),
	}
}
