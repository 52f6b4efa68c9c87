package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bigkaiyoh/Hinotama/config"
	"github.com/bigkaiyoh/Hinotama/internal/api/handler"
	"github.com/bigkaiyoh/Hinotama/internal/api/middleware"
	"github.com/bigkaiyoh/Hinotama/pkg/jwt"
	"github.com/bigkaiyoh/Hinotama/pkg/metrics"
	"github.com/bigkaiyoh/Hinotama/pkg/redis"
)

// maxBodyBytes 文字起こし画像込みのリクエストを許容する上限
const maxBodyBytes = 12 << 20

// Setup Gin ルーティングエンジンを初期化して返す
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── グローバルミドルウェア ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── ヘルスチェック・メトリクス ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 認証モジュール（認証不要、総当たり対策の速度制限あり）
		auth := v1.Group("/auth")
		auth.Use(middleware.RateLimit(rdb, 10, time.Minute))
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/org/login", h.Auth.LoginOrganization)
		}

		// 認証必須ルート
		// nil の *redis.Client をそのまま渡すと非 nil インターフェースに
		// なり縮退判定が効かないため、明示的に詰め替える
		var blacklist middleware.TokenBlacklist
		if rdb != nil {
			blacklist = rdb
		}
		authorized := v1.Group("")
		authorized.Use(middleware.PrincipalAuth(jwtMgr, blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// ワークスペース（ユーザー主体のみ）
			workspace := authorized.Group("/workspace", middleware.UserOnly())
			{
				workspace.GET("", h.Submission.Workspace)
				workspace.PUT("/draft", h.Submission.SaveDraft)
			}

			// 提出・採点（ユーザー主体のみ）
			submissions := authorized.Group("/submissions", middleware.UserOnly())
			{
				submissions.GET("", h.Submission.ListSubmissions)
				submissions.POST("/grade", middleware.RateLimit(rdb, 5, time.Minute), h.Submission.Grade)
				submissions.POST("/transcribe", middleware.RateLimit(rdb, 5, time.Minute), h.Submission.Transcribe)
			}
			authorized.POST("/assistant/ask", middleware.UserOnly(), middleware.RateLimit(rdb, 10, time.Minute), h.Submission.Ask)

			// ダッシュボード（組織主体のみ）
			dashboard := authorized.Group("/dashboard", middleware.OrgOnly())
			{
				dashboard.GET("/summary", h.Dashboard.Summary)
				dashboard.GET("/north-star", h.Dashboard.NorthStar)
				dashboard.GET("/users", h.Dashboard.ListUsers)
				dashboard.GET("/users/:id", h.Dashboard.UserDetail)
				dashboard.GET("/export", h.Dashboard.Export)
			}
		}
	}

	return r
}
