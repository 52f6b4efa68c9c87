package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bigkaiyoh/Hinotama/config"
	"github.com/bigkaiyoh/Hinotama/internal/api/handler"
	"github.com/bigkaiyoh/Hinotama/internal/api/router"
	"github.com/bigkaiyoh/Hinotama/internal/repository"
	"github.com/bigkaiyoh/Hinotama/internal/service"
	"github.com/bigkaiyoh/Hinotama/pkg/database"
	"github.com/bigkaiyoh/Hinotama/pkg/jwt"
	applogger "github.com/bigkaiyoh/Hinotama/pkg/logger"
	"github.com/bigkaiyoh/Hinotama/pkg/metrics"
	"github.com/bigkaiyoh/Hinotama/pkg/openai"
	"github.com/bigkaiyoh/Hinotama/pkg/redis"
)

func main() {
	// 1. 設定読み込み
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗: %v\n", err)
		os.Exit(1)
	}

	// 2. ログ初期化
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ログの初期化に失敗: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("アプリ起動中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. データベース接続
	db, err := database.NewDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("データベース接続に失敗", zap.Error(err))
	}
	logger.Info("データベース接続に成功")

	// 3.1 マイグレーション実行
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("内部 sql.DB の取得に失敗", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("マイグレーションに失敗", zap.Error(err))
	}

	// 4. Redis 接続（接続失敗時は縮退して起動を続ける）
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 接続に失敗。黒リスト・ワークスペース機能は無効になります", zap.Error(err))
		rdb = nil
	}
	var sessions service.SessionStore
	if rdb != nil {
		sessions = rdb
	}

	// 5. トークン管理・外部 API クライアント・メトリクス
	jwtMgr := jwt.NewManager(&cfg.Auth)
	apiClient := openai.NewClient(&cfg.OpenAI)
	m := metrics.New()

	// 6. 依存注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, apiClient, sessions, m, logger)
	h := handler.NewHandler(svc)

	// 7. ルーティング初期化
	engine := router.Setup(cfg, h, jwtMgr, rdb, m, logger)

	// 8. HTTP サーバー起動（グレースフルシャットダウン付き）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // 採点のポーリング待ちを許容する
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP サーバーを起動", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP サーバー異常", zap.Error(err))
		}
	}()

	// 9. シグナル待機とグレースフルシャットダウン
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("終了シグナルを受信。シャットダウンを開始", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("サーバー終了時に異常", zap.Error(err))
	}

	if closeDB, _ := db.DB(); closeDB != nil {
		closeDB.Close()
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("シャットダウン完了")
}
