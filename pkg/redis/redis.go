package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bigkaiyoh/Hinotama/config"
)

// Client Redis クライアントのラッパー
// トークン黒リスト・レート制限・ユーザーワークスペースを担当する
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient Redis へ接続し Ping で疎通確認する
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 接続に失敗: %w", err)
	}

	logger.Info("Redis 接続に成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// Close 接続を閉じる
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ── トークン黒リスト ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken JWT ID を黒リストへ追加する（TTL はトークンの残存有効期間）
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // 既に失効済みのトークンは登録不要
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted JWT ID が黒リストに含まれるか確認する
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── レート制限 ──

// CheckRateLimit 固定ウィンドウ方式のレート制限
// ウィンドウ内のリクエスト数が limit を超えた場合 false を返す
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

// ── ユーザーワークスペース ──
//
// ブラウザセッション中の可変状態（入力中の作文・文字起こしフラグ・
// 直近のフィードバック）をサーバー側で保持する。ログアウトまたは
// TTL 失効で消える。

const workspacePrefix = "workspace:"

// Workspace セッション中の一時状態
type Workspace struct {
	Draft             string `json:"draft"`
	TranscriptionDone bool   `json:"transcription_done"`
	Feedback          string `json:"feedback"`
}

// GetWorkspace ユーザーのワークスペースを取得する（未作成なら空の状態を返す）
func (c *Client) GetWorkspace(ctx context.Context, userID string) (*Workspace, error) {
	raw, err := c.rdb.Get(ctx, workspacePrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return &Workspace{}, nil
		}
		return nil, err
	}

	var ws Workspace
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("ワークスペースの解析に失敗: %w", err)
	}
	return &ws, nil
}

// SaveWorkspace ワークスペースを保存する（TTL 更新込み）
func (c *Client) SaveWorkspace(ctx context.Context, userID string, ws *Workspace, ttl time.Duration) error {
	raw, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("ワークスペースのシリアライズに失敗: %w", err)
	}
	return c.rdb.Set(ctx, workspacePrefix+userID, raw, ttl).Err()
}

// ClearWorkspace ワークスペースを破棄する
func (c *Client) ClearWorkspace(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, workspacePrefix+userID).Err()
}
