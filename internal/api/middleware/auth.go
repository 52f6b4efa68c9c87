package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bigkaiyoh/Hinotama/pkg/jwt"
	"github.com/bigkaiyoh/Hinotama/pkg/response"
)

// TokenBlacklist ログアウト済みトークンの照会先
// *redis.Client が実装する
type TokenBlacklist interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// PrincipalAuth セッショントークン認証ミドルウェア
// Authorization: Bearer <token> を検証し、主体情報をコンテキストへ注入する。
// blacklist が nil の場合は黒リスト確認を省略して縮退動作する
func PrincipalAuth(jwtMgr *jwt.Manager, blacklist TokenBlacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "認証ヘッダーがありません")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "認証ヘッダーの形式が不正です")
			c.Abort()
			return
		}

		claims, err := jwtMgr.Parse(parts[1])
		if err != nil {
			response.Unauthorized(c, 10002, "トークンが無効または期限切れです")
			c.Abort()
			return
		}

		// ログアウト済みトークンの拒否
		if blacklist != nil && claims.ID != "" {
			blacklisted, err := blacklist.IsBlacklisted(c.Request.Context(), claims.ID)
			if err == nil && blacklisted {
				response.Unauthorized(c, 10002, "トークンが無効化されています")
				c.Abort()
				return
			}
		}

		c.Set("principal_id", claims.SubjectID)
		c.Set("principal_type", claims.PrincipalType)
		c.Set("claims", claims)

		c.Next()
	}
}

// UserOnly ユーザー主体のみ許可するミドルウェア
func UserOnly() gin.HandlerFunc {
	return principalTypeOnly(jwt.PrincipalUser)
}

// OrgOnly 組織主体のみ許可するミドルウェア
func OrgOnly() gin.HandlerFunc {
	return principalTypeOnly(jwt.PrincipalOrganization)
}

func principalTypeOnly(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		pt, exists := c.Get("principal_type")
		if !exists {
			response.Unauthorized(c, 10002, "未認証です")
			c.Abort()
			return
		}
		if pt.(string) != required {
			response.Forbidden(c, 10003, "この操作を行う権限がありません")
			c.Abort()
			return
		}
		c.Next()
	}
}
