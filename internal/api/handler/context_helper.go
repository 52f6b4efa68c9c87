package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bigkaiyoh/Hinotama/pkg/jwt"
	"github.com/bigkaiyoh/Hinotama/pkg/response"
)

// MustGetPrincipalID Gin コンテキストから主体 ID を安全に取り出す。
// 認証ミドルウェアが注入していなければ 401 を書き込んで false を返す。
// 呼び出し側は ok=false のとき即 return すること
func MustGetPrincipalID(c *gin.Context) (string, bool) {
	v, exists := c.Get("principal_id")
	if !exists {
		response.Unauthorized(c, 10002, "未認証です")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未認証です")
		return "", false
	}
	return s, true
}

// MustGetClaims Gin コンテキストからトークンクレームを安全に取り出す
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get("claims")
	if !exists {
		response.Unauthorized(c, 10002, "未認証です")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok || claims == nil {
		response.Unauthorized(c, 10002, "未認証です")
		return nil, false
	}
	return claims, true
}
