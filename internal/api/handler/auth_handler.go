package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bigkaiyoh/Hinotama/internal/dto"
	"github.com/bigkaiyoh/Hinotama/internal/service"
	"github.com/bigkaiyoh/Hinotama/pkg/jwt"
	"github.com/bigkaiyoh/Hinotama/pkg/response"
)

// AuthHandler 認証モジュール HTTP ハンドラ
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler AuthHandler を生成する
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register ユーザー登録
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "パラメータが不正です")
		return
	}

	result, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateUserID):
			response.Error(c, http.StatusConflict, 11002, "このユーザーIDは既に使用されています")
		case errors.Is(err, service.ErrInvalidOrgCode):
			response.BadRequest(c, 11003, "組織コードが無効です")
		default:
			response.InternalError(c)
		}
		return
	}

	response.Created(c, result)
}

// Login ユーザーログイン
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "パラメータが不正です")
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req, c.GetHeader("User-Agent"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, 11001, "IDまたはパスワードが正しくありません")
		case errors.Is(err, service.ErrCorruptRecord):
			response.Error(c, http.StatusConflict, 11004, "登録情報に問題があります。運営までお問い合わせください")
		default:
			response.InternalError(c)
		}
		return
	}

	response.OK(c, result)
}

// Logout ログアウト
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), claims); err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, nil)
}

// LoginOrganization 組織ログイン
// POST /api/v1/auth/org/login
func (h *AuthHandler) LoginOrganization(c *gin.Context) {
	var req dto.OrgLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "パラメータが不正です")
		return
	}

	result, err := h.authSvc.LoginOrganization(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrgCredentials) {
			response.Error(c, http.StatusUnauthorized, 11001, "組織コードまたはパスワードが正しくありません")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// Me 現在のセッション主体を返す
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}

	switch claims.PrincipalType {
	case jwt.PrincipalUser:
		user, err := h.authSvc.CurrentUser(c.Request.Context(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, service.ErrUserNotFound) {
				response.NotFound(c, 13001, "ユーザーが見つかりません")
				return
			}
			response.InternalError(c)
			return
		}
		response.OK(c, gin.H{"principal_type": jwt.PrincipalUser, "user": user})

	case jwt.PrincipalOrganization:
		org, err := h.authSvc.CurrentOrganization(c.Request.Context(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, service.ErrOrgNotFound) {
				response.NotFound(c, 13001, "組織が見つかりません")
				return
			}
			response.InternalError(c)
			return
		}
		response.OK(c, gin.H{"principal_type": jwt.PrincipalOrganization, "organization": org})

	default:
		response.Unauthorized(c, 10002, "未認証です")
	}
}
