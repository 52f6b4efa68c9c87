package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bigkaiyoh/Hinotama/config"
)

var (
	ErrTokenExpired = errors.New("トークンの有効期限が切れています")
	ErrTokenInvalid = errors.New("トークンが無効です")
)

// プリンシパル種別
// セッションは「ユーザー」か「組織」のどちらか一方のみを保持する
const (
	PrincipalUser         = "user"
	PrincipalOrganization = "org"
)

// Claims セッショントークンのカスタムクレーム
type Claims struct {
	SubjectID     string `json:"subject_id"`     // ユーザーID または 組織コード
	PrincipalType string `json:"principal_type"` // "user" | "org"
	jwtv5.RegisteredClaims
}

// Manager セッショントークン管理
type Manager struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewManager Manager を生成する
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: cfg.TokenTTL,
	}
}

// Generate 指定プリンシパルのセッショントークンを発行する
func (m *Manager) Generate(subjectID, principalType string) (string, error) {
	now := time.Now()
	claims := Claims{
		SubjectID:     subjectID,
		PrincipalType: principalType,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.tokenTTL)),
			Issuer:    "hinotama",
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse トークンを解析・検証する
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
