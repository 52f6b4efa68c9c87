package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/bigkaiyoh/Hinotama/config"
	"github.com/bigkaiyoh/Hinotama/internal/dto"
	"github.com/bigkaiyoh/Hinotama/internal/model"
	"github.com/bigkaiyoh/Hinotama/internal/repository"
	"github.com/bigkaiyoh/Hinotama/pkg/jwt"
	"github.com/bigkaiyoh/Hinotama/pkg/metrics"
)

// ── 認証モジュール業務エラー ──
//
// ログイン失敗時は ID 不存在とパスワード不一致を区別しない
// （どちらが誤っているかを外部へ漏らさない）

var (
	ErrDuplicateUserID       = errors.New("このユーザーIDは既に使用されています")
	ErrInvalidOrgCode        = errors.New("組織コードが無効です")
	ErrInvalidCredentials    = errors.New("IDまたはパスワードが正しくありません")
	ErrInvalidOrgCredentials = errors.New("組織コードまたはパスワードが正しくありません")
	ErrCorruptRecord         = errors.New("登録日が見つかりません")
	ErrUserNotFound          = errors.New("ユーザーが見つかりません")
	ErrOrgNotFound           = errors.New("組織が見つかりません")
)

// trialDays 登録からの無料利用期間（日）
const trialDays = 30

// CheckUserStatus 登録時刻から利用状態と残日数を導出する純関数
// daysPassed = floor((now - registerAt) / 24h)
// daysPassed <= 30 の間は Active（残日数 = 30 - daysPassed）、以降は Inactive
func CheckUserStatus(registerAt, now time.Time) (model.UserStatus, int) {
	daysPassed := int(now.UTC().Sub(registerAt.UTC()) / (24 * time.Hour))
	if daysPassed <= trialDays {
		return model.StatusActive, trialDays - daysPassed
	}
	return model.StatusInactive, 0
}

// AuthService 認証業務インターフェース
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	// Login 認証に成功するとログイン履歴を記録し、保存状態と導出状態が
	// 食い違う場合のみ DB の status を書き戻す
	Login(ctx context.Context, req *dto.LoginRequest, userAgent string) (*dto.AuthResponse, error)
	// Logout トークンを黒リストへ登録しワークスペースを破棄する。冪等
	Logout(ctx context.Context, claims *jwt.Claims) error
	LoginOrganization(ctx context.Context, req *dto.OrgLoginRequest) (*dto.OrgAuthResponse, error)
	CurrentUser(ctx context.Context, userID string) (*dto.UserView, error)
	CurrentOrganization(ctx context.Context, orgCode string) (*dto.OrgView, error)
}

type authService struct {
	cfg      *config.Config
	repo     *repository.Repository
	jwtMgr   *jwt.Manager
	sessions SessionStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewAuthService AuthService を生成する
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	sessions SessionStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:      cfg,
		repo:     repo,
		jwtMgr:   jwtMgr,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
	}
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	// 1. ユーザーID の重複確認
	if _, err := s.repo.User.GetByID(ctx, req.UserID); err == nil {
		return nil, ErrDuplicateUserID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("ユーザー照会に失敗", zap.Error(err))
		return nil, err
	}

	// 2. 組織コードの検証（空なら個人ユーザーとして扱う）
	if req.OrgCode != "" {
		if _, err := s.repo.Organization.GetByCode(ctx, req.OrgCode); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvalidOrgCode
			}
			s.logger.Error("組織照会に失敗", zap.Error(err))
			return nil, err
		}
	}

	// 3. パスワードをハッシュ化（bcrypt、ソルト込み）
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("パスワードのハッシュ化に失敗", zap.Error(err))
		return nil, err
	}

	// 4. 登録時刻は必ず UTC で記録する
	registerAt := time.Now().UTC()
	user := &model.User{
		UserID:            req.UserID,
		Email:             req.Email,
		PasswordHash:      string(hash),
		ReasonForStudying: req.ReasonForStudying,
		OrgCode:           req.OrgCode,
		RegisterAt:        &registerAt,
		Timezone:          req.Timezone,
		Status:            model.StatusActive,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		s.logger.Error("ユーザー作成に失敗", zap.Error(err))
		return nil, err
	}

	token, err := s.jwtMgr.Generate(user.UserID, jwt.PrincipalUser)
	if err != nil {
		s.logger.Error("トークン発行に失敗", zap.Error(err))
		return nil, err
	}

	return &dto.AuthResponse{
		Token: token,
		User:  userView(user, model.StatusActive, trialDays),
	}, nil
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest, userAgent string) (*dto.AuthResponse, error) {
	user, err := s.repo.User.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.countLogin(jwt.PrincipalUser, "not_found")
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("ユーザー照会に失敗", zap.Error(err))
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.countLogin(jwt.PrincipalUser, "invalid_credential")
		return nil, ErrInvalidCredentials
	}

	// 登録日時が欠落した行は状態を導出できない。推測で補完はせず、
	// 診断記録を残して失敗させる
	if user.RegisterAt == nil {
		s.recordIssue(ctx, user.UserID, "login rejected: register_at is missing")
		s.countLogin(jwt.PrincipalUser, "corrupt_record")
		return nil, ErrCorruptRecord
	}

	// 保存済み status はキャッシュに過ぎない。ログインの度に再計算し、
	// 食い違う場合のみ書き戻す（一致時は書き込みなし）
	now := time.Now().UTC()
	status, daysLeft := CheckUserStatus(*user.RegisterAt, now)
	if status != user.Status {
		if err := s.repo.User.UpdateStatus(ctx, user.UserID, status); err != nil {
			s.logger.Error("status の書き戻しに失敗", zap.Error(err))
			return nil, err
		}
	}

	// ログイン履歴はベストエフォート。失敗してもログインは成功扱い
	s.recordLoginEvent(ctx, user.UserID, userAgent, now)

	token, err := s.jwtMgr.Generate(user.UserID, jwt.PrincipalUser)
	if err != nil {
		s.logger.Error("トークン発行に失敗", zap.Error(err))
		return nil, err
	}

	s.countLogin(jwt.PrincipalUser, "success")

	return &dto.AuthResponse{
		Token: token,
		User:  userView(user, status, daysLeft),
	}, nil
}

func (s *authService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if s.sessions == nil {
		return nil
	}

	if claims.ExpiresAt != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := s.sessions.BlacklistToken(ctx, claims.ID, ttl); err != nil {
			s.logger.Warn("トークン黒リスト登録に失敗", zap.Error(err))
		}
	}

	if claims.PrincipalType == jwt.PrincipalUser {
		if err := s.sessions.ClearWorkspace(ctx, claims.SubjectID); err != nil {
			s.logger.Warn("ワークスペース破棄に失敗", zap.Error(err))
		}
	}

	return nil
}

func (s *authService) LoginOrganization(ctx context.Context, req *dto.OrgLoginRequest) (*dto.OrgAuthResponse, error) {
	org, err := s.repo.Organization.GetByCode(ctx, req.OrgCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.countLogin(jwt.PrincipalOrganization, "not_found")
			return nil, ErrInvalidOrgCredentials
		}
		s.logger.Error("組織照会に失敗", zap.Error(err))
		return nil, err
	}

	// 組織パスワードは平文の完全一致比較（運用側が手動発行する資格情報）
	if org.Password != req.Password {
		s.countLogin(jwt.PrincipalOrganization, "invalid_credential")
		return nil, ErrInvalidOrgCredentials
	}

	token, err := s.jwtMgr.Generate(org.OrgCode, jwt.PrincipalOrganization)
	if err != nil {
		s.logger.Error("トークン発行に失敗", zap.Error(err))
		return nil, err
	}

	s.countLogin(jwt.PrincipalOrganization, "success")

	return &dto.OrgAuthResponse{
		Token:        token,
		Organization: orgView(org),
	}, nil
}

func (s *authService) CurrentUser(ctx context.Context, userID string) (*dto.UserView, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	status := user.Status
	daysLeft := 0
	if user.RegisterAt != nil {
		status, daysLeft = CheckUserStatus(*user.RegisterAt, time.Now().UTC())
	}
	return userView(user, status, daysLeft), nil
}

func (s *authService) CurrentOrganization(ctx context.Context, orgCode string) (*dto.OrgView, error) {
	org, err := s.repo.Organization.GetByCode(ctx, orgCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrgNotFound
		}
		return nil, err
	}
	return orgView(org), nil
}

// ── 内部ヘルパー ──

func userView(user *model.User, status model.UserStatus, daysLeft int) *dto.UserView {
	return &dto.UserView{
		UserID:            user.UserID,
		Email:             user.Email,
		ReasonForStudying: user.ReasonForStudying,
		OrgCode:           user.OrgCode,
		Timezone:          user.Timezone,
		Status:            string(status),
		DaysLeft:          daysLeft,
		RegisterAt:        user.RegisterAt,
	}
}

func orgView(org *model.Organization) *dto.OrgView {
	return &dto.OrgView{
		OrgCode:       org.OrgCode,
		OrgName:       org.OrgName,
		Timezone:      org.Timezone,
		FullDashboard: org.FullDashboard,
	}
}

// recordLoginEvent ログイン履歴を追記する
// 失敗はログに残すだけで呼び出し元の結果には影響させない
func (s *authService) recordLoginEvent(ctx context.Context, userID, userAgent string, now time.Time) {
	device, browser := classifyUserAgent(userAgent)
	event := &model.LoginEvent{
		EventID:    uuid.New().String(),
		UserID:     userID,
		OccurredAt: now,
		DeviceType: device,
		Browser:    browser,
	}
	if err := s.repo.LoginEvent.Create(ctx, event); err != nil {
		s.logger.Warn("ログイン履歴の記録に失敗",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// recordIssue 診断記録を追記する（ベストエフォート）
func (s *authService) recordIssue(ctx context.Context, userID, description string) {
	issue := &model.UserIssue{
		IssueID:     uuid.New().String(),
		UserID:      userID,
		Description: description,
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.repo.UserIssue.Create(ctx, issue); err != nil {
		s.logger.Warn("診断記録の保存に失敗",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (s *authService) countLogin(principal, outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(principal, outcome).Inc()
	}
}

// classifyUserAgent User-Agent から端末種別とブラウザをベストエフォートで判定する
func classifyUserAgent(ua string) (device, browser string) {
	if ua == "" {
		return "Unknown", "Unknown"
	}

	switch {
	case strings.Contains(ua, "iPad") || strings.Contains(ua, "Tablet"):
		device = "Tablet"
	case strings.Contains(ua, "Mobile") || strings.Contains(ua, "iPhone") || strings.Contains(ua, "Android"):
		device = "Mobile"
	default:
		device = "Desktop"
	}

	// Chrome 系 UA は Safari を名乗るため判定順に意味がある
	switch {
	case strings.Contains(ua, "Edg/") || strings.Contains(ua, "Edge/"):
		browser = "Edge"
	case strings.Contains(ua, "OPR/") || strings.Contains(ua, "Opera"):
		browser = "Opera"
	case strings.Contains(ua, "Firefox/"):
		browser = "Firefox"
	case strings.Contains(ua, "Chrome/"):
		browser = "Chrome"
	case strings.Contains(ua, "Safari/"):
		browser = "Safari"
	default:
		browser = "Unknown"
	}

	return device, browser
}
