package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bigkaiyoh/Hinotama/internal/model"
)

// LoginEventRepository ログイン履歴データアクセスインターフェース（追記専用）
type LoginEventRepository interface {
	Create(ctx context.Context, event *model.LoginEvent) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.LoginEvent, error)
	// ListRange 期間内のログイン履歴（orgCode が空なら全ユーザー）
	ListRange(ctx context.Context, orgCode string, start, end time.Time, limit int) ([]model.LoginEvent, error)
}

// loginEventRepo LoginEventRepository の GORM 実装
type loginEventRepo struct {
	db *gorm.DB
}

// NewLoginEventRepo LoginEventRepository を生成する
func NewLoginEventRepo(db *gorm.DB) LoginEventRepository {
	return &loginEventRepo{db: db}
}

func (r *loginEventRepo) Create(ctx context.Context, event *model.LoginEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *loginEventRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.LoginEvent, error) {
	var events []model.LoginEvent

	db := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("occurred_at DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}

	if err := db.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *loginEventRepo) ListRange(ctx context.Context, orgCode string, start, end time.Time, limit int) ([]model.LoginEvent, error) {
	var events []model.LoginEvent

	db := r.db.WithContext(ctx).
		Model(&model.LoginEvent{}).
		Where("occurred_at >= ? AND occurred_at <= ?", start, end)
	if orgCode != "" {
		db = db.Joins("JOIN users ON users.user_id = login_events.user_id").
			Where("users.org_code = ?", orgCode)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}

	if err := db.Order("occurred_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
