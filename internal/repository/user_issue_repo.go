package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/bigkaiyoh/Hinotama/internal/model"
)

// UserIssueRepository 診断記録データアクセスインターフェース（追記専用）
type UserIssueRepository interface {
	Create(ctx context.Context, issue *model.UserIssue) error
}

// userIssueRepo UserIssueRepository の GORM 実装
type userIssueRepo struct {
	db *gorm.DB
}

// NewUserIssueRepo UserIssueRepository を生成する
func NewUserIssueRepo(db *gorm.DB) UserIssueRepository {
	return &userIssueRepo{db: db}
}

func (r *userIssueRepo) Create(ctx context.Context, issue *model.UserIssue) error {
	return r.db.WithContext(ctx).Create(issue).Error
}
