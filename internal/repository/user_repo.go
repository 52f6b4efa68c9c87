package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/bigkaiyoh/Hinotama/internal/model"
)

// UserRepository ユーザーデータアクセスインターフェース
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateStatus(ctx context.Context, id string, status model.UserStatus) error
	// List org コードでの絞り込み一覧（orgCode が空なら全件、limit <= 0 なら無制限）
	List(ctx context.Context, orgCode string, limit int) ([]model.User, error)
}

// userRepo UserRepository の GORM 実装
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo UserRepository を生成する
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) UpdateStatus(ctx context.Context, id string, status model.UserStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", id).
		Update("status", status).Error
}

func (r *userRepo) List(ctx context.Context, orgCode string, limit int) ([]model.User, error) {
	var users []model.User

	db := r.db.WithContext(ctx).Model(&model.User{})
	if orgCode != "" {
		db = db.Where("org_code = ?", orgCode)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}

	if err := db.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
