package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/bigkaiyoh/Hinotama/internal/model"
)

// OrganizationRepository 組織データアクセスインターフェース
// 組織の作成・更新は運用スクリプトが直接行うため、ここは参照のみ
type OrganizationRepository interface {
	GetByCode(ctx context.Context, orgCode string) (*model.Organization, error)
}

// organizationRepo OrganizationRepository の GORM 実装
type organizationRepo struct {
	db *gorm.DB
}

// NewOrganizationRepo OrganizationRepository を生成する
func NewOrganizationRepo(db *gorm.DB) OrganizationRepository {
	return &organizationRepo{db: db}
}

func (r *organizationRepo) GetByCode(ctx context.Context, orgCode string) (*model.Organization, error) {
	var org model.Organization
	err := r.db.WithContext(ctx).
		Where("org_code = ?", orgCode).
		First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}
