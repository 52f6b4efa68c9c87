package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bigkaiyoh/Hinotama/internal/model"
)

// SubmissionRepository 提出データアクセスインターフェース
// 提出は作成後不変のため更新系は持たない
type SubmissionRepository interface {
	Create(ctx context.Context, submission *model.Submission) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Submission, error)
	// ListRange 期間内の提出一覧（orgCode が空なら全ユーザー、提出時刻昇順）
	ListRange(ctx context.Context, orgCode string, start, end time.Time, limit int) ([]model.Submission, error)
}

// submissionRepo SubmissionRepository の GORM 実装
type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo SubmissionRepository を生成する
func NewSubmissionRepo(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Create(ctx context.Context, submission *model.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.Submission, error) {
	var subs []model.Submission

	db := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("submit_at DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}

	if err := db.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *submissionRepo) ListRange(ctx context.Context, orgCode string, start, end time.Time, limit int) ([]model.Submission, error) {
	var subs []model.Submission

	db := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("submit_at >= ? AND submit_at <= ?", start, end)
	if orgCode != "" {
		db = db.Joins("JOIN users ON users.user_id = submissions.user_id").
			Where("users.org_code = ?", orgCode)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}

	if err := db.Order("submit_at ASC").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
