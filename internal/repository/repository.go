package repository

import "gorm.io/gorm"

// Repository 全 Repository の集約
type Repository struct {
	User         UserRepository
	Organization OrganizationRepository
	Submission   SubmissionRepository
	LoginEvent   LoginEventRepository
	UserIssue    UserIssueRepository
}

// NewRepository Repository 集約を生成する
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:         NewUserRepo(db),
		Organization: NewOrganizationRepo(db),
		Submission:   NewSubmissionRepo(db),
		LoginEvent:   NewLoginEventRepo(db),
		UserIssue:    NewUserIssueRepo(db),
	}
}
