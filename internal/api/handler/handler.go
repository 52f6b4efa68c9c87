package handler

import "github.com/bigkaiyoh/Hinotama/internal/service"

// Handler 全 Handler の集約エントリ
type Handler struct {
	Auth       *AuthHandler
	Submission *SubmissionHandler
	Dashboard  *DashboardHandler
}

// NewHandler Handler 集約を生成する
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		Submission: NewSubmissionHandler(svc.Grading),
		Dashboard:  NewDashboardHandler(svc.Dashboard),
	}
}
