package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bigkaiyoh/Hinotama/internal/service"
	"github.com/bigkaiyoh/Hinotama/pkg/response"
)

const excelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DashboardHandler ダッシュボードモジュール HTTP ハンドラ
// 全ルートが組織主体のみ（OrgOnly ミドルウェアで保証）
type DashboardHandler struct {
	dashboardSvc service.DashboardService
}

// NewDashboardHandler DashboardHandler を生成する
func NewDashboardHandler(dashboardSvc service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardSvc: dashboardSvc}
}

// Summary サインポスト指標
// GET /api/v1/dashboard/summary
func (h *DashboardHandler) Summary(c *gin.Context) {
	orgCode, ok := MustGetPrincipalID(c)
	if !ok {
		return
	}

	result, err := h.dashboardSvc.Summary(c.Request.Context(), orgCode)
	if err != nil {
		h.handleDashboardError(c, err)
		return
	}

	response.OK(c, result)
}

// NorthStar ノーススターメトリック
// GET /api/v1/dashboard/north-star?start_date=2026-08-01&end_date=2026-08-31
// 期間未指定時は直近 30 日
func (h *DashboardHandler) NorthStar(c *gin.Context) {
	orgCode, ok := MustGetPrincipalID(c)
	if !ok {
		return
	}

	start, end, ok := parseDateRange(c)
	if !ok {
		return
	}

	result, err := h.dashboardSvc.NorthStar(c.Request.Context(), orgCode, start, end)
	if err != nil {
		h.handleDashboardError(c, err)
		return
	}

	response.OK(c, result)
}

// ListUsers 対象ユーザー一覧
// GET /api/v1/dashboard/users
func (h *DashboardHandler) ListUsers(c *gin.Context) {
	orgCode, ok := MustGetPrincipalID(c)
	if !ok {
		return
	}

	result, err := h.dashboardSvc.ListUsers(c.Request.Context(), orgCode)
	if err != nil {
		h.handleDashboardError(c, err)
		return
	}

	response.OK(c, result)
}

// UserDetail ユーザー詳細
// GET /api/v1/dashboard/users/:id
func (h *DashboardHandler) UserDetail(c *gin.Context) {
	orgCode, ok := MustGetPrincipalID(c)
	if !ok {
		return
	}

	userID := c.Param("id")
	if userID == "" {
		response.BadRequest(c, 10001, "ユーザーIDが必要です")
		return
	}

	result, err := h.dashboardSvc.UserDetail(c.Request.Context(), orgCode, userID)
	if err != nil {
		h.handleDashboardError(c, err)
		return
	}

	response.OK(c, result)
}

// Export ダッシュボードの Excel 書き出し
// GET /api/v1/dashboard/export?start_date=...&end_date=...
func (h *DashboardHandler) Export(c *gin.Context) {
	orgCode, ok := MustGetPrincipalID(c)
	if !ok {
		return
	}

	start, end, ok := parseDateRange(c)
	if !ok {
		return
	}

	buf, filename, err := h.dashboardSvc.Export(c.Request.Context(), orgCode, start, end)
	if err != nil {
		h.handleDashboardError(c, err)
		return
	}

	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Header("Content-Type", excelContentType)
	c.Data(http.StatusOK, excelContentType, buf.Bytes())
}

// parseDateRange start_date / end_date クエリを解釈する（YYYY-MM-DD、UTC）
// 未指定時は直近 30 日。不正な値は 400 を書き込んで ok=false を返す
func parseDateRange(c *gin.Context) (start, end time.Time, ok bool) {
	now := time.Now().UTC()
	start = now.AddDate(0, 0, -30)
	end = now

	if raw := c.Query("start_date"); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			response.BadRequest(c, 10001, "start_date は YYYY-MM-DD で指定してください")
			return start, end, false
		}
		start = t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			response.BadRequest(c, 10001, "end_date は YYYY-MM-DD で指定してください")
			return start, end, false
		}
		// 終了日はその日の終わりまで含める
		end = t.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		response.BadRequest(c, 10001, "end_date は start_date 以降を指定してください")
		return start, end, false
	}
	return start, end, true
}

func (h *DashboardHandler) handleDashboardError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDashboardOrgNotFound):
		response.NotFound(c, 13001, "組織が見つかりません")
	case errors.Is(err, service.ErrDashboardUserNotFound):
		response.NotFound(c, 13001, "対象ユーザーが見つかりません")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
