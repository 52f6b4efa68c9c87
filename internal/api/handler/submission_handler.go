package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bigkaiyoh/Hinotama/internal/dto"
	"github.com/bigkaiyoh/Hinotama/internal/service"
	"github.com/bigkaiyoh/Hinotama/pkg/openai"
	"github.com/bigkaiyoh/Hinotama/pkg/response"
)

// maxImageBytes 文字起こし画像の最大サイズ
const maxImageBytes = 10 << 20

// SubmissionHandler 提出・採点モジュール HTTP ハンドラ
type SubmissionHandler struct {
	gradingSvc service.GradingService
}

// NewSubmissionHandler SubmissionHandler を生成する
func NewSubmissionHandler(gradingSvc service.GradingService) *SubmissionHandler {
	return &SubmissionHandler{gradingSvc: gradingSvc}
}

// Grade 作文を採点する
// POST /api/v1/submissions/grade
func (h *SubmissionHandler) Grade(c *gin.Context) {
	userID, ok := MustGetPrincipalID(c)
	if !ok {
		return
	}

	var req dto.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "パラメータが不正です")
		return
	}

	result, err := h.gradingSvc.Grade(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleGradingError(c, err)
		return
	}

	response.OK(c, result)
}

// Transcribe 手書き画像を文字起こしする
// POST /api/v1/submissions/transcribe （multipart/form-data、フィールド名 image）
func (h *SubmissionHandler) Transcribe(c *gin.Context) {
	userID, ok := MustGetPrincipalID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		response.BadRequest(c, 10001, "image フィールドが必要です")
		return
	}
	if fileHeader.Size > maxImageBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "画像が大きすぎます")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		response.InternalError(c)
		return
	}

	result, err := h.gradingSvc.Transcribe(c.Request.Context(), userID, image, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		h.handleGradingError(c, err)
		return
	}

	response.OK(c, result)
}

// Ask 表現提案アシスタントへの質問
// POST /api/v1/assistant/ask
func (h *SubmissionHandler) Ask(c *gin.Context) {
	if _, ok := MustGetPrincipalID(c); !ok {
		return
	}

	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "パラメータが不正です")
		return
	}

	result, err := h.gradingSvc.Ask(c.Request.Context(), &req)
	if err != nil {
		h.handleGradingError(c, err)
		return
	}

	response.OK(c, result)
}

// Workspace ワークスペースの取得
// GET /api/v1/workspace
func (h *SubmissionHandler) Workspace(c *gin.Context) {
	userID, ok := MustGetPrincipalID(c)
	if !ok {
		return
	}

	result, err := h.gradingSvc.Workspace(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// SaveDraft 下書きの保存
// PUT /api/v1/workspace/draft
func (h *SubmissionHandler) SaveDraft(c *gin.Context) {
	userID, ok := MustGetPrincipalID(c)
	if !ok {
		return
	}

	var req dto.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "パラメータが不正です")
		return
	}

	if err := h.gradingSvc.SaveDraft(c.Request.Context(), userID, &req); err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, nil)
}

// ListSubmissions 自分の提出履歴を返す
// GET /api/v1/submissions?limit=20
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	userID, ok := MustGetPrincipalID(c)
	if !ok {
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 100 {
			response.BadRequest(c, 10001, "limit は 1〜100 で指定してください")
			return
		}
		limit = v
	}

	result, err := h.gradingSvc.ListSubmissions(c.Request.Context(), userID, limit)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

func (h *SubmissionHandler) handleGradingError(c *gin.Context, err error) {
	var upstream *openai.UpstreamError
	switch {
	case errors.Is(err, service.ErrAccountInactive):
		response.Forbidden(c, 12001, "無料利用期間が終了しています")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 13001, "ユーザーが見つかりません")
	case errors.Is(err, service.ErrCorruptRecord):
		response.Error(c, http.StatusConflict, 11004, "登録情報に問題があります。運営までお問い合わせください")
	case errors.Is(err, service.ErrRunTimeout):
		response.Error(c, http.StatusGatewayTimeout, 12002, "採点処理がタイムアウトしました。もう一度お試しください")
	case errors.Is(err, service.ErrRunFailed), errors.Is(err, service.ErrEmptyCompletion):
		response.Error(c, http.StatusBadGateway, 12003, "採点サービスが応答できませんでした")
	case errors.Is(err, service.ErrQANotConfigured):
		response.Error(c, http.StatusServiceUnavailable, 12003, "この機能は現在利用できません")
	case errors.As(err, &upstream):
		response.Error(c, http.StatusBadGateway, 12003, "採点サービスが応答できませんでした")
	default:
		response.InternalError(c)
	}
}
