package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bigkaiyoh/Hinotama/internal/dto"
	"github.com/bigkaiyoh/Hinotama/internal/model"
	"github.com/bigkaiyoh/Hinotama/internal/repository"
)

// ── ダッシュボードモジュール業務エラー ──

var (
	ErrDashboardOrgNotFound  = errors.New("組織が見つかりません")
	ErrDashboardUserNotFound = errors.New("対象ユーザーが見つかりません")
	ErrExportGenerateFail    = errors.New("Excel ファイルの生成に失敗しました")
)

// queryLimit 集計 1 回あたりの読み込み上限
// 集計は DB 側ではなくメモリ上で行うため、読み込み件数をここで抑える
const queryLimit = 1000

// DashboardService マーケティングダッシュボード業務インターフェース
//
// 設計メモ：
//   - full_dashboard が真の組織は全ユーザーを、偽の組織は自組織の
//     ユーザーのみを対象に集計する
//   - 指標の定義はマーケティング側と合意済みの計算式に固定している
type DashboardService interface {
	// Summary サインポスト指標（期間指定なしの全体像）
	Summary(ctx context.Context, orgCode string) (*dto.DashboardSummary, error)
	// NorthStar ノーススターメトリック（期間指定）
	NorthStar(ctx context.Context, orgCode string, start, end time.Time) (*dto.NorthStarMetrics, error)
	ListUsers(ctx context.Context, orgCode string) ([]dto.DashboardUser, error)
	UserDetail(ctx context.Context, orgCode, userID string) (*dto.UserDetail, error)
	// Export サマリーと期間内提出を Excel (.xlsx) で書き出す
	Export(ctx context.Context, orgCode string, start, end time.Time) (*bytes.Buffer, string, error)
}

type dashboardService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewDashboardService DashboardService を生成する
func NewDashboardService(repo *repository.Repository, logger *zap.Logger) DashboardService {
	return &dashboardService{repo: repo, logger: logger}
}

// resolveScope 組織コードから集計対象スコープを解決する（空文字は全ユーザー対象）
func (s *dashboardService) resolveScope(ctx context.Context, orgCode string) (string, error) {
	org, err := s.repo.Organization.GetByCode(ctx, orgCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrDashboardOrgNotFound
		}
		s.logger.Error("組織照会に失敗", zap.Error(err))
		return "", err
	}
	if org.FullDashboard {
		return "", nil
	}
	return org.OrgCode, nil
}

// ═══════════════════════════════════════════════════════════
// Summary サインポスト指標を集計する
// ═══════════════════════════════════════════════════════════
//
// 計算式：
//   - アクティブユーザー数：登録時刻から導出した状態が Active の人数
//   - 複数回提出率：本日（UTC）提出したユーザーのうち 2 回以上提出した割合
//   - 継続利用率：登録 14 日以上のユーザーのうち直近 2 週間で
//     2 回以上ログインした割合

func (s *dashboardService) Summary(ctx context.Context, orgCode string) (*dto.DashboardSummary, error) {
	scope, err := s.resolveScope(ctx, orgCode)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	users, err := s.repo.User.List(ctx, scope, queryLimit)
	if err != nil {
		s.logger.Error("ユーザー一覧の取得に失敗", zap.Error(err))
		return nil, err
	}

	// 本日分の提出のみ対象
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	todaySubs, err := s.repo.Submission.ListRange(ctx, scope, dayStart, now, queryLimit)
	if err != nil {
		s.logger.Error("提出一覧の取得に失敗", zap.Error(err))
		return nil, err
	}

	// 直近 2 週間のログインのみ対象
	twoWeeksAgo := now.AddDate(0, 0, -14)
	recentLogins, err := s.repo.LoginEvent.ListRange(ctx, scope, twoWeeksAgo, now, queryLimit)
	if err != nil {
		s.logger.Error("ログイン履歴の取得に失敗", zap.Error(err))
		return nil, err
	}

	activeCount := 0
	for _, u := range users {
		if u.RegisterAt == nil {
			continue
		}
		if status, _ := CheckUserStatus(*u.RegisterAt, now); status == model.StatusActive {
			activeCount++
		}
	}

	return &dto.DashboardSummary{
		ActiveUsers:            activeCount,
		TotalUsers:             len(users),
		MultipleSubmissionRate: multipleSubmissionRate(todaySubs),
		RetentionRate:          retentionRate(users, recentLogins, now),
	}, nil
}

// multipleSubmissionRate 本日提出したユーザーのうち複数回提出した割合（%）
func multipleSubmissionRate(todaySubs []model.Submission) float64 {
	submitted := make(map[string]bool)
	multiple := make(map[string]bool)
	for _, sub := range todaySubs {
		if submitted[sub.UserID] {
			multiple[sub.UserID] = true
		} else {
			submitted[sub.UserID] = true
		}
	}
	if len(submitted) == 0 {
		return 0
	}
	return float64(len(multiple)) / float64(len(submitted)) * 100
}

// retentionRate 登録 14 日以上のユーザーのうち期間内に 2 回以上ログインした割合（%）
func retentionRate(users []model.User, recentLogins []model.LoginEvent, now time.Time) float64 {
	cutoff := now.AddDate(0, 0, -14)

	loginCount := make(map[string]int)
	for _, e := range recentLogins {
		loginCount[e.UserID]++
	}

	eligible := 0
	retained := 0
	for _, u := range users {
		if u.RegisterAt == nil || u.RegisterAt.After(cutoff) {
			continue
		}
		eligible++
		if loginCount[u.UserID] >= 2 {
			retained++
		}
	}
	if eligible == 0 {
		return 0
	}
	return float64(retained) / float64(eligible) * 100
}

// ═══════════════════════════════════════════════════════════
// NorthStar ノーススターメトリックを集計する
// ═══════════════════════════════════════════════════════════
//
// 計算式：
//   - 平均提出数：期間内の提出総数 ÷ アクティブユーザー数
//   - 平均スコア改善度：スコア付き提出が 2 件以上あるユーザーごとの
//     （最終スコア − 初回スコア）の平均

func (s *dashboardService) NorthStar(ctx context.Context, orgCode string, start, end time.Time) (*dto.NorthStarMetrics, error) {
	scope, err := s.resolveScope(ctx, orgCode)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	users, err := s.repo.User.List(ctx, scope, queryLimit)
	if err != nil {
		s.logger.Error("ユーザー一覧の取得に失敗", zap.Error(err))
		return nil, err
	}

	// 提出時刻昇順で取得される。スコア改善度は取得順に依存する
	subs, err := s.repo.Submission.ListRange(ctx, scope, start, end, queryLimit)
	if err != nil {
		s.logger.Error("提出一覧の取得に失敗", zap.Error(err))
		return nil, err
	}

	activeCount := 0
	for _, u := range users {
		if u.RegisterAt == nil {
			continue
		}
		if status, _ := CheckUserStatus(*u.RegisterAt, now); status == model.StatusActive {
			activeCount++
		}
	}

	avgSubmissions := 0.0
	if activeCount > 0 {
		avgSubmissions = float64(len(subs)) / float64(activeCount)
	}

	progression := make([]dto.ScorePoint, 0, len(subs))
	for _, sub := range subs {
		if sub.Score == nil {
			continue
		}
		progression = append(progression, dto.ScorePoint{
			UserID:   sub.UserID,
			Score:    sub.Score,
			SubmitAt: sub.SubmitAt,
		})
	}

	return &dto.NorthStarMetrics{
		StartDate:                 start,
		EndDate:                   end,
		AverageSubmissionsPerUser: avgSubmissions,
		AverageScoreImprovement:   scoreImprovement(subs),
		ScoreProgression:          progression,
	}, nil
}

// scoreImprovement ユーザーごとの（最終 − 初回）スコア差の平均
// スコア付き提出が 1 件以下のユーザーは対象外
func scoreImprovement(subs []model.Submission) float64 {
	scores := make(map[string][]float64)
	for _, sub := range subs {
		if sub.Score != nil {
			scores[sub.UserID] = append(scores[sub.UserID], *sub.Score)
		}
	}

	total := 0.0
	count := 0
	for _, ss := range scores {
		if len(ss) > 1 {
			total += ss[len(ss)-1] - ss[0]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// ═══════════════════════════════════════════════════════════
// ユーザー一覧・詳細
// ═══════════════════════════════════════════════════════════

func (s *dashboardService) ListUsers(ctx context.Context, orgCode string) ([]dto.DashboardUser, error) {
	scope, err := s.resolveScope(ctx, orgCode)
	if err != nil {
		return nil, err
	}

	users, err := s.repo.User.List(ctx, scope, queryLimit)
	if err != nil {
		s.logger.Error("ユーザー一覧の取得に失敗", zap.Error(err))
		return nil, err
	}

	now := time.Now().UTC()
	views := make([]dto.DashboardUser, 0, len(users))
	for _, u := range users {
		views = append(views, dashboardUserView(&u, now))
	}
	return views, nil
}

func (s *dashboardService) UserDetail(ctx context.Context, orgCode, userID string) (*dto.UserDetail, error) {
	scope, err := s.resolveScope(ctx, orgCode)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDashboardUserNotFound
		}
		s.logger.Error("ユーザー照会に失敗", zap.Error(err))
		return nil, err
	}

	// 自組織スコープの組織は他組織のユーザーを参照できない
	// （存在の有無も漏らさず not found と同じ応答にする）
	if scope != "" && user.OrgCode != scope {
		return nil, ErrDashboardUserNotFound
	}

	subs, err := s.repo.Submission.ListByUser(ctx, userID, queryLimit)
	if err != nil {
		s.logger.Error("提出一覧の取得に失敗", zap.Error(err))
		return nil, err
	}

	logins, err := s.repo.LoginEvent.ListByUser(ctx, userID, queryLimit)
	if err != nil {
		s.logger.Error("ログイン履歴の取得に失敗", zap.Error(err))
		return nil, err
	}

	subViews := make([]dto.SubmissionView, 0, len(subs))
	for _, sub := range subs {
		subViews = append(subViews, dto.SubmissionView{
			SubmissionID: sub.SubmissionID,
			Text:         sub.Text,
			Feedback:     sub.Feedback,
			Score:        sub.Score,
			SubmitAt:     sub.SubmitAt,
		})
	}

	loginViews := make([]dto.LoginEventView, 0, len(logins))
	for _, e := range logins {
		loginViews = append(loginViews, dto.LoginEventView{
			OccurredAt: e.OccurredAt,
			DeviceType: e.DeviceType,
			Browser:    e.Browser,
		})
	}

	detail := &dto.UserDetail{
		User:        dashboardUserView(user, time.Now().UTC()),
		Submissions: subViews,
		LoginEvents: loginViews,
	}
	return detail, nil
}

func dashboardUserView(u *model.User, now time.Time) dto.DashboardUser {
	status := u.Status
	if u.RegisterAt != nil {
		status, _ = CheckUserStatus(*u.RegisterAt, now)
	}
	return dto.DashboardUser{
		UserID:            u.UserID,
		ReasonForStudying: u.ReasonForStudying,
		Status:            string(status),
		RegisterAt:        u.RegisterAt,
	}
}

// ═══════════════════════════════════════════════════════════
// Export サマリーと提出一覧を Excel (.xlsx) に書き出す
// ═══════════════════════════════════════════════════════════
//
// 出力形式：
//   - Sheet "Summary"：サインポスト指標とノーススターメトリック
//   - Sheet "Submissions"：期間内の提出明細
//
// 返り値：buf（Excel 内容）, filename（推奨ファイル名）, error

func (s *dashboardService) Export(ctx context.Context, orgCode string, start, end time.Time) (*bytes.Buffer, string, error) {
	scope, err := s.resolveScope(ctx, orgCode)
	if err != nil {
		return nil, "", err
	}
	summary, err := s.Summary(ctx, orgCode)
	if err != nil {
		return nil, "", err
	}
	northStar, err := s.NorthStar(ctx, orgCode, start, end)
	if err != nil {
		return nil, "", err
	}
	subs, err := s.repo.Submission.ListRange(ctx, scope, start, end, queryLimit)
	if err != nil {
		s.logger.Error("提出一覧の取得に失敗", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	// Sheet 1: Summary
	const summarySheet = "Summary"
	f.SetSheetName("Sheet1", summarySheet)

	rows := [][]interface{}{
		{"指標", "値"},
		{"アクティブユーザー数", summary.ActiveUsers},
		{"累計ユーザー数", summary.TotalUsers},
		{"1日内の複数回提出率 (%)", summary.MultipleSubmissionRate},
		{"継続利用率 (%)", summary.RetentionRate},
		{"平均提出数", northStar.AverageSubmissionsPerUser},
		{"平均スコア改善度", northStar.AverageScoreImprovement},
		{"集計期間", fmt.Sprintf("%s 〜 %s", start.Format("2006-01-02"), end.Format("2006-01-02"))},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			s.logger.Error("Excel 書き込みに失敗", zap.Error(err))
			return nil, "", ErrExportGenerateFail
		}
	}

	// Sheet 2: Submissions
	const subsSheet = "Submissions"
	if _, err := f.NewSheet(subsSheet); err != nil {
		return nil, "", ErrExportGenerateFail
	}

	header := []interface{}{"提出ID", "ユーザーID", "スコア", "提出日時"}
	if err := f.SetSheetRow(subsSheet, "A1", &header); err != nil {
		return nil, "", ErrExportGenerateFail
	}
	for i, sub := range subs {
		score := interface{}(nil)
		if sub.Score != nil {
			score = *sub.Score
		}
		row := []interface{}{sub.SubmissionID, sub.UserID, score, sub.SubmitAt.Format(time.RFC3339)}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(subsSheet, cell, &row); err != nil {
			return nil, "", ErrExportGenerateFail
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("Excel バッファ書き出しに失敗", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("hinotama_dashboard_%s.xlsx", time.Now().UTC().Format("20060102"))
	return buf, filename, nil
}
