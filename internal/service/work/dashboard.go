package work

import (
	"context"
	"time"

	"github.com/weiwangfds/dsnworks/internal/database"
	apperrors "github.com/weiwangfds/dsnworks/internal/errors"
)

// Stats 仪表盘统计
type Stats struct {
	DepositsCount  int        `json:"depositsCount"`
	ViewsCount     int64      `json:"viewsCount"`
	DownloadsCount int64      `json:"downloadsCount"`
	LastActivity   *time.Time `json:"lastActivity"`
}

// Dashboard 仪表盘数据
type Dashboard struct {
	Stats       Stats           `json:"stats"`
	RecentWorks []database.Work `json:"recentWorks"`
	AllWorks    []database.Work `json:"allWorks"`
}

// Dashboard 每次调用都重新汇总，不做缓存
func (s *workService) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	if userID == "" {
		return nil, apperrors.Authentication(nil)
	}

	works := make([]database.Work, 0)
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&works).Error; err != nil {
		return nil, apperrors.Collaborator(apperrors.ErrDashboardFailed, err)
	}

	return summarize(works), nil
}

// summarize 按created_at倒序的作品折叠为统计
func summarize(works []database.Work) *Dashboard {
	stats := Stats{DepositsCount: len(works)}
	for _, w := range works {
		stats.ViewsCount += w.ViewsCount
		stats.DownloadsCount += w.DownloadsCount
	}
	if len(works) > 0 {
		last := works[0].CreatedAt
		stats.LastActivity = &last
	}

	n := recentCount
	if len(works) < n {
		n = len(works)
	}
	return &Dashboard{
		Stats:       stats,
		RecentWorks: works[:n],
		AllWorks:    works,
	}
}
