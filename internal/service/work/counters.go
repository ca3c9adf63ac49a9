package work

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/dsnworks/internal/database"
	apperrors "github.com/weiwangfds/dsnworks/internal/errors"
	"github.com/weiwangfds/dsnworks/internal/logger"
	"github.com/weiwangfds/dsnworks/internal/metrics"
	"gorm.io/gorm"
)

// DownloadLink 下载意图的结果
type DownloadLink struct {
	URL      string
	FileName string
}

type counter struct {
	column string
	kind   string
	failed apperrors.ErrorCode
}

var (
	viewsCounter     = counter{column: "views_count", kind: "views", failed: apperrors.ErrViewsIncFailed}
	downloadsCounter = counter{column: "downloads_count", kind: "downloads", failed: apperrors.ErrDownloadsIncFailed}
)

// IncrementViews 浏览数加一，未知id不报错
func (s *workService) IncrementViews(ctx context.Context, id string) error {
	return s.increment(ctx, id, viewsCounter)
}

// IncrementDownloads 下载数加一
func (s *workService) IncrementDownloads(ctx context.Context, id string) error {
	return s.increment(ctx, id, downloadsCounter)
}

// increment 先走数据库原子自增，失败或被关闭时降级为读-改-写
func (s *workService) increment(ctx context.Context, id string, c counter) error {
	if s.opts.AtomicCounters {
		err := s.db.WithContext(ctx).Model(&database.Work{}).
			Where("id = ?", id).
			Update(c.column, gorm.Expr(c.column+" + ?", 1)).Error
		metrics.RecordIncrement(c.kind, "atomic", err)
		if err == nil {
			return nil
		}
		logger.WithFields(logrus.Fields{"work_id": id, "counter": c.column}).
			Warnf("atomic increment failed, using fallback: %v", err)
	}
	return s.incrementFallback(ctx, id, c)
}

// incrementFallback 非原子路径：并发自增可能丢失计数
func (s *workService) incrementFallback(ctx context.Context, id string, c counter) error {
	logger.WithFields(logrus.Fields{"work_id": id, "counter": c.column}).
		Warn("non-atomic counter increment, concurrent increments may be lost")

	var current []int64
	err := s.db.WithContext(ctx).Model(&database.Work{}).
		Where("id = ?", id).
		Pluck(c.column, &current).Error
	if err == nil && len(current) > 0 {
		err = s.db.WithContext(ctx).Model(&database.Work{}).
			Where("id = ?", id).
			Update(c.column, current[0]+1).Error
	}
	metrics.RecordIncrement(c.kind, "fallback", err)
	if err != nil {
		return apperrors.Collaborator(c.failed, err)
	}
	return nil
}

// Download 已发布作品的下载链接；计数失败不影响下载
func (s *workService) Download(ctx context.Context, id string) (*DownloadLink, error) {
	work, err := s.GetPublished(ctx, id)
	if err != nil {
		return nil, err
	}

	link := work.FileURL
	if work.StorageKey != "" {
		link, err = s.storage.DownloadURL(ctx, work.StorageKey, work.FileName, s.opts.URLExpiry)
		if err != nil {
			return nil, apperrors.Collaborator(apperrors.ErrDownloadURLFailed, err)
		}
	}

	if err := s.IncrementDownloads(ctx, id); err != nil {
		logger.WithField("work_id", id).Warnf("download counter not updated: %v", err)
	}
	return &DownloadLink{URL: link, FileName: work.FileName}, nil
}
