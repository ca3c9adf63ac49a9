// Package work 作品的提交、目录查询、详情、计数和仪表盘
package work

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/dsnworks/config"
	"github.com/weiwangfds/dsnworks/internal/database"
	apperrors "github.com/weiwangfds/dsnworks/internal/errors"
	"github.com/weiwangfds/dsnworks/internal/events"
	"github.com/weiwangfds/dsnworks/internal/logger"
	"github.com/weiwangfds/dsnworks/internal/metrics"
	"github.com/weiwangfds/dsnworks/internal/service/storage"
	"gorm.io/gorm"
)

const (
	defaultPage  = 1
	defaultLimit = 12
	maxLimit     = 100
	recentCount  = 5

	defaultPublishTimeout = 2 * time.Second
)

// WorkService 作品服务接口
type WorkService interface {
	// Create 校验、上传文件并写入一条待审核作品
	Create(ctx context.Context, userID string, req *CreateWorkRequest) (*database.Work, error)

	// List 公开目录查询，只返回已发布作品
	List(ctx context.Context, q ListQuery) (*ListResult, error)

	// GetPublished 公开详情，未发布与不存在不可区分
	GetPublished(ctx context.Context, id string) (*database.Work, error)

	// GetOwned 所有者详情，不限制状态
	GetOwned(ctx context.Context, id, userID string) (*database.Work, error)

	// Update 所有者合并部分字段
	Update(ctx context.Context, id, userID string, patch map[string]interface{}) (*database.Work, error)

	// Delete 所有者删除作品，存储对象保留
	Delete(ctx context.Context, id, userID string) error

	// IncrementViews 浏览数加一
	IncrementViews(ctx context.Context, id string) error

	// IncrementDownloads 下载数加一
	IncrementDownloads(ctx context.Context, id string) error

	// Download 生成已发布作品的下载链接并计数
	Download(ctx context.Context, id string) (*DownloadLink, error)

	// Upload 独立上传文件，不写数据库
	Upload(ctx context.Context, userID string, file *FileInput) (*UploadResult, error)

	// Dashboard 汇总调用方自己的作品
	Dashboard(ctx context.Context, userID string) (*Dashboard, error)
}

// CreateWorkRequest 提交作品请求
type CreateWorkRequest struct {
	Title       string     `validate:"required"`
	Description string     `validate:"required"`
	Author      string     `validate:"required"`
	Module      string     `validate:"required,module"`
	Teacher     string     `validate:"required,teacher"`
	File        *FileInput `validate:"required"`
	// Status 调用方提供的状态，始终被忽略
	Status string
}

// ListQuery 目录查询参数
type ListQuery struct {
	Page    int
	Limit   int
	Module  string
	Teacher string
	Search  string
}

// ListResult 目录查询结果
type ListResult struct {
	Works      []database.Work
	Total      int64
	Page       int
	TotalPages int
}

// Options 服务配置
type Options struct {
	Folder         string
	URLExpiry      time.Duration
	AtomicCounters bool
	Policy         FilePolicy
	// PublishTimeout 事件发布的等待上限，超时只记录日志
	PublishTimeout time.Duration
}

// OptionsFromConfig 从全局配置构造服务配置
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Folder:         cfg.Storage.Folder,
		URLExpiry:      time.Duration(cfg.Storage.URLExpiry) * time.Second,
		AtomicCounters: cfg.Counters.Atomic,
		Policy: FilePolicy{
			MaxSize:      cfg.Upload.MaxFileSize,
			AllowedTypes: cfg.Upload.AllowedTypes,
		},
		PublishTimeout: time.Duration(cfg.Events.PublishTimeoutMS) * time.Millisecond,
	}
}

// workService 作品服务实现
type workService struct {
	db        *gorm.DB
	storage   storage.Provider
	publisher events.Publisher
	opts      Options
	validate  *validator.Validate
}

// NewWorkService 创建作品服务实例
func NewWorkService(db *gorm.DB, provider storage.Provider, publisher events.Publisher, opts Options) WorkService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = time.Hour
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	return &workService{
		db:        db,
		storage:   provider,
		publisher: publisher,
		opts:      opts,
		validate:  newValidator(),
	}
}

// Create 提交作品
func (s *workService) Create(ctx context.Context, userID string, req *CreateWorkRequest) (*database.Work, error) {
	if userID == "" {
		return nil, apperrors.Authentication(nil)
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Author = strings.TrimSpace(req.Author)
	req.Module = strings.TrimSpace(req.Module)
	req.Teacher = strings.TrimSpace(req.Teacher)

	// 全部校验在上传之前完成
	if err := s.validate.Struct(req); err != nil {
		return nil, translateValidation(err)
	}
	contentType, err := s.opts.Policy.Check(req.File)
	if err != nil {
		return nil, err
	}

	key := storage.ObjectKey(s.opts.Folder, req.File.Name)
	obj, err := s.storage.Upload(ctx, key, req.File.Content, req.File.Size, contentType)
	if err != nil {
		metrics.UploadsFailed.Inc()
		return nil, apperrors.Collaborator(apperrors.ErrFileUploadFailed, err)
	}

	now := time.Now().UTC()
	work := &database.Work{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Author:      req.Author,
		Module:      req.Module,
		Teacher:     req.Teacher,
		FileURL:     obj.URL,
		FileName:    req.File.Name,
		FileSize:    req.File.Size,
		StorageKey:  obj.Key,
		UploadDate:  now,
		UserID:      userID,
		Status:      database.StatusUnderReview,
	}

	if err := s.db.WithContext(ctx).Create(work).Error; err != nil {
		// 已上传的对象不做补偿
		logger.WithFields(logrus.Fields{
			"user_id":    userID,
			"object_key": obj.Key,
		}).Warnf("work insert failed after upload, object left in storage: %v", err)
		return nil, apperrors.Collaborator(apperrors.ErrWorkCreateFailed, err)
	}

	metrics.WorksSubmitted.Inc()
	logger.WithFields(logrus.Fields{
		"work_id": work.ID,
		"user_id": userID,
		"module":  work.Module,
	}).Info("work submitted for review")

	s.publish(ctx, events.Event{
		Type:       events.TypeWorkSubmitted,
		WorkID:     work.ID,
		UserID:     userID,
		Title:      work.Title,
		Module:     work.Module,
		Teacher:    work.Teacher,
		FileURL:    work.FileURL,
		StorageKey: work.StorageKey,
		OccurredAt: now,
	})
	return work, nil
}

// List 公开目录
func (s *workService) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	page, limit := normalizePage(q.Page, q.Limit)
	filter := s.catalogFilter(q)

	var total int64
	if err := s.db.WithContext(ctx).Model(&database.Work{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, apperrors.Collaborator(apperrors.ErrWorkListFailed, err)
	}

	// 超出末页时不再查询，也避免偏移量溢出
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	works := make([]database.Work, 0, limit)
	if page <= totalPages {
		if err := s.db.WithContext(ctx).Scopes(filter).
			Order("upload_date DESC").
			Offset((page - 1) * limit).
			Limit(limit).
			Find(&works).Error; err != nil {
			return nil, apperrors.Collaborator(apperrors.ErrWorkListFailed, err)
		}
	}

	return &ListResult{
		Works:      works,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

// catalogFilter 已发布硬过滤 + 可选的等值和搜索条件
func (s *workService) catalogFilter(q ListQuery) func(*gorm.DB) *gorm.DB {
	module := strings.TrimSpace(q.Module)
	teacher := strings.TrimSpace(q.Teacher)
	search := strings.TrimSpace(q.Search)

	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("status = ?", database.StatusPublished)
		if module != "" {
			db = db.Where("module = ?", module)
		}
		if teacher != "" {
			db = db.Where("teacher = ?", teacher)
		}
		if search != "" {
			db = db.Where(s.searchClause(), searchPattern(search), searchPattern(search), searchPattern(search))
		}
		return db
	}
}

func (s *workService) searchClause() string {
	if s.db.Dialector.Name() == "postgres" {
		return `(title ILIKE ? ESCAPE '\' OR description ILIKE ? ESCAPE '\' OR author ILIKE ? ESCAPE '\')`
	}
	// fold由SQLite驱动注册
	return `(fold(title) LIKE ? ESCAPE '\' OR fold(description) LIKE ? ESCAPE '\' OR fold(author) LIKE ? ESCAPE '\')`
}

// searchPattern 转义LIKE通配符后包裹为子串匹配
func searchPattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(search)) + "%"
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// GetPublished 公开详情
func (s *workService) GetPublished(ctx context.Context, id string) (*database.Work, error) {
	var work database.Work
	err := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, database.StatusPublished).
		Take(&work).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(apperrors.ErrWorkNotFound)
		}
		return nil, apperrors.Collaborator(apperrors.ErrWorkListFailed, err)
	}
	return &work, nil
}

// GetOwned 所有者详情
func (s *workService) GetOwned(ctx context.Context, id, userID string) (*database.Work, error) {
	if userID == "" {
		return nil, apperrors.Authentication(nil)
	}
	work, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if work.UserID != userID {
		return nil, apperrors.Authorization(apperrors.ErrWorkAccessDenied)
	}
	return work, nil
}

func (s *workService) findByID(ctx context.Context, id string) (*database.Work, error) {
	var work database.Work
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&work).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(apperrors.ErrWorkNotFound)
		}
		return nil, apperrors.Collaborator(apperrors.ErrWorkListFailed, err)
	}
	return &work, nil
}

// Update 所有者更新
// 写入条件同时包含id和user_id，未命中时再读一次区分404和403
func (s *workService) Update(ctx context.Context, id, userID string, patch map[string]interface{}) (*database.Work, error) {
	if userID == "" {
		return nil, apperrors.Authentication(nil)
	}

	updates, err := sanitizePatch(patch)
	if err != nil {
		return nil, err
	}
	updates["updated_at"] = time.Now().UTC()

	res := s.db.WithContext(ctx).Model(&database.Work{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if res.Error != nil {
		return nil, apperrors.Collaborator(apperrors.ErrWorkUpdateFailed, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, s.classifyMiss(ctx, id, apperrors.ErrWorkUpdateDenied)
	}

	logger.WithFields(logrus.Fields{"work_id": id, "user_id": userID}).Info("work updated")
	return s.findByID(ctx, id)
}

// Delete 所有者删除
// 在同一事务内按id和user_id读出文件引用再删除，删除事件携带文件引用供外部清理
func (s *workService) Delete(ctx context.Context, id, userID string) error {
	if userID == "" {
		return apperrors.Authentication(nil)
	}

	var removed database.Work
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "file_url", "storage_key").
			Where("id = ? AND user_id = ?", id, userID).
			Take(&removed).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&database.Work{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.classifyMiss(ctx, id, apperrors.ErrWorkDeleteDenied)
	}
	if err != nil {
		return apperrors.Collaborator(apperrors.ErrWorkDeleteFailed, err)
	}

	logger.WithFields(logrus.Fields{
		"work_id":    id,
		"user_id":    userID,
		"object_key": removed.StorageKey,
	}).Info("work deleted, stored file kept")
	s.publish(ctx, events.Event{
		Type:       events.TypeWorkDeleted,
		WorkID:     id,
		UserID:     userID,
		FileURL:    removed.FileURL,
		StorageKey: removed.StorageKey,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// classifyMiss 条件写未命中：行不存在为404，否则为非所有者
func (s *workService) classifyMiss(ctx context.Context, id string, denied apperrors.ErrorCode) error {
	if _, err := s.findByID(ctx, id); err != nil {
		return err
	}
	return apperrors.Authorization(denied)
}

// publish 在有限时间内发布事件，失败不影响请求结果
func (s *workService) publish(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.WithFields(logrus.Fields{
			"type":    event.Type,
			"work_id": event.WorkID,
		}).Warnf("publish work event failed: %v", err)
	}
}
