package work

import (
	"context"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	apperrors "github.com/weiwangfds/dsnworks/internal/errors"
	"github.com/weiwangfds/dsnworks/internal/logger"
	"github.com/weiwangfds/dsnworks/internal/metrics"
	"github.com/weiwangfds/dsnworks/internal/service/storage"
)

// UploadResult 独立上传结果
type UploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Size     int64  `json:"size"`
	Format   string `json:"format"`
	Filename string `json:"filename"`
}

// Upload 独立上传，沿用提交时的文件策略
func (s *workService) Upload(ctx context.Context, userID string, file *FileInput) (*UploadResult, error) {
	if userID == "" {
		return nil, apperrors.Authentication(nil)
	}
	contentType, err := s.opts.Policy.Check(file)
	if err != nil {
		return nil, err
	}

	key := storage.ObjectKey(s.opts.Folder, file.Name)
	obj, err := s.storage.Upload(ctx, key, file.Content, file.Size, contentType)
	if err != nil {
		metrics.UploadsFailed.Inc()
		return nil, apperrors.Collaborator(apperrors.ErrFileUploadFailed, err)
	}

	logger.WithFields(logrus.Fields{"user_id": userID, "object_key": obj.Key}).Info("file uploaded")
	return &UploadResult{
		URL:      obj.URL,
		PublicID: obj.Key,
		Size:     file.Size,
		Format:   strings.TrimPrefix(strings.ToLower(path.Ext(file.Name)), "."),
		Filename: file.Name,
	}, nil
}
