package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/weiwangfds/dsnworks/config"
	"github.com/weiwangfds/dsnworks/internal/logger"
)

// MinioProvider S3兼容存储实现，适用于MinIO及各类S3网关
type MinioProvider struct {
	client *minio.Client
	config config.StorageConfig
}

// NewMinioProvider 创建MinIO提供商实例
func NewMinioProvider(cfg config.StorageConfig) (*MinioProvider, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioProvider{client: client, config: cfg}, nil
}

// Upload 上传文件到MinIO
func (p *MinioProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*Object, error) {
	info, err := p.client.PutObject(ctx, p.config.Bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file to minio: %w", err)
	}

	return &Object{
		Key:         key,
		URL:         p.publicURL(key),
		Size:        info.Size,
		ContentType: contentType,
	}, nil
}

// DownloadURL 预签名GET链接，响应头强制为附件下载
func (p *MinioProvider) DownloadURL(ctx context.Context, key, fileName string, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", attachmentDisposition(fileName))

	u, err := p.client.PresignedGetObject(ctx, p.config.Bucket, key, expiry, params)
	if err != nil {
		return "", fmt.Errorf("failed to presign minio url: %w", err)
	}
	return u.String(), nil
}

// TestConnection 检查存储桶，不存在时创建
func (p *MinioProvider) TestConnection(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.config.Bucket)
	if err != nil {
		return fmt.Errorf("failed to test minio connection: %w", err)
	}
	if exists {
		return nil
	}

	if err := p.client.MakeBucket(ctx, p.config.Bucket, minio.MakeBucketOptions{Region: p.config.Region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", p.config.Bucket, err)
	}
	logger.Infof("created bucket: %s", p.config.Bucket)
	return nil
}

func (p *MinioProvider) publicURL(key string) string {
	if p.config.PublicBaseURL != "" {
		return joinURL(p.config.PublicBaseURL, key)
	}
	return joinURL(p.client.EndpointURL().String(), p.config.Bucket+"/"+key)
}
