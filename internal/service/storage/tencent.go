package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"
	"github.com/weiwangfds/dsnworks/config"
)

// TencentCOSProvider 腾讯云COS提供商实现
type TencentCOSProvider struct {
	client *cos.Client
	config config.StorageConfig
}

// NewTencentCOSProvider 创建腾讯云COS提供商实例
func NewTencentCOSProvider(cfg config.StorageConfig) (*TencentCOSProvider, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		bucketURL = withScheme(cfg.Endpoint, true)
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		},
	})

	return &TencentCOSProvider{
		client: client,
		config: cfg,
	}, nil
}

// Upload 上传文件到腾讯云COS
func (p *TencentCOSProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*Object, error) {
	header := &cos.ObjectPutHeaderOptions{ContentType: contentType}
	if size > 0 {
		header.ContentLength = size
	}

	if _, err := p.client.Object.Put(ctx, key, reader, &cos.ObjectPutOptions{ObjectPutHeaderOptions: header}); err != nil {
		return nil, fmt.Errorf("failed to upload file to tencent cos: %w", err)
	}

	return &Object{
		Key:         key,
		URL:         p.publicURL(key),
		Size:        size,
		ContentType: contentType,
	}, nil
}

// DownloadURL 预签名下载链接
func (p *TencentCOSProvider) DownloadURL(ctx context.Context, key, fileName string, expiry time.Duration) (string, error) {
	query := url.Values{}
	query.Set("response-content-disposition", attachmentDisposition(fileName))

	u, err := p.client.Object.GetPresignedURL(ctx, http.MethodGet, key,
		p.config.AccessKey, p.config.SecretKey, expiry,
		&cos.PresignedURLOptions{Query: &query})
	if err != nil {
		return "", fmt.Errorf("failed to presign tencent cos url: %w", err)
	}
	return u.String(), nil
}

// TestConnection 测试连接
func (p *TencentCOSProvider) TestConnection(ctx context.Context) error {
	if _, err := p.client.Bucket.Head(ctx); err != nil {
		return fmt.Errorf("failed to test tencent cos connection: %w", err)
	}
	return nil
}

func (p *TencentCOSProvider) publicURL(key string) string {
	if p.config.PublicBaseURL != "" {
		return joinURL(p.config.PublicBaseURL, key)
	}
	return p.client.Object.GetObjectURL(key).String()
}
