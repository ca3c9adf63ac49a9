package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/weiwangfds/dsnworks/config"
)

// AliyunOSSProvider 阿里云OSS提供商实现
type AliyunOSSProvider struct {
	client *oss.Client
	bucket *oss.Bucket
	config config.StorageConfig
}

// NewAliyunOSSProvider 创建阿里云OSS提供商实例
func NewAliyunOSSProvider(cfg config.StorageConfig) (*AliyunOSSProvider, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", cfg.Region)
	}

	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}

	return &AliyunOSSProvider{
		client: client,
		bucket: bucket,
		config: cfg,
	}, nil
}

// Upload 上传文件到阿里云OSS
func (p *AliyunOSSProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*Object, error) {
	options := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}

	if err := p.bucket.PutObject(key, reader, options...); err != nil {
		return nil, fmt.Errorf("failed to upload file to aliyun oss: %w", err)
	}

	return &Object{
		Key:         key,
		URL:         p.publicURL(key),
		Size:        size,
		ContentType: contentType,
	}, nil
}

// DownloadURL 签名下载链接
func (p *AliyunOSSProvider) DownloadURL(_ context.Context, key, fileName string, expiry time.Duration) (string, error) {
	signed, err := p.bucket.SignURL(key, oss.HTTPGet, int64(expiry/time.Second),
		oss.ResponseContentDisposition(attachmentDisposition(fileName)))
	if err != nil {
		return "", fmt.Errorf("failed to sign aliyun oss url: %w", err)
	}
	return signed, nil
}

// TestConnection 测试连接
func (p *AliyunOSSProvider) TestConnection(_ context.Context) error {
	if _, err := p.client.GetBucketInfo(p.config.Bucket); err != nil {
		return fmt.Errorf("failed to test aliyun oss connection: %w", err)
	}
	return nil
}

func (p *AliyunOSSProvider) publicURL(key string) string {
	if p.config.PublicBaseURL != "" {
		return joinURL(p.config.PublicBaseURL, key)
	}
	host := p.client.Config.Endpoint
	if u, err := url.Parse(withScheme(host, true)); err == nil {
		host = u.Host
	}
	return joinURL(fmt.Sprintf("https://%s.%s", p.config.Bucket, host), key)
}
