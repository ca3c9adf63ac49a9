package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	qiniu "github.com/qiniu/go-sdk/v7/storage"
	"github.com/weiwangfds/dsnworks/config"
)

// QiniuKodoProvider 七牛云Kodo提供商实现
type QiniuKodoProvider struct {
	mac          *qbox.Mac
	bucketName   string
	bucketDomain string
	region       *qiniu.Region
	config       config.StorageConfig
}

// NewQiniuKodoProvider 创建七牛云Kodo提供商实例
func NewQiniuKodoProvider(cfg config.StorageConfig) (*QiniuKodoProvider, error) {
	// Kodo没有默认的公开域名，必须配置绑定域名
	domain := cfg.PublicBaseURL
	if domain == "" {
		domain = cfg.Endpoint
	}
	if domain == "" {
		return nil, fmt.Errorf("qiniu kodo requires storage.public_base_url or storage.endpoint")
	}

	mac := qbox.NewMac(cfg.AccessKey, cfg.SecretKey)

	region, err := qiniu.GetRegion(cfg.AccessKey, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get qiniu region: %w", err)
	}

	return &QiniuKodoProvider{
		mac:          mac,
		bucketName:   cfg.Bucket,
		bucketDomain: withScheme(domain, true),
		region:       region,
		config:       cfg,
	}, nil
}

// Upload 上传文件到七牛云Kodo
func (p *QiniuKodoProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*Object, error) {
	putPolicy := qiniu.PutPolicy{
		Scope: fmt.Sprintf("%s:%s", p.bucketName, key),
	}
	upToken := putPolicy.UploadToken(p.mac)

	formUploader := qiniu.NewFormUploader(p.storageConfig())
	ret := qiniu.PutRet{}
	putExtra := qiniu.PutExtra{MimeType: contentType}

	if err := formUploader.Put(ctx, &ret, upToken, key, reader, size, &putExtra); err != nil {
		return nil, fmt.Errorf("failed to upload file to qiniu kodo: %w", err)
	}

	return &Object{
		Key:         ret.Key,
		URL:         qiniu.MakePublicURL(p.bucketDomain, ret.Key),
		Size:        size,
		ContentType: contentType,
	}, nil
}

// DownloadURL 私有下载链接，attname参数指定附件文件名
func (p *QiniuKodoProvider) DownloadURL(_ context.Context, key, fileName string, expiry time.Duration) (string, error) {
	deadline := time.Now().Add(expiry).Unix()
	target := key
	if fileName != "" {
		target += "?attname=" + url.QueryEscape(fileName)
	}
	return qiniu.MakePrivateURL(p.mac, p.bucketDomain, target, deadline), nil
}

// TestConnection 测试连接
func (p *QiniuKodoProvider) TestConnection(_ context.Context) error {
	bucketManager := qiniu.NewBucketManager(p.mac, p.storageConfig())

	// 列出一个文件即可验证凭证和存储桶
	if _, _, _, _, err := bucketManager.ListFiles(p.bucketName, "", "", "", 1); err != nil {
		return fmt.Errorf("failed to test qiniu kodo connection: %w", err)
	}
	return nil
}

func (p *QiniuKodoProvider) storageConfig() *qiniu.Config {
	return &qiniu.Config{
		Region:   p.region,
		UseHTTPS: true,
	}
}
