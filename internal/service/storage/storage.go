// Package storage 作品文件存储
// 对象存储被当作不透明的协作方，只暴露上传、签发下载链接和连通性检查
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/weiwangfds/dsnworks/config"
)

// ErrUnsupportedProvider 未知的存储提供商
var ErrUnsupportedProvider = errors.New("unsupported storage provider")

// Provider 存储提供商接口
type Provider interface {
	// Upload 上传对象，size未知时传-1
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*Object, error)

	// DownloadURL 生成带附件文件名的限时下载链接
	DownloadURL(ctx context.Context, key, fileName string, expiry time.Duration) (string, error)

	// TestConnection 测试连接
	TestConnection(ctx context.Context) error
}

// Object 已上传对象
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// New 根据配置创建存储提供商实例
func New(cfg config.StorageConfig) (Provider, error) {
	switch cfg.Provider {
	case "minio", "s3":
		return NewMinioProvider(cfg)
	case "aliyun":
		return NewAliyunOSSProvider(cfg)
	case "tencent":
		return NewTencentCOSProvider(cfg)
	case "qiniu":
		return NewQiniuKodoProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// ObjectKey 在命名空间目录下生成唯一对象键，保留原扩展名
func ObjectKey(folder, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	name := uuid.NewString() + ext
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// attachmentDisposition 构造 Content-Disposition: attachment 头
func attachmentDisposition(fileName string) string {
	if fileName == "" {
		return "attachment"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": fileName})
}

// joinURL 拼接基础地址和对象键
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

func withScheme(host string, useSSL bool) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	if useSSL {
		return "https://" + host
	}
	return "http://" + host
}
