package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/dsnworks/config"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("/dsn-works/", "Mémoire Final.PDF")
	assert.True(t, strings.HasPrefix(key, "dsn-works/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.NotContains(t, key, "Mémoire")

	assert.NotEqual(t, ObjectKey("f", "a.pdf"), ObjectKey("f", "a.pdf"))
	assert.False(t, strings.Contains(ObjectKey("", "a.doc"), "/"))
}

func TestAttachmentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename=report.pdf`, attachmentDisposition("report.pdf"))
	assert.Equal(t, `attachment; filename="my report.pdf"`, attachmentDisposition("my report.pdf"))
	assert.Contains(t, attachmentDisposition("mémoire.pdf"), "filename*=utf-8''m%C3%A9moire.pdf")
	assert.Equal(t, "attachment", attachmentDisposition(""))
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://cdn.test/dsn-works/a.pdf", joinURL("https://cdn.test/", "/dsn-works/a.pdf"))
	assert.Equal(t, "http://localhost:9000", withScheme("localhost:9000", false))
	assert.Equal(t, "https://oss.test", withScheme("oss.test", true))
	assert.Equal(t, "http://keep.test", withScheme("http://keep.test", true))
}

func TestNewProvider(t *testing.T) {
	_, err := New(config.StorageConfig{Provider: "ftp"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedProvider))

	p, err := New(config.StorageConfig{
		Provider:  "minio",
		Endpoint:  "localhost:9000",
		Bucket:    "dsn-works",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)
	m, ok := p.(*MinioProvider)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:9000/dsn-works/dsn-works/a.pdf", m.publicURL("dsn-works/a.pdf"))

	tc, err := New(config.StorageConfig{Provider: "tencent", Bucket: "works-1250000000", Region: "ap-guangzhou"})
	require.NoError(t, err)
	assert.Equal(t, "https://works-1250000000.cos.ap-guangzhou.myqcloud.com/dsn-works/a.pdf",
		tc.(*TencentCOSProvider).publicURL("dsn-works/a.pdf"))

	_, err = NewQiniuKodoProvider(config.StorageConfig{Provider: "qiniu"})
	assert.Error(t, err)
}
