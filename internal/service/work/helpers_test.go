package work

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/dsnworks/config"
	"github.com/weiwangfds/dsnworks/internal/database"
	apperrors "github.com/weiwangfds/dsnworks/internal/errors"
	"github.com/weiwangfds/dsnworks/internal/events"
	"github.com/weiwangfds/dsnworks/internal/service/storage"
	"gorm.io/gorm"
)

type uploadCall struct {
	Key         string
	Size        int64
	ContentType string
}

// fakeProvider 内存存储，记录调用
type fakeProvider struct {
	mu        sync.Mutex
	uploads   []uploadCall
	uploadErr error
}

func (p *fakeProvider) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) (*storage.Object, error) {
	if p.uploadErr != nil {
		return nil, p.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads = append(p.uploads, uploadCall{Key: key, Size: int64(len(data)), ContentType: contentType})
	return &storage.Object{
		Key:         key,
		URL:         "https://files.test/" + key,
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

func (p *fakeProvider) DownloadURL(_ context.Context, key, fileName string, _ time.Duration) (string, error) {
	return "https://files.test/" + key + "?download=" + url.QueryEscape(fileName), nil
}

func (p *fakeProvider) TestConnection(context.Context) error { return nil }

func (p *fakeProvider) uploadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.uploads)
}

// fakePublisher 记录发布的事件
type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) last() events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return events.Event{}
	}
	return p.events[len(p.events)-1]
}

// slowPublisher 一直等到ctx结束，模拟不可达的broker
type slowPublisher struct{}

func (slowPublisher) Publish(ctx context.Context, _ events.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func (slowPublisher) Close() error { return nil }

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       WorkService
	db        *gorm.DB
	provider  *fakeProvider
	publisher *fakePublisher
}

// setupTestDB 内存SQLite
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      ":memory:",
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T, atomic bool) *fixture {
	t.Helper()
	db := setupTestDB(t)
	cfg := config.Default()
	opts := OptionsFromConfig(cfg)
	opts.AtomicCounters = atomic

	f := &fixture{
		db:        db,
		provider:  &fakeProvider{},
		publisher: &fakePublisher{},
	}
	f.svc = NewWorkService(db, f.provider, f.publisher, opts)
	return f
}

// pdfFile 构造指定大小的PDF内容
func pdfFile(name string, size int) *FileInput {
	content := make([]byte, size)
	copy(content, []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"))
	return &FileInput{
		Name:        name,
		Size:        int64(size),
		ContentType: "application/pdf",
		Content:     bytes.NewReader(content),
	}
}

func validRequest() *CreateWorkRequest {
	return &CreateWorkRequest{
		Title:       "T",
		Description: "D",
		Author:      "A",
		Module:      "Droit du numérique",
		Teacher:     "Prof. Martin DUPONT",
		File:        pdfFile("memoire.pdf", 2*1024*1024),
	}
}

// seedWork 直接写入一行，未设置的字段取默认值
func seedWork(t *testing.T, db *gorm.DB, w database.Work) database.Work {
	t.Helper()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Title == "" {
		w.Title = "Titre"
	}
	if w.Description == "" {
		w.Description = "Description"
	}
	if w.Author == "" {
		w.Author = "Auteur"
	}
	if w.Module == "" {
		w.Module = "Droit du numérique"
	}
	if w.Teacher == "" {
		w.Teacher = "Prof. Martin DUPONT"
	}
	if w.FileURL == "" {
		w.FileURL = "https://files.test/dsn-works/" + w.ID + ".pdf"
		w.StorageKey = "dsn-works/" + w.ID + ".pdf"
	}
	if w.FileName == "" {
		w.FileName = "document.pdf"
	}
	if w.FileSize == 0 {
		w.FileSize = 1024
	}
	if w.UserID == "" {
		w.UserID = "owner"
	}
	if w.Status == "" {
		w.Status = database.StatusPublished
	}
	if w.UploadDate.IsZero() {
		w.UploadDate = time.Now().UTC()
	}
	require.NoError(t, db.Create(&w).Error)
	return w
}

func reload(t *testing.T, db *gorm.DB, id string) database.Work {
	t.Helper()
	var w database.Work
	require.NoError(t, db.Where("id = ?", id).Take(&w).Error)
	return w
}

func countWorks(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&database.Work{}).Count(&n).Error)
	return n
}

func requireAppError(t *testing.T, err error, kind apperrors.Kind, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, kind, appErr.Kind)
	require.Equal(t, code, appErr.Code)
}
