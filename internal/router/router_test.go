package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/dsnworks/config"
	"github.com/weiwangfds/dsnworks/internal/database"
	"github.com/weiwangfds/dsnworks/internal/events"
	"github.com/weiwangfds/dsnworks/internal/middleware"
	"github.com/weiwangfds/dsnworks/internal/service/storage"
	workservice "github.com/weiwangfds/dsnworks/internal/service/work"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryProvider struct {
	mu      sync.Mutex
	objects map[string]int
}

func (p *memoryProvider) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) (*storage.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.objects[key] = len(data)
	p.mu.Unlock()
	return &storage.Object{Key: key, URL: "https://files.test/" + key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (p *memoryProvider) DownloadURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://files.test/" + key + "?signed=1", nil
}

func (p *memoryProvider) TestConnection(context.Context) error { return nil }

func (p *memoryProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects)
}

type testServer struct {
	engine   *gin.Engine
	db       *gorm.DB
	provider *memoryProvider
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Database.DSN = ":memory:"
	cfg.Database.LogLevel = "silent"
	cfg.Auth.JWTSecret = testSecret

	db, err := database.Init(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	verifier, err := middleware.NewTokenVerifier(cfg.Auth)
	require.NoError(t, err)

	provider := &memoryProvider{objects: map[string]int{}}
	svc := workservice.NewWorkService(db, provider, events.NoopPublisher{}, workservice.OptionsFromConfig(cfg))

	return &testServer{
		engine:   NewRouter(cfg, db, svc, verifier).GetEngine(),
		db:       db,
		provider: provider,
	}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, req *http.Request, userID string) *httptest.ResponseRecorder {
	t.Helper()
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// submission 构造multipart提交请求，fields为nil的值不写入
func submission(t *testing.T, fields map[string]string, fileSize int) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileSize > 0 {
		part, err := mw.CreateFormFile("file", "memoire.pdf")
		require.NoError(t, err)
		content := make([]byte, fileSize)
		copy(content, "%PDF-1.4\n")
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/works", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"title":       "T",
		"description": "D",
		"author":      "A",
		"module":      "Droit du numérique",
		"teacher":     "Prof. Martin DUPONT",
		"status":      "published",
	}
}

type workBody struct {
	Work database.Work `json:"work"`
}

type pageBody struct {
	Works      []database.Work `json:"works"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	TotalPages int             `json:"totalPages"`
}

func TestSubmitThenPublishScenario(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, submission(t, validFields(), 2*1024*1024), "student-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created struct {
		Success bool          `json:"success"`
		Work    database.Work `json:"work"`
	}
	decode(t, w, &created)
	assert.True(t, created.Success)
	assert.Equal(t, database.StatusUnderReview, created.Work.Status)
	assert.Equal(t, 1, s.provider.count())

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/works", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var page pageBody
	decode(t, w, &page)
	assert.Empty(t, page.Works)
	assert.Equal(t, int64(0), page.Total)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/works/"+created.Work.ID, nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 审核通过在系统之外完成
	require.NoError(t, s.db.Model(&database.Work{}).
		Where("id = ?", created.Work.ID).
		Update("status", database.StatusPublished).Error)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/works?page=1", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	require.Len(t, page.Works, 1)
	assert.Equal(t, created.Work.ID, page.Works[0].ID)
	assert.Equal(t, 1, page.TotalPages)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/works/"+created.Work.ID, nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail workBody
	decode(t, w, &detail)
	assert.Equal(t, "T", detail.Work.Title)

	for i := 0; i < 3; i++ {
		w = s.do(t, httptest.NewRequest(http.MethodPost, "/works/"+created.Work.ID+"/view", nil), "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
	}

	w = s.do(t, httptest.NewRequest(http.MethodPost, "/works/"+created.Work.ID+"/download", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var dl struct {
		Success  bool   `json:"success"`
		URL      string `json:"url"`
		FileName string `json:"file_name"`
	}
	decode(t, w, &dl)
	assert.True(t, dl.Success)
	assert.Equal(t, "memoire.pdf", dl.FileName)
	assert.Contains(t, dl.URL, "signed=1")

	var stored database.Work
	require.NoError(t, s.db.Where("id = ?", created.Work.ID).Take(&stored).Error)
	assert.Equal(t, int64(3), stored.ViewsCount)
	assert.Equal(t, int64(1), stored.DownloadsCount)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/dashboard", nil), "student-1")
	require.Equal(t, http.StatusOK, w.Code)
	var dash struct {
		Stats struct {
			DepositsCount  int        `json:"depositsCount"`
			ViewsCount     int64      `json:"viewsCount"`
			DownloadsCount int64      `json:"downloadsCount"`
			LastActivity   *time.Time `json:"lastActivity"`
		} `json:"stats"`
		RecentWorks []database.Work `json:"recentWorks"`
		AllWorks    []database.Work `json:"allWorks"`
	}
	decode(t, w, &dash)
	assert.Equal(t, 1, dash.Stats.DepositsCount)
	assert.Equal(t, int64(3), dash.Stats.ViewsCount)
	assert.Equal(t, int64(1), dash.Stats.DownloadsCount)
	assert.NotNil(t, dash.Stats.LastActivity)
	assert.Len(t, dash.RecentWorks, 1)
}

func TestSubmitRequiresIdentity(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, submission(t, validFields(), 1024), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Non authentifié"}`, w.Body.String())

	req := submission(t, validFields(), 1024)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, s.provider.count())
}

func TestSubmitMissingFieldIsRejectedBeforeUpload(t *testing.T) {
	s := setupServer(t)

	fields := validFields()
	delete(fields, "author")
	w := s.do(t, submission(t, fields, 1024), "student-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Tous les champs sont requis"}`, w.Body.String())

	w = s.do(t, submission(t, validFields(), 0), "student-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 0, s.provider.count())
}

func TestOversizedBodyRejectedBeforeParsing(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, submission(t, validFields(), 12*1024*1024), "student-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Fichier trop volumineux. Taille maximum : 10 MiB"}`, w.Body.String())

	// 未声明长度的请求体在读取时被截断
	req := submission(t, validFields(), 12*1024*1024)
	req.ContentLength = -1
	w = s.do(t, req, "student-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 0, s.provider.count())
	var n int64
	require.NoError(t, s.db.Model(&database.Work{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestOwnershipOnUpdateAndDelete(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, submission(t, validFields(), 1024), "alice")
	require.Equal(t, http.StatusOK, w.Code)
	var created workBody
	decode(t, w, &created)
	id := created.Work.ID

	put := func(user, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/works/"+id, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return s.do(t, req, user)
	}

	w = put("bob", `{"title":"Piraté"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Non autorisé à modifier ce travail"}`, w.Body.String())

	w = s.do(t, httptest.NewRequest(http.MethodDelete, "/works/"+id, nil), "bob")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = put("", `{"title":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = put("alice", `{"title":"Version 2","status":"published"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated workBody
	decode(t, w, &updated)
	assert.Equal(t, "Version 2", updated.Work.Title)
	assert.Equal(t, database.StatusUnderReview, updated.Work.Status)

	w = put("alice", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/dashboard/works/"+id, nil), "bob")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, httptest.NewRequest(http.MethodGet, "/dashboard/works/"+id, nil), "alice")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodDelete, "/works/"+id, nil), "alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, 1, s.provider.count(), "stored file is not removed")

	w = s.do(t, httptest.NewRequest(http.MethodDelete, "/works/"+id, nil), "alice")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboardForNewUser(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/dashboard", nil), "newcomer")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"stats": {"depositsCount":0,"viewsCount":0,"downloadsCount":0,"lastActivity":null},
		"recentWorks": [],
		"allWorks": []
	}`, w.Body.String())

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/dashboard", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestErrorLanguage(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/works/unknown", nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Travail non trouvé"}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/works/unknown", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	w = s.do(t, req, "")
	assert.JSONEq(t, `{"error":"Work not found"}`, w.Body.String())
}

func TestCatalogAndHealth(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/catalog/modules", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var modules struct {
		Modules []string `json:"modules"`
	}
	decode(t, w, &modules)
	assert.Len(t, modules.Modules, 12)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/catalog/teachers", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Prof. Isabelle ROUX")

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.TraceIDKey))

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStandaloneUpload(t *testing.T) {
	s := setupServer(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "slides.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.7\nslides"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := s.do(t, req, "alice")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result workservice.UploadResult
	decode(t, w, &result)
	assert.Equal(t, "pdf", result.Format)
	assert.Equal(t, "slides.pdf", result.Filename)
	assert.True(t, strings.HasPrefix(result.PublicID, "dsn-works/"))
}
