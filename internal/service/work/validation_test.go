package work

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/dsnworks/config"
	apperrors "github.com/weiwangfds/dsnworks/internal/errors"
)

func testPolicy() FilePolicy {
	return FilePolicy{MaxSize: 10 * 1024 * 1024, AllowedTypes: config.DefaultAllowedTypes}
}

func TestFilePolicyCheck(t *testing.T) {
	policy := testPolicy()

	t.Run("declared type with parameters", func(t *testing.T) {
		f := pdfFile("a.pdf", 100)
		f.ContentType = "application/pdf; charset=binary"
		ct, err := policy.Check(f)
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", ct)
	})

	t.Run("office types accepted", func(t *testing.T) {
		for _, ct := range config.DefaultAllowedTypes {
			_, err := policy.Check(&FileInput{Name: "f", Size: 10, ContentType: ct, Content: bytes.NewReader(make([]byte, 10))})
			assert.NoError(t, err, ct)
		}
	})

	t.Run("sniffed content that is not a document", func(t *testing.T) {
		png := []byte("\x89PNG\r\n\x1a\n0000000000000000")
		_, err := policy.Check(&FileInput{Name: "img.pdf", Size: int64(len(png)), Content: bytes.NewReader(png)})
		requireAppError(t, err, apperrors.KindValidation, apperrors.ErrFileTypeNotAllowed)
	})

	t.Run("type is checked before size", func(t *testing.T) {
		_, err := policy.Check(&FileInput{Name: "x.exe", Size: 50 * 1024 * 1024, ContentType: "application/x-msdownload", Content: bytes.NewReader(nil)})
		requireAppError(t, err, apperrors.KindValidation, apperrors.ErrFileTypeNotAllowed)
	})

	t.Run("size message carries the configured limit", func(t *testing.T) {
		_, err := policy.Check(pdfFile("big.pdf", 10*1024*1024+1))
		requireAppError(t, err, apperrors.KindValidation, apperrors.ErrFileSizeTooLarge)
		appErr, _ := apperrors.GetAppError(err)
		assert.Equal(t, "Fichier trop volumineux. Taille maximum : 10 MiB", appErr.LocalizedMessage("fr"))
		assert.Equal(t, "File too large. Maximum size: 10 MiB", appErr.LocalizedMessage("en"))

		small := FilePolicy{MaxSize: 2 * 1024 * 1024, AllowedTypes: config.DefaultAllowedTypes}
		_, err = small.Check(pdfFile("mid.pdf", 3*1024*1024))
		appErr, _ = apperrors.GetAppError(err)
		assert.Equal(t, "File too large. Maximum size: 2.0 MiB", appErr.LocalizedMessage("en"))
	})

	t.Run("nil file", func(t *testing.T) {
		_, err := policy.Check(nil)
		requireAppError(t, err, apperrors.KindValidation, apperrors.ErrFileMissing)
	})
}

func TestSanitizePatch(t *testing.T) {
	updates, err := sanitizePatch(map[string]interface{}{
		"title":           "t",
		"file_size":       float64(2048),
		"downloads_count": float64(50),
		"created_at":      "2020-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"title": "t", "file_size": int64(2048)}, updates)

	updates, err = sanitizePatch(map[string]interface{}{"file_size": json.Number("12")})
	require.NoError(t, err)
	assert.Equal(t, int64(12), updates["file_size"])

	_, err = sanitizePatch(map[string]interface{}{"title": 42})
	requireAppError(t, err, apperrors.KindValidation, apperrors.ErrPatchInvalid)

	_, err = sanitizePatch(map[string]interface{}{"file_size": 1.5})
	requireAppError(t, err, apperrors.KindValidation, apperrors.ErrPatchInvalid)

	_, err = sanitizePatch(map[string]interface{}{"nope": "x"})
	requireAppError(t, err, apperrors.KindValidation, apperrors.ErrPatchInvalid)
}

func TestNormalizePage(t *testing.T) {
	page, limit := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 12, limit)

	page, limit = normalizePage(4, 500)
	assert.Equal(t, 4, page)
	assert.Equal(t, 100, limit)
}

func TestSearchPatternEscapes(t *testing.T) {
	assert.Equal(t, `%rgpd%`, searchPattern("RGPD"))
	assert.Equal(t, `%100\%\_x%`, searchPattern("100%_x"))
}
