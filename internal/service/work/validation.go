package work

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/weiwangfds/dsnworks/internal/catalog"
	apperrors "github.com/weiwangfds/dsnworks/internal/errors"
)

// FileInput 上传的文件
type FileInput struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.ReadSeeker
}

// FilePolicy 文件类型和大小策略
type FilePolicy struct {
	MaxSize      int64
	AllowedTypes []string
}

// Check 校验文件并返回最终采用的MIME类型
// 先判断类型再判断大小，声明类型缺失或为octet-stream时按内容嗅探
func (p FilePolicy) Check(f *FileInput) (string, error) {
	if f == nil || f.Content == nil {
		return "", apperrors.Validation(apperrors.ErrFileMissing)
	}
	if f.Size <= 0 {
		return "", apperrors.Validation(apperrors.ErrFileEmpty)
	}

	contentType, err := p.resolveType(f)
	if err != nil {
		return "", err
	}
	if !p.allowed(contentType) {
		return "", apperrors.Validation(apperrors.ErrFileTypeNotAllowed).
			WithDetails(fmt.Sprintf("content type %s", contentType))
	}

	if p.MaxSize > 0 && f.Size > p.MaxSize {
		return "", FileTooLarge(p.MaxSize).
			WithDetails(fmt.Sprintf("size %d exceeds %d", f.Size, p.MaxSize))
	}
	return contentType, nil
}

// FileTooLarge 超出大小上限的校验错误，消息中带上配置的上限
func FileTooLarge(maxSize int64) *apperrors.AppError {
	return apperrors.Validation(apperrors.ErrFileSizeTooLarge).
		WithParams(humanize.IBytes(uint64(maxSize)))
}

func (p FilePolicy) resolveType(f *FileInput) (string, error) {
	declared := ""
	if f.ContentType != "" {
		if mt, _, err := mime.ParseMediaType(f.ContentType); err == nil {
			declared = strings.ToLower(mt)
		}
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	detected, err := mimetype.DetectReader(f.Content)
	if _, seekErr := f.Content.Seek(0, io.SeekStart); seekErr != nil {
		return "", apperrors.Validation(apperrors.ErrFileMissing).WithDetails(seekErr.Error())
	}
	if err != nil {
		return "", apperrors.Validation(apperrors.ErrFileTypeNotAllowed).WithDetails(err.Error())
	}

	// 嗅探结果可能是别名，比如旧版Office文件被识别为通用OLE容器
	for _, allowed := range p.AllowedTypes {
		if detected.Is(allowed) {
			return allowed, nil
		}
	}
	mt, _, _ := mime.ParseMediaType(detected.String())
	return mt, nil
}

func (p FilePolicy) allowed(contentType string) bool {
	for _, t := range p.AllowedTypes {
		if strings.EqualFold(t, contentType) {
			return true
		}
	}
	return false
}

// newValidator 注册目录校验标签
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("module", func(fl validator.FieldLevel) bool {
		return catalog.IsModule(fl.Field().String())
	})
	_ = v.RegisterValidation("teacher", func(fl validator.FieldLevel) bool {
		return catalog.IsTeacher(fl.Field().String())
	})
	return v
}

// translateValidation 把validator错误映射为应用错误
// 任一必填项缺失时统一返回"所有字段必填"，其次才是目录校验
func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation(apperrors.ErrInvalidParams).WithDetails(err.Error())
	}

	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return apperrors.Validation(apperrors.ErrFieldsRequired).
				WithDetails(fmt.Sprintf("missing %s", strings.ToLower(fe.Field())))
		}
	}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "module":
			return apperrors.Validation(apperrors.ErrModuleInvalid).WithDetails(fmt.Sprint(fe.Value()))
		case "teacher":
			return apperrors.Validation(apperrors.ErrTeacherInvalid).WithDetails(fmt.Sprint(fe.Value()))
		}
	}
	return apperrors.Validation(apperrors.ErrInvalidParams).WithDetails(verrs.Error())
}
