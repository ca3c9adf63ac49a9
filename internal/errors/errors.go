package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/weiwangfds/dsnworks/internal/i18n"
)

// Kind 错误类别，决定HTTP状态码
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindAuthorization
	KindValidation
	KindNotFound
	KindCollaborator
)

// ErrorCode 错误码类型
type ErrorCode int

const (
	// 通用错误码 (1000-1999)
	ErrInternalServer ErrorCode = 1000
	ErrInvalidParams  ErrorCode = 1001
	ErrUnauthorized   ErrorCode = 1002

	// 提交校验错误码 (2000-2999)
	ErrFieldsRequired     ErrorCode = 2000
	ErrFileMissing        ErrorCode = 2001
	ErrFileTypeNotAllowed ErrorCode = 2002
	ErrFileSizeTooLarge   ErrorCode = 2003
	ErrFileEmpty          ErrorCode = 2004
	ErrModuleInvalid      ErrorCode = 2005
	ErrTeacherInvalid     ErrorCode = 2006
	ErrPatchInvalid       ErrorCode = 2007

	// 存储错误码 (3000-3999)
	ErrFileUploadFailed  ErrorCode = 3000
	ErrDownloadURLFailed ErrorCode = 3001

	// 作品错误码 (4000-4999)
	ErrWorkNotFound       ErrorCode = 4000
	ErrWorkUpdateDenied   ErrorCode = 4001
	ErrWorkDeleteDenied   ErrorCode = 4002
	ErrWorkAccessDenied   ErrorCode = 4003
	ErrWorkCreateFailed   ErrorCode = 4004
	ErrWorkListFailed     ErrorCode = 4005
	ErrWorkUpdateFailed   ErrorCode = 4006
	ErrWorkDeleteFailed   ErrorCode = 4007
	ErrViewsIncFailed     ErrorCode = 4008
	ErrDownloadsIncFailed ErrorCode = 4009
	ErrDashboardFailed    ErrorCode = 4010
)

// AppError 应用错误结构体
type AppError struct {
	Code ErrorCode
	Kind Kind
	// Message 默认语言下的消息
	Message string
	// Details 详细错误信息，仅用于日志
	Details string
	// Params 填入消息占位符{0}、{1}...的参数
	Params        []string
	OriginalError error
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Is/As穿透到原始错误
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// HTTPStatus 返回错误类别对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// LocalizedMessage 返回指定语言的消息
func (e *AppError) LocalizedMessage(lang string) string {
	if key, ok := errorCodeToKeyMap[e.Code]; ok {
		return i18n.GetInstance().Translate(key, lang, e.Params...)
	}
	return e.Message
}

// WithParams 设置消息参数
func (e *AppError) WithParams(params ...string) *AppError {
	e.Params = params
	if key, ok := errorCodeToKeyMap[e.Code]; ok {
		inst := i18n.GetInstance()
		e.Message = inst.Translate(key, inst.GetDefaultLanguage(), params...)
	}
	return e
}

// WithDetails 添加详细错误信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func newError(kind Kind, code ErrorCode, err error) *AppError {
	appErr := &AppError{
		Code:          code,
		Kind:          kind,
		Message:       GetErrorMessage(code),
		OriginalError: err,
	}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// Authentication 未提供或无法验证身份
func Authentication(err error) *AppError {
	return newError(KindAuthentication, ErrUnauthorized, err)
}

// Authorization 身份存在但不是所有者
func Authorization(code ErrorCode) *AppError {
	return newError(KindAuthorization, code, nil)
}

// Validation 输入缺失或不合法
func Validation(code ErrorCode) *AppError {
	return newError(KindValidation, code, nil)
}

// NotFound 资源不存在或对调用方不可见
func NotFound(code ErrorCode) *AppError {
	return newError(KindNotFound, code, nil)
}

// Collaborator 存储或数据库调用失败
func Collaborator(code ErrorCode, err error) *AppError {
	return newError(KindCollaborator, code, err)
}

// GetAppError 从错误链中提取应用错误
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

var errorCodeToKeyMap = map[ErrorCode]string{
	ErrInternalServer: "internal_server_error",
	ErrInvalidParams:  "invalid_params",
	ErrUnauthorized:   "unauthorized",

	ErrFieldsRequired:     "fields_required",
	ErrFileMissing:        "file_missing",
	ErrFileTypeNotAllowed: "file_type_not_allowed",
	ErrFileSizeTooLarge:   "file_size_too_large",
	ErrFileEmpty:          "file_empty",
	ErrModuleInvalid:      "module_invalid",
	ErrTeacherInvalid:     "teacher_invalid",
	ErrPatchInvalid:       "work_patch_invalid",

	ErrFileUploadFailed:  "file_upload_failed",
	ErrDownloadURLFailed: "download_url_failed",

	ErrWorkNotFound:       "work_not_found",
	ErrWorkUpdateDenied:   "work_update_denied",
	ErrWorkDeleteDenied:   "work_delete_denied",
	ErrWorkAccessDenied:   "work_access_denied",
	ErrWorkCreateFailed:   "work_create_failed",
	ErrWorkListFailed:     "work_list_failed",
	ErrWorkUpdateFailed:   "work_update_failed",
	ErrWorkDeleteFailed:   "work_delete_failed",
	ErrViewsIncFailed:     "views_inc_failed",
	ErrDownloadsIncFailed: "downloads_inc_failed",
	ErrDashboardFailed:    "dashboard_failed",
}

// GetErrorMessage 根据错误码获取默认语言的错误消息
func GetErrorMessage(code ErrorCode) string {
	key, ok := errorCodeToKeyMap[code]
	if !ok {
		key = "unknown_error"
	}
	inst := i18n.GetInstance()
	return inst.Translate(key, inst.GetDefaultLanguage())
}
