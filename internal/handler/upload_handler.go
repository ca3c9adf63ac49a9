package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/dsnworks/internal/catalog"
	"github.com/weiwangfds/dsnworks/internal/middleware"
	"github.com/weiwangfds/dsnworks/internal/response"
	workservice "github.com/weiwangfds/dsnworks/internal/service/work"
)

// UploadHandler 独立上传和目录枚举
type UploadHandler struct {
	workService workservice.WorkService
	maxFileSize int64
}

// NewUploadHandler 创建上传处理器实例
func NewUploadHandler(workService workservice.WorkService, maxFileSize int64) *UploadHandler {
	return &UploadHandler{workService: workService, maxFileSize: maxFileSize}
}

// UploadFile 上传文档，返回存储地址
// @Summary 上传文档
// @Tags 上传
// @Accept multipart/form-data
// @Param file formData file true "文档"
// @Success 200 {object} work.UploadResult
// @Failure 400,401,500 {object} response.ErrorBody
// @Router /uploads [post]
func (h *UploadHandler) UploadFile(c *gin.Context) {
	file, closeFile, err := formFile(c, "file", h.maxFileSize)
	defer closeFile()
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.workService.Upload(c.Request.Context(), middleware.UserID(c), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListModules 课程模块目录
// @Router /catalog/modules [get]
func ListModules(c *gin.Context) {
	response.Success(c, gin.H{"modules": catalog.Modules()})
}

// ListTeachers 教师目录
// @Router /catalog/teachers [get]
func ListTeachers(c *gin.Context) {
	response.Success(c, gin.H{"teachers": catalog.Teachers()})
}
