package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/dsnworks/internal/errors"
	"github.com/weiwangfds/dsnworks/internal/middleware"
	"github.com/weiwangfds/dsnworks/internal/response"
	workservice "github.com/weiwangfds/dsnworks/internal/service/work"
)

// multipartOverhead 表单字段和分隔符的余量
const multipartOverhead = 1 << 20

// WorkHandler 作品处理器
type WorkHandler struct {
	workService workservice.WorkService
	maxFileSize int64
}

// NewWorkHandler 创建作品处理器实例，maxFileSize用于限制请求体
func NewWorkHandler(workService workservice.WorkService, maxFileSize int64) *WorkHandler {
	return &WorkHandler{
		workService: workService,
		maxFileSize: maxFileSize,
	}
}

// CreateWork 提交作品
// @Summary 提交作品
// @Tags 作品
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "标题"
// @Param description formData string true "描述"
// @Param author formData string true "作者"
// @Param module formData string true "课程模块"
// @Param teacher formData string true "教师"
// @Param file formData file true "文档"
// @Success 200 {object} map[string]interface{} "{success, work}"
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Failure 500 {object} response.ErrorBody
// @Router /works [post]
func (h *WorkHandler) CreateWork(c *gin.Context) {
	file, closeFile, err := formFile(c, "file", h.maxFileSize)
	defer closeFile()
	if err != nil {
		response.Error(c, err)
		return
	}

	work, err := h.workService.Create(c.Request.Context(), middleware.UserID(c), &workservice.CreateWorkRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Author:      c.PostForm("author"),
		Module:      c.PostForm("module"),
		Teacher:     c.PostForm("teacher"),
		File:        file,
		Status:      c.PostForm("status"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"success": true, "work": work})
}

// ListWorks 公开目录
// @Summary 已发布作品列表
// @Tags 作品
// @Produce json
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(12)
// @Param module query string false "课程模块"
// @Param teacher query string false "教师"
// @Param search query string false "标题/描述/作者关键词"
// @Success 200 {object} response.PageData
// @Router /works [get]
func (h *WorkHandler) ListWorks(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.workService.List(c.Request.Context(), workservice.ListQuery{
		Page:    page,
		Limit:   limit,
		Module:  c.Query("module"),
		Teacher: c.Query("teacher"),
		Search:  c.Query("search"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPage(c, result.Works, result.Total, result.Page, result.TotalPages)
}

// GetWork 公开详情
// @Summary 已发布作品详情
// @Tags 作品
// @Param id path string true "作品ID"
// @Success 200 {object} map[string]interface{} "{work}"
// @Failure 404 {object} response.ErrorBody
// @Router /works/{id} [get]
func (h *WorkHandler) GetWork(c *gin.Context) {
	work, err := h.workService.GetPublished(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"work": work})
}

// UpdateWork 所有者更新
// @Summary 更新作品
// @Tags 作品
// @Accept json
// @Param id path string true "作品ID"
// @Success 200 {object} map[string]interface{} "{work}"
// @Failure 401,403,404,500 {object} response.ErrorBody
// @Router /works/{id} [put]
func (h *WorkHandler) UpdateWork(c *gin.Context) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, apperrors.Validation(apperrors.ErrInvalidParams).WithDetails(err.Error()))
		return
	}

	work, err := h.workService.Update(c.Request.Context(), c.Param("id"), middleware.UserID(c), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"work": work})
}

// DeleteWork 所有者删除
// @Summary 删除作品
// @Tags 作品
// @Param id path string true "作品ID"
// @Success 200 {object} map[string]interface{} "{success: true}"
// @Failure 401,403,404,500 {object} response.ErrorBody
// @Router /works/{id} [delete]
func (h *WorkHandler) DeleteWork(c *gin.Context) {
	if err := h.workService.Delete(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"success": true})
}

// IncrementView 浏览数加一
// @Summary 记录一次浏览
// @Tags 作品
// @Param id path string true "作品ID"
// @Success 200 {object} map[string]interface{} "{success: true}"
// @Failure 500 {object} response.ErrorBody
// @Router /works/{id}/view [post]
func (h *WorkHandler) IncrementView(c *gin.Context) {
	if err := h.workService.IncrementViews(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"success": true})
}

// DownloadWork 下载意图
// @Summary 获取下载链接并记录下载
// @Tags 作品
// @Param id path string true "作品ID"
// @Success 200 {object} map[string]interface{} "{success, url, file_name}"
// @Failure 404,500 {object} response.ErrorBody
// @Router /works/{id}/download [post]
func (h *WorkHandler) DownloadWork(c *gin.Context) {
	link, err := h.workService.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"success":   true,
		"url":       link.URL,
		"file_name": link.FileName,
	})
}

// formFile 读取表单文件，缺失时返回nil交给服务层统一校验
// 请求体超过上限时在解析表单之前拒绝，大文件不会落盘
func formFile(c *gin.Context, field string, maxFileSize int64) (*workservice.FileInput, func(), error) {
	noop := func() {}
	if maxFileSize > 0 {
		limit := maxFileSize + multipartOverhead
		if c.Request.ContentLength > limit {
			return nil, noop, workservice.FileTooLarge(maxFileSize)
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, noop, workservice.FileTooLarge(maxFileSize)
		}
		return nil, noop, nil
	}
	src, err := header.Open()
	if err != nil {
		return nil, noop, nil
	}
	return fileInput(header, src), func() { _ = src.Close() }, nil
}

func fileInput(header *multipart.FileHeader, src multipart.File) *workservice.FileInput {
	return &workservice.FileInput{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Content:     src,
	}
}
