package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/dsnworks/internal/middleware"
	"github.com/weiwangfds/dsnworks/internal/response"
	workservice "github.com/weiwangfds/dsnworks/internal/service/work"
)

// DashboardHandler 个人仪表盘处理器
type DashboardHandler struct {
	workService workservice.WorkService
}

// NewDashboardHandler 创建仪表盘处理器实例
func NewDashboardHandler(workService workservice.WorkService) *DashboardHandler {
	return &DashboardHandler{workService: workService}
}

// GetDashboard 汇总调用方的作品
// @Summary 个人仪表盘
// @Tags 仪表盘
// @Produce json
// @Success 200 {object} work.Dashboard
// @Failure 401,500 {object} response.ErrorBody
// @Router /dashboard [get]
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	dashboard, err := h.workService.Dashboard(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dashboard)
}

// GetOwnedWork 所有者查看任意状态的作品
// @Summary 查看自己的作品
// @Tags 仪表盘
// @Param id path string true "作品ID"
// @Success 200 {object} map[string]interface{} "{work}"
// @Failure 401,403,404 {object} response.ErrorBody
// @Router /dashboard/works/{id} [get]
func (h *DashboardHandler) GetOwnedWork(c *gin.Context) {
	work, err := h.workService.GetOwned(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"work": work})
}
