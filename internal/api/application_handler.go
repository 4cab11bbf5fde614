package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rev2018/placement-tracker/internal/application"
	"github.com/rev2018/placement-tracker/internal/dashboard"
	"github.com/rev2018/placement-tracker/internal/errcode"
	"github.com/rev2018/placement-tracker/internal/export"
	"github.com/rev2018/placement-tracker/internal/metrics"
)

// ApplicationHandler 处理求职记录的增删改查、首页查询与导出。
type ApplicationHandler struct {
	repo      *application.Repository
	dashboard *dashboard.Engine
	exporter  *export.Exporter
}

// NewApplicationHandler 构造 ApplicationHandler。
func NewApplicationHandler(repo *application.Repository, engine *dashboard.Engine, exporter *export.Exporter) *ApplicationHandler {
	return &ApplicationHandler{repo: repo, dashboard: engine, exporter: exporter}
}

// Dashboard 返回过滤后的列表与全量状态汇总。
func (h *ApplicationHandler) Dashboard(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	filter := application.NewFilter(c.Query("search"), c.Query("status"))
	view, err := h.dashboard.Dashboard(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Create 新建求职记录。
func (h *ApplicationHandler) Create(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var fields application.Fields
	if err := c.ShouldBind(&fields); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	id, err := h.repo.Create(ctx, userID, fields)
	if err != nil {
		observe("create", err)
		respondError(c, err, fields)
		return
	}
	observe("create", nil)

	created, err := h.repo.Get(ctx, userID, id)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Get 读取单条记录。
func (h *ApplicationHandler) Get(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, err := applicationIDParam(c)
	if err != nil {
		NotFound(c, "application not found")
		return
	}

	item, err := h.repo.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Update 覆盖记录的全部可编辑字段。
func (h *ApplicationHandler) Update(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, err := applicationIDParam(c)
	if err != nil {
		NotFound(c, "application not found")
		return
	}

	var fields application.Fields
	if err := c.ShouldBind(&fields); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	if err := h.repo.Update(ctx, userID, id, fields); err != nil {
		observe("update", err)
		respondError(c, err, fields)
		return
	}
	observe("update", nil)

	updated, err := h.repo.Get(ctx, userID, id)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete 删除记录；记录不存在或不属于当前用户时同样返回 204。
func (h *ApplicationHandler) Delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, err := applicationIDParam(c)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.repo.Delete(c.Request.Context(), userID, id); err != nil {
		observe("delete", err)
		respondError(c, err, nil)
		return
	}
	observe("delete", nil)
	c.Status(http.StatusNoContent)
}

// Export 以附件形式下载当前用户全部记录的 CSV。
func (h *ApplicationHandler) Export(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	body, err := h.exporter.Export(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	c.Data(http.StatusOK, export.ContentType, body)
}

// Statuses 按流程顺序返回全部状态。
func (h *ApplicationHandler) Statuses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"statuses": application.Statuses(),
		"default":  application.DefaultStatus,
	})
}

func observe(operation string, err error) {
	outcome := "ok"
	var verr *errcode.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, application.ErrNotFound):
		outcome = "not_found"
	case errors.As(err, &verr):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	metrics.ObserveApplicationOperation(operation, outcome)
}
