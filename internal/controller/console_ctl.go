package controller

import (
	"context"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"shopfront_console/internal/api/dto"
	"shopfront_console/internal/model"
	"shopfront_console/internal/realtime"
	"shopfront_console/internal/service"
	"shopfront_console/internal/state"
	"shopfront_console/pkg/logger"
)

const maxSoundBytes = 2 << 20

// BackgroundTasks 控制台对后台任务的手动入口
type BackgroundTasks interface {
	TriggerOrderSync(ctx context.Context) ([]model.Order, error)
	OrdersSnapshot() ([]model.Order, bool)
	Status() map[string]string
}

// ConsoleController 控制台设置、提醒与手动刷新
type ConsoleController struct {
	appState   *state.AppState
	dispatcher *service.NotificationDispatcher
	storage    *service.StorageService
	tasks      BackgroundTasks
	hub        *realtime.Hub
	activity   *logger.ActivityLog
}

type ConsoleControllerDeps struct {
	AppState   *state.AppState
	Dispatcher *service.NotificationDispatcher
	Storage    *service.StorageService
	Tasks      BackgroundTasks
	Hub        *realtime.Hub
	Activity   *logger.ActivityLog
}

func NewConsoleController(deps *ConsoleControllerDeps) *ConsoleController {
	return &ConsoleController{
		appState:   deps.AppState,
		dispatcher: deps.Dispatcher,
		storage:    deps.Storage,
		tasks:      deps.Tasks,
		hub:        deps.Hub,
		activity:   deps.Activity,
	}
}

// ==================== 提醒设置 ====================

func (c *ConsoleController) alertSettings() dto.AlertSettingsResponse {
	return dto.AlertSettingsResponse{
		SoundEnabled: c.appState.SoundEnabled(),
		SoundSource:  c.appState.SoundSource(),
		CustomSound:  c.appState.HasCustomSound(),
		Permission:   string(c.appState.Permission()),
	}
}

// GetAlertSettings GET /api/console/alerts
func (c *ConsoleController) GetAlertSettings(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"data": c.alertSettings()})
}

// UpdateAlertSettings 开关提示音
// PUT /api/console/alerts
func (c *ConsoleController) UpdateAlertSettings(ctx *gin.Context) {
	var req dto.UpdateAlertSettingsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	if err := c.appState.SetSoundEnabled(ctx.Request.Context(), *req.SoundEnabled); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": c.alertSettings()})
}

// UploadSound 上传自定义提示音，表单字段 file
// POST /api/console/alerts/sound
func (c *ConsoleController) UploadSound(ctx *gin.Context) {
	data, filename, err := readUpload(ctx, "file", maxSoundBytes)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "上传失败: " + err.Error()})
		return
	}
	if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "audio/") {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "不是音频文件: " + mt.String()})
		return
	}

	result := c.storage.UploadAsset(ctx.Request.Context(), data, filename)
	if err := c.appState.SetCustomSound(ctx.Request.Context(), result.URL); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": c.alertSettings(), "upload": result})
}

// ResetSound 恢复内置提示音
// DELETE /api/console/alerts/sound
func (c *ConsoleController) ResetSound(ctx *gin.Context) {
	if err := c.appState.SetCustomSound(ctx.Request.Context(), ""); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": c.alertSettings()})
}

// RequestPermission 运营对系统通知授权的显式结果
// POST /api/console/alerts/permission
func (c *ConsoleController) RequestPermission(ctx *gin.Context) {
	var req dto.PermissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	if _, err := c.dispatcher.RequestPermission(ctx.Request.Context(), service.Permission(req.Result)); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": c.alertSettings()})
}

// ==================== 订单刷新 ====================

// RefreshOrders 手动全量同步，新订单同样会触发提醒
// POST /api/console/orders/refresh
func (c *ConsoleController) RefreshOrders(ctx *gin.Context) {
	fresh, err := c.tasks.TriggerOrderSync(ctx.Request.Context())
	if err != nil {
		if errorStatus(err) == http.StatusInternalServerError {
			// 同步失败时标签页继续显示快照
			ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		respondError(ctx, err)
		return
	}

	orders, _ := c.tasks.OrdersSnapshot()
	if fresh == nil {
		fresh = []model.Order{}
	}
	ctx.JSON(http.StatusOK, gin.H{"data": dto.RefreshOrdersResponse{
		Total:    len(orders),
		NewCount: len(fresh),
		New:      fresh,
	}})
}

// OrdersSnapshot 当前已知订单列表，primed 为 false 表示尚未完成首次同步
// GET /api/console/orders/snapshot
func (c *ConsoleController) OrdersSnapshot(ctx *gin.Context) {
	orders, primed := c.tasks.OrdersSnapshot()
	ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"orders": orders, "primed": primed}})
}

// ==================== 状态与活动日志 ====================

// Status GET /api/console/status
func (c *ConsoleController) Status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"data": gin.H{
		"tasks":      c.tasks.Status(),
		"tabs":       c.hub.Count(),
		"session_id": c.appState.SessionID(),
	}})
}

// Activity 最近的运行日志
// GET /api/console/activity
func (c *ConsoleController) Activity(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"data": c.activity.Entries()})
}

// Reset 清空本地状态回到首次运行
// POST /api/console/reset
func (c *ConsoleController) Reset(ctx *gin.Context) {
	if err := c.appState.Reset(ctx.Request.Context()); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "本地状态已重置"})
}

// ==================== 通知点击 ====================

// NotificationClick 系统通知点击：聚焦已打开的标签页，否则跳转控制台首页
// GET /api/notifications/click
func (c *ConsoleController) NotificationClick(ctx *gin.Context) {
	action := c.hub.ResolveClick()
	if action.Action == "open" {
		ctx.Redirect(http.StatusFound, action.URL)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": action})
}
