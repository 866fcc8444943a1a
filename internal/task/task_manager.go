package task

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"shopfront_console/internal/model"
	"shopfront_console/internal/service"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 后台上下文：订单订阅、全量同步与系统通知
// 同时实现 realtime.BackgroundControl，供标签页调用
type TaskManager struct {
	feedTask   *OrderFeedTask
	syncTask   *OrderSyncTask
	tracker    *service.OrderTracker
	dispatcher *service.NotificationDispatcher
	log        *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	FeedTask   *OrderFeedTask
	SyncTask   *OrderSyncTask
	Tracker    *service.OrderTracker
	Dispatcher *service.NotificationDispatcher
	Log        *zap.Logger
}

// NewTaskManager 创建任务管理器；FeedTask/SyncTask 为 nil 表示该任务已关闭
func NewTaskManager(deps *TaskManagerDeps) *TaskManager {
	return &TaskManager{
		feedTask:   deps.FeedTask,
		syncTask:   deps.SyncTask,
		tracker:    deps.Tracker,
		dispatcher: deps.Dispatcher,
		log:        deps.Log.Named("task_manager"),
	}
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start(ctx context.Context) error {
	tm.log.Info("正在启动后台任务...")

	ctx, tm.cancel = context.WithCancel(ctx)

	if tm.feedTask != nil {
		tm.wg.Add(1)
		go func() {
			defer tm.wg.Done()
			tm.feedTask.Run(ctx)
		}()
		tm.feedTask.Start()
	}
	if tm.syncTask != nil {
		if err := tm.syncTask.Start(); err != nil {
			tm.cancel()
			return err
		}
		tm.syncTask.RequestSync()
	}

	tm.log.Info("后台任务已全部启动")
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	tm.log.Info("正在停止后台任务...")

	if tm.syncTask != nil {
		tm.syncTask.Stop()
	}
	if tm.cancel != nil {
		tm.cancel()
	}
	tm.wg.Wait()

	tm.log.Info("后台任务已全部停止")
}

// ==================== realtime.BackgroundControl ====================

// StartBackgroundSync 标签页要求重建订阅
func (tm *TaskManager) StartBackgroundSync() {
	if tm.feedTask != nil {
		tm.feedTask.Start()
		return
	}
	// 没有订阅时退回全量同步
	tm.RequestSync()
}

func (tm *TaskManager) RequestSync() {
	if tm.syncTask != nil {
		tm.syncTask.RequestSync()
	}
}

func (tm *TaskManager) OrdersSnapshot() ([]model.Order, bool) {
	return tm.tracker.Orders(), tm.tracker.Primed()
}

func (tm *TaskManager) TriggerNotification(ctx context.Context, n service.Notification) error {
	return tm.dispatcher.TriggerNotification(ctx, n)
}

func (tm *TaskManager) DetectCapability(ctx context.Context, supported bool) {
	tm.dispatcher.DetectCapability(ctx, supported)
}

// ==================== 手动触发接口 ====================

// TriggerOrderSync 运营手动刷新，同步执行并返回新订单
func (tm *TaskManager) TriggerOrderSync(ctx context.Context) ([]model.Order, error) {
	if tm.syncTask == nil {
		return nil, ErrTaskDisabled
	}
	return tm.syncTask.SyncNow(ctx)
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]string {
	status := map[string]string{
		"feed": "disabled",
		"sync": "disabled",
	}
	if tm.feedTask != nil {
		status["feed"] = string(tm.feedTask.Status())
	}
	if tm.syncTask != nil {
		status["sync"] = "enabled"
	}
	return status
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
