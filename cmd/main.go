package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shopfront_console/internal/config"
	"shopfront_console/internal/controller"
	"shopfront_console/internal/metrics"
	"shopfront_console/internal/middleware"
	"shopfront_console/internal/model"
	"shopfront_console/internal/realtime"
	"shopfront_console/internal/repository"
	"shopfront_console/internal/router"
	"shopfront_console/internal/service"
	"shopfront_console/internal/state"
	"shopfront_console/internal/task"
	"shopfront_console/pkg/database"
	"shopfront_console/pkg/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ==================== 命令行 ====================

type rootOptions struct {
	ConfigPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "shopfront",
		Short:         "货到付款小店：前台下单 + 运营控制台",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "配置文件路径（yaml/json/toml）")

	cmd.AddCommand(
		newServeCommand(opts),
		newSyncCommand(opts),
		newMigrateCommand(opts),
		newHashCommand(),
	)
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务与后台订单任务",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "执行一次订单与商品全量同步并输出新订单",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncOnce(cmd.Context(), opts, cmd)
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "远端建表并安装订单插入通知触发器",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), opts, cmd)
		},
	}
}

func newHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-passphrase <passphrase>",
		Short: "生成 console.passphrase_hash 配置值",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := service.HashPassphrase(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// remoteStartupTimeout 启动时访问远端的上限，超时后按离线继续
const remoteStartupTimeout = 15 * time.Second

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	Config   *config.Config
	Log      *zap.Logger
	Activity *logger.ActivityLog
	Metrics  *metrics.Metrics
	Clock    clock.Clock

	RemoteDB *gorm.DB
	LocalDB  *gorm.DB

	Repos    *Repositories
	Services *Services
	State    *state.AppState
	Hub      *realtime.Hub

	SyncTask    *task.OrderSyncTask
	Tasks       *task.TaskManager
	Controllers *router.Controllers
}

// Repositories 仓库集合
type Repositories struct {
	Order      repository.OrderRepository
	Product    repository.ProductRepository
	LocalState repository.LocalStateRepository
}

// Services 服务集合
type Services struct {
	Auth       *service.AuthService
	Order      *service.OrderService
	Product    *service.ProductService
	Storage    *service.StorageService
	Cache      *service.SnapshotCache
	Tracker    *service.OrderTracker
	Dispatcher *service.NotificationDispatcher
}

// Close 释放数据库连接
func (d *Dependencies) Close() {
	for _, db := range []*gorm.DB{d.RemoteDB, d.LocalDB} {
		if db == nil {
			continue
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	d.Log.Sync()
}

// ==================== 初始化函数 ====================

// initBase 配置与日志
func initBase(opts *rootOptions) (*config.Config, *zap.Logger, *logger.ActivityLog, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, nil, err
	}

	activity := logger.NewActivityLog(cfg.Log.ActivitySize)
	log, err := logger.New(cfg.Log.Level, activity)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, activity, nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	if level == "debug" {
		return gormlogger.Info
	}
	return gormlogger.Warn
}

// remoteModels 远端需要建表的模型
func remoteModels() []interface{} {
	return []interface{}{
		&model.Order{}, &model.OrderItem{},
		&model.Product{}, &model.ProductVariant{},
	}
}

// initDatabase 远端 PostgreSQL + 本地 SQLite
// 远端不可达不阻止启动：控制台先展示本地快照，同步失败会标记 stale
func initDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) (remote *gorm.DB, local *gorm.DB, err error) {
	level := gormLogLevel(cfg.Log.Level)

	remote, err = database.InitDB(cfg.Remote.DSN, level)
	if err != nil {
		return nil, nil, err
	}
	migrateCtx, cancel := context.WithTimeout(ctx, remoteStartupTimeout)
	defer cancel()
	if err := database.Migrate(migrateCtx, remote, remoteModels()...); err != nil {
		log.Warn("远端建表失败，使用本地快照启动", zap.Error(err))
	}
	local, err = database.OpenLocal(cfg.Local.Path, level, &model.LocalEntry{})
	if err != nil {
		return nil, nil, err
	}
	return remote, local, nil
}

// initDependencies 初始化所有依赖
func initDependencies(ctx context.Context, opts *rootOptions) (*Dependencies, error) {
	cfg, log, activity, err := initBase(opts)
	if err != nil {
		return nil, err
	}

	remoteDB, localDB, err := initDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{
		Config:   cfg,
		Log:      log,
		Activity: activity,
		Metrics:  metrics.New(),
		Clock:    clock.New(),
		RemoteDB: remoteDB,
		LocalDB:  localDB,
	}

	// -------- Repo 层 --------
	deps.Repos = &Repositories{
		Order:      repository.NewOrderRepository(remoteDB),
		Product:    repository.NewProductRepository(remoteDB),
		LocalState: repository.NewLocalStateRepository(localDB),
	}

	// -------- 本地状态 --------
	cache := service.NewSnapshotCache(deps.Repos.LocalState, log)
	tracker := service.NewOrderTracker(cache, deps.Clock, log)
	tracker.Prime(ctx)

	deps.State = state.New(deps.Repos.LocalState, cache, tracker, cfg.Notify.DefaultSound, log)
	if err := deps.State.Init(ctx); err != nil {
		deps.Close()
		return nil, err
	}

	// -------- 业务服务 --------
	storageSvc, err := initStorageService(cfg, log)
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.Services = &Services{
		Auth:       service.NewAuthService(cfg.Console.PassphraseHash, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, deps.Clock, deps.State),
		Order:      service.NewOrderService(deps.Repos.Order, deps.Repos.Product),
		Product:    service.NewProductService(deps.Repos.Product, cache, storageSvc, deps.Clock, log),
		Storage:    storageSvc,
		Cache:      cache,
		Tracker:    tracker,
		Dispatcher: initDispatcher(cfg, deps.State, deps.Metrics, log),
	}

	// -------- 标签页 --------
	deps.Hub = realtime.NewHub(deps.State, deps.Clock, cfg.Notify.ToastTTL, cfg.Console.RootURL, log)
	deps.Services.Dispatcher.SetBroadcaster(deps.Hub)
	deps.Services.Storage.SetBroadcaster(deps.Hub)

	// -------- 后台任务 --------
	initTasks(deps)
	deps.Hub.SetControl(deps.Tasks)

	// -------- Controller 层 --------
	deps.Controllers = initControllers(deps)

	return deps, nil
}

// initStorageService 初始化存储服务
func initStorageService(cfg *config.Config, log *zap.Logger) (*service.StorageService, error) {
	return service.NewStorageService(&service.StorageConfig{
		Provider:        cfg.Storage.Provider,
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		AccessKey:       cfg.Storage.AccessKey,
		SecretKey:       cfg.Storage.SecretKey,
		Endpoint:        cfg.Storage.Endpoint,
		CDNDomain:       cfg.Storage.CDNDomain,
		BasePath:        cfg.Storage.BasePath,
		InlineWarnBytes: cfg.Upload.InlineWarnBytes,
	}, log)
}

// initDispatcher 配置了推送地址时走后台推送，否则只靠标签页
func initDispatcher(cfg *config.Config, settings service.AlertSettings, m *metrics.Metrics, log *zap.Logger) *service.NotificationDispatcher {
	var notifier service.SystemNotifier
	if cfg.Notify.PushURL != "" {
		notifier = service.NewPushNotifier(cfg.Notify.PushURL, cfg.Notify.PushToken)
	}
	return service.NewNotificationDispatcher(settings, notifier, cfg.Console.RootURL, m, log)
}

// initControllers 初始化所有控制器
func initControllers(deps *Dependencies) *router.Controllers {
	svc := deps.Services
	return &router.Controllers{
		Auth:       controller.NewAuthController(svc.Auth),
		Order:      controller.NewOrderController(svc.Order),
		Product:    controller.NewProductController(svc.Product),
		Storefront: controller.NewStorefrontController(svc.Product, svc.Order, deps.State),
		Console: controller.NewConsoleController(&controller.ConsoleControllerDeps{
			AppState:   deps.State,
			Dispatcher: svc.Dispatcher,
			Storage:    svc.Storage,
			Tasks:      deps.Tasks,
			Hub:        deps.Hub,
			Activity:   deps.Activity,
		}),
	}
}

// ==================== 后台任务 ====================

// initTasks 组装订阅与全量同步；关闭的任务不交给管理器
func initTasks(deps *Dependencies) {
	cfg := deps.Config
	svc := deps.Services

	deps.SyncTask = task.NewOrderSyncTask(
		svc.Order, svc.Product, svc.Tracker,
		svc.Dispatcher, deps.Hub,
		cfg.Sync.Schedule, cfg.Sync.OrderLimit,
		deps.Metrics, deps.Log,
	)

	tmDeps := &task.TaskManagerDeps{
		Tracker:    svc.Tracker,
		Dispatcher: svc.Dispatcher,
		Log:        deps.Log,
	}
	if cfg.Sync.Enabled {
		tmDeps.SyncTask = deps.SyncTask
	}
	if cfg.Feed.Enabled {
		channel := cfg.Feed.Channel
		if channel == "" {
			channel = database.OrderFeedChannel
		}
		tmDeps.FeedTask = task.NewOrderFeedTask(
			task.NewPQFeedSource(cfg.Remote.DSN, cfg.Feed.SubscribeTimeout, deps.Clock),
			channel,
			cfg.Feed.ReconnectInterval,
			deps.Clock,
			deps.Repos.Order,
			svc.Tracker,
			svc.Dispatcher,
			deps.Metrics,
			deps.Log,
		)
	}

	deps.Tasks = task.NewTaskManager(tmDeps)
}

// ==================== 命令实现 ====================

func runServe(ctx context.Context, opts *rootOptions) error {
	deps, err := initDependencies(ctx, opts)
	if err != nil {
		return err
	}
	defer deps.Close()

	cfg := deps.Config
	if cfg.Feed.Enabled {
		installCtx, cancel := context.WithTimeout(ctx, remoteStartupTimeout)
		err := database.InstallOrderFeed(installCtx, deps.RemoteDB)
		cancel()
		if err != nil {
			deps.Log.Warn("订单通知触发器安装失败，依赖全量同步兜底", zap.Error(err))
		}
	}

	if err := deps.Tasks.Start(ctx); err != nil {
		return err
	}
	defer deps.Tasks.Stop()

	gin.SetMode(gin.ReleaseMode)
	uploadDir := ""
	if cfg.Storage.Provider == "local" && cfg.Storage.Endpoint == "" {
		uploadDir = cfg.Storage.BasePath
	}
	r := router.SetupRouter(deps.Controllers, &router.Options{
		Ctx:             ctx,
		Auth:            deps.Services.Auth,
		Hub:             deps.Hub,
		Metrics:         deps.Metrics,
		Limiter:         middleware.NewCooldownLimiter(deps.Clock),
		RefreshCooldown: cfg.Sync.RefreshCooldown,
		UploadDir:       uploadDir,
		Log:             deps.Log,
	})

	return startServer(ctx, cfg.Server.Port, r, deps.Log)
}

func runSyncOnce(ctx context.Context, opts *rootOptions, cmd *cobra.Command) error {
	deps, err := initDependencies(ctx, opts)
	if err != nil {
		return err
	}
	defer deps.Close()

	fresh, err := deps.SyncTask.SyncNow(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "已知订单 %d 条，新订单 %d 条\n", len(deps.Services.Tracker.Orders()), len(fresh))
	for _, o := range fresh {
		fmt.Fprintf(out, "  %s  %s  %s  %d %s\n", o.DisplayID, o.CustomerName, o.City, o.TotalAmount, o.Currency)
	}
	return nil
}

func runMigrate(ctx context.Context, opts *rootOptions, cmd *cobra.Command) error {
	cfg, log, _, err := initBase(opts)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := database.InitDB(cfg.Remote.DSN, gormLogLevel(cfg.Log.Level))
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := database.Migrate(ctx, db, remoteModels()...); err != nil {
		return err
	}

	if err := database.InstallOrderFeed(ctx, db); err != nil {
		return err
	}
	log.Info("迁移完成", zap.String("channel", database.OrderFeedChannel))
	fmt.Fprintln(cmd.OutOrStdout(), "migrate ok")
	return nil
}

// ==================== 服务启动 ====================

// startServer 启动服务，ctx 取消后优雅关闭
func startServer(ctx context.Context, port string, r *gin.Engine, log *zap.Logger) error {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("服务启动失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("正在关闭服务...")

		// 优雅关闭，最多等待 30 秒
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("服务已退出")
	return nil
}
