package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/stalecache/internal/cache"
	"github.com/any-hub/stalecache/internal/config"
	"github.com/any-hub/stalecache/internal/logging"
	"github.com/any-hub/stalecache/internal/metrics"
	"github.com/any-hub/stalecache/internal/server"
	"github.com/any-hub/stalecache/internal/server/routes"
	"github.com/any-hub/stalecache/internal/upstream"
	"github.com/any-hub/stalecache/internal/version"
)

// shutdownGrace 限制退出时等待在途请求与后台刷新的时间。
const shutdownGrace = 30 * time.Second

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["storage_path"] = cfg.Cache.StoragePath
		fields["entry_format"] = cfg.Cache.EntryFormat
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 磁盘存储 → 回源客户端 → 缓存引擎 → Fiber server，
	// 所有请求共享同一个 http.Client 与 Cache 实例。
	deps, err := buildDependencies(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_addr"] = cfg.Global.ListenAddr
	fields["storage_path"] = cfg.Cache.StoragePath
	fields["expiry"] = deps.cache.Expiry().String()
	fields["entry_format"] = cfg.Cache.EntryFormat
	fields["upstream"] = cfg.Upstream.Upstream
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startHTTPServer(ctx, cfg, deps, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("stalecache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 STALECACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("STALECACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

type dependencies struct {
	cache   *cache.Cache
	metrics *metrics.Metrics
	format  cache.EntryFormat
}

func buildDependencies(cfg *config.Config, logger *logrus.Logger) (*dependencies, error) {
	format, err := cache.ParseEntryFormat(cfg.Cache.EntryFormat)
	if err != nil {
		return nil, err
	}
	codec, err := cache.NewCodec(format)
	if err != nil {
		return nil, err
	}
	store, err := cache.NewStore(cfg.Cache.StoragePath, codec)
	if err != nil {
		return nil, err
	}
	layout, err := cache.NewShardLayout(cfg.Cache.StoragePath, cfg.Cache.ShardTiers)
	if err != nil {
		return nil, err
	}

	fetcher, err := upstream.NewHTTPFetcher(upstream.NewClient(cfg), upstream.FetcherOptions{
		Base:            cfg.Upstream.Upstream,
		ResponseHeaders: cfg.Cache.ResponseHeaders,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	recorder := metrics.New()
	engine, err := cache.New(cache.Options{
		Store:          store,
		Layout:         layout,
		Fetcher:        fetcher,
		Expiry:         cfg.Cache.ExpiryDuration.DurationValue(),
		RefreshTimeout: cfg.Upstream.RefreshTimeout.DurationValue(),
		Logger:         logger,
		Metrics:        recorder,
	})
	if err != nil {
		return nil, err
	}
	return &dependencies{cache: engine, metrics: recorder, format: format}, nil
}

func buildApp(cfg *config.Config, deps *dependencies, logger *logrus.Logger) (*fiber.App, error) {
	app, err := server.NewApp(server.AppOptions{
		Logger:         logger,
		Cache:          deps.cache,
		RequestHeaders: cfg.Cache.RequestHeaders,
		AbsoluteURLs:   cfg.Upstream.Upstream == "",
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterDiagnosticsRoutes(app, routes.DiagnosticsOptions{
		Cache: deps.cache,
		Info: routes.StatusInfo{
			StorageRoot: cfg.Cache.StoragePath,
			ShardTiers:  cfg.Cache.ShardTiers,
			EntryFormat: string(deps.format),
			Version:     version.Full(),
		},
		Metrics: deps.metrics.Handler(),
		Logger:  logger,
	})
	return app, nil
}

// startHTTPServer 阻塞直到 ctx 结束或监听失败；退出前等待后台刷新完成。
func startHTTPServer(ctx context.Context, cfg *config.Config, deps *dependencies, logger *logrus.Logger) error {
	app, err := buildApp(cfg, deps, logger)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"addr":   cfg.Global.ListenAddr,
	}).Info("Fiber 服务启动")

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(cfg.Global.ListenAddr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	logger.WithField("action", "shutdown").Info("收到退出信号，等待在途请求与后台刷新")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	var errs []error
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := deps.cache.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("waiting for refreshes: %w", err))
	}
	return errors.Join(errs...)
}
