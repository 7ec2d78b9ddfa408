package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/frontdoor/frontdoor/internal/assets"
	"github.com/frontdoor/frontdoor/internal/config"
	"github.com/frontdoor/frontdoor/internal/identity"
	"github.com/frontdoor/frontdoor/internal/logging"
	"github.com/frontdoor/frontdoor/internal/proxy"
	"github.com/frontdoor/frontdoor/internal/server"
	"github.com/frontdoor/frontdoor/internal/server/routes"
	"github.com/frontdoor/frontdoor/internal/spa"
	"github.com/frontdoor/frontdoor/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	envFile     string
	checkOnly   bool
	showVersion bool
	// flags 保留解析后的 FlagSet，供配置层绑定 --dist 等覆盖项。
	flags *pflag.FlagSet
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

	cfg, err := config.Load(opts.envFile, opts.flags)
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
		fields := logging.BaseFields("check_config", opts.envFile)
		fields["mode"] = cfg.Global.Mode
		fields["proxy"] = cfg.ProxyMode()
		fields["dist"] = cfg.Global.DistDir
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	app, err := buildApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "构建 HTTP 服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.envFile)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["mode"] = cfg.Global.Mode
	fields["proxy"] = cfg.ProxyMode()
	fields["dist"] = cfg.Global.DistDir
	fields["version"] = version.Full()
	logger.WithFields(fields).Infof("Server is running on port %d (%s)", cfg.Global.ListenPort, cfg.Global.Mode)

	if err := startHTTPServer(app, cfg.Global.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的 .env 路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := pflag.NewFlagSet("frontdoor", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		envFlag   string
		checkOnly bool
		showVer   bool
	)

	fs.StringVar(&envFlag, "env-file", "", "dotenv 文件路径（默认 ./.env，可被 FRONTDOOR_ENV_FILE 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.String("dist", "dist", "SPA 构建产物目录（覆盖 FRONTDOOR_DIST_DIR）")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("FRONTDOOR_ENV_FILE")
	if envFlag != "" {
		path = envFlag
	}
	if path == "" {
		path = ".env"
	}

	return cliOptions{
		envFile:     path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		flags:       fs,
	}, nil
}

// buildApp 按“静态资源 → /api 代理（可选）→ SPA 兜底”的顺序装配请求管线，
// 身份令牌缓存由 app 独占并注入代理处理器。
func buildApp(cfg *config.Config, logger *logrus.Logger) (*fiber.App, error) {
	pipeline := []server.Route{assets.New(cfg.Global.DistDir, logger)}

	var credentials routes.CredentialReporter
	if cfg.Global.EnableProxy {
		cache, err := identity.NewCache(identity.CacheOptions{
			Source:        identity.NewMetadataSource(server.NewIdentityClient(cfg)),
			Audience:      cfg.IdentityAudience(),
			Lifetime:      cfg.Identity.Lifetime.DurationValue(),
			RefreshBuffer: cfg.Identity.RefreshBuffer.DurationValue(),
			Timeout:       cfg.Identity.Timeout.DurationValue(),
			AllowDegraded: !cfg.IsProduction(),
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}

		apiHandler, err := proxy.NewHandler(proxy.Options{
			Client:      server.NewUpstreamClient(cfg),
			Logger:      logger,
			BackendURL:  cfg.BackendURL(),
			Credentials: cache,
		})
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, apiHandler.Route())
		credentials = cache

		if cfg.BackendURL() == "" {
			logger.WithFields(logrus.Fields{
				"action": "startup",
				"mode":   cfg.Global.Mode,
			}).Warn("API 代理已启用但未配置后端地址，/api 请求将返回 500")
		}
	}

	fallback, err := spa.NewHandler(spa.Options{
		DistDir: cfg.Global.DistDir,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Routes:     pipeline,
		Fallback:   fallback.Handle,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterDiagnosticsRoutes(app, cfg, credentials)
	return app, nil
}

func startHTTPServer(app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
