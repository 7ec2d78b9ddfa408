package spa

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/frontdoor/frontdoor/internal/assets"
	"github.com/frontdoor/frontdoor/internal/logging"
	"github.com/frontdoor/frontdoor/internal/runtimeenv"
	"github.com/frontdoor/frontdoor/internal/server"
)

// 面向客户端的固定文案；详细原因只写日志。
const (
	MessageNotFound   = "Not found"
	MessageNotBuilt   = "Application not built. Please run npm run build first."
	MessageLoadFailed = "Error loading application"
)

// Options 描述兜底处理器的依赖。
type Options struct {
	DistDir string
	// Env 为空时读取进程环境变量。
	Env    runtimeenv.Source
	Logger *logrus.Logger
}

// Handler 是 SPA 兜底处理器。
type Handler struct {
	indexPath string
	env       runtimeenv.Source
	logger    *logrus.Logger
}

// NewHandler 校验依赖并构造 Handler。
func NewHandler(opts Options) (*Handler, error) {
	if opts.DistDir == "" {
		return nil, errors.New("dist dir is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	env := opts.Env
	if env == nil {
		env = runtimeenv.ProcessEnv
	}
	return &Handler{
		indexPath: filepath.Join(opts.DistDir, assets.IndexFile),
		env:       env,
		logger:    opts.Logger,
	}, nil
}

// Handle 处理未命中静态资源与 /api 的请求。
// 末段带 "." 的路径视为缺失的资源返回 404，其余路径返回注入环境变量后的 index.html。
func (h *Handler) Handle(c fiber.Ctx) error {
	method := c.Method()
	if method != http.MethodGet && method != http.MethodHead {
		return c.Status(fiber.StatusNotFound).SendString(MessageNotFound)
	}
	if looksLikeAsset(c.Path()) {
		return c.Status(fiber.StatusNotFound).SendString(MessageNotFound)
	}

	html, err := os.ReadFile(h.indexPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.logFailure(c, "index_missing", err)
			return c.Status(fiber.StatusInternalServerError).SendString(MessageNotBuilt)
		}
		h.logFailure(c, "index_read_failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString(MessageLoadFailed)
	}

	script, err := h.renderScript()
	if err != nil {
		h.logFailure(c, "env_inject_failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString(MessageLoadFailed)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(fiber.StatusOK).Send(Inject(html, script))
}

// renderScript 每个请求重新读取环境变量，修改部署配置后无需重启即可生效。
func (h *Handler) renderScript() (string, error) {
	snap, err := runtimeenv.Capture(h.env())
	if err != nil {
		return "", err
	}
	script, err := snap.Script()
	if err != nil {
		return "", fmt.Errorf("render env script: %w", err)
	}
	return script, nil
}

func (h *Handler) logFailure(c fiber.Ctx, code string, err error) {
	fields := logging.RequestFields(c.Method(), c.Path(), server.RequestID(c))
	fields["action"] = "spa"
	fields["index"] = h.indexPath
	fields["error"] = err.Error()
	h.logger.WithFields(fields).Error(code)
}

func looksLikeAsset(urlPath string) bool {
	return strings.Contains(path.Base(urlPath), ".")
}
