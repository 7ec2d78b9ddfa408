package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 运行模式，对应 NODE_ENV 的取值。
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
	ModeTest        = "test"
)

// Duration 提供更灵活的反序列化能力，同时兼容秒数（可带小数）与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 解析 "30s"、"5m" 或 "1.5" 这类秒值写法，配置加载的 decode hook 也复用它。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(seconds * float64(time.Second)))
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// GlobalConfig 描述进程级运行参数：监听端口、模式、构建目录与日志。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	Mode            string   `mapstructure:"Mode"`
	DistDir         string   `mapstructure:"DistDir"`
	EnableProxy     bool     `mapstructure:"EnableProxy"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// BackendConfig 保存 /api 代理的后端地址，开发与生产各一份。
type BackendConfig struct {
	DevURL  string `mapstructure:"DevURL"`
	LiveURL string `mapstructure:"LiveURL"`
}

// IdentityConfig 控制身份令牌的受众、获取超时与缓存窗口。
type IdentityConfig struct {
	Audience      string   `mapstructure:"Audience"`
	Timeout       Duration `mapstructure:"Timeout"`
	Lifetime      Duration `mapstructure:"Lifetime"`
	RefreshBuffer Duration `mapstructure:"RefreshBuffer"`
}

// Config 是启动时从环境变量（及可选 .env 文件）解析出的整体配置。
type Config struct {
	Global   GlobalConfig   `mapstructure:"Global"`
	Backend  BackendConfig  `mapstructure:"Backend"`
	Identity IdentityConfig `mapstructure:"Identity"`
}

// IsProduction 判断当前是否为生产模式。
func (c *Config) IsProduction() bool {
	return c.Global.Mode == ModeProduction
}

// BackendURL 返回当前模式下 /api 代理使用的后端地址；
// 非生产模式优先使用开发地址，为空时回退到生产地址。
func (c *Config) BackendURL() string {
	if c.IsProduction() {
		return c.Backend.LiveURL
	}
	if c.Backend.DevURL != "" {
		return c.Backend.DevURL
	}
	return c.Backend.LiveURL
}

// IdentityAudience 返回身份令牌的目标受众：显式配置 > 生产后端地址 > 当前后端地址。
func (c *Config) IdentityAudience() string {
	if c.Identity.Audience != "" {
		return c.Identity.Audience
	}
	if c.Backend.LiveURL != "" {
		return c.Backend.LiveURL
	}
	return c.BackendURL()
}

// ProxyMode 输出 `proxying` 或 `static`，供日志字段使用。
func (c *Config) ProxyMode() string {
	if c.Global.EnableProxy {
		return "proxying"
	}
	return "static"
}
