package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envBindings 将配置键映射到固定的环境变量名，VITE_* 与 NODE_ENV/PORT 与前端构建保持一致。
var envBindings = map[string]string{
	"Global.ListenPort":      "PORT",
	"Global.Mode":            "NODE_ENV",
	"Global.DistDir":         "FRONTDOOR_DIST_DIR",
	"Global.EnableProxy":     "FRONTDOOR_ENABLE_PROXY",
	"Global.LogLevel":        "FRONTDOOR_LOG_LEVEL",
	"Global.LogFilePath":     "FRONTDOOR_LOG_FILE",
	"Global.LogMaxSize":      "FRONTDOOR_LOG_MAX_SIZE",
	"Global.LogMaxBackups":   "FRONTDOOR_LOG_MAX_BACKUPS",
	"Global.LogCompress":     "FRONTDOOR_LOG_COMPRESS",
	"Global.UpstreamTimeout": "FRONTDOOR_UPSTREAM_TIMEOUT",
	"Backend.DevURL":         "VITE_DEV_APP_URL",
	"Backend.LiveURL":        "VITE_LIVE_APP_URL",
	"Identity.Audience":      "FRONTDOOR_IDENTITY_AUDIENCE",
	"Identity.Timeout":       "FRONTDOOR_IDENTITY_TIMEOUT",
	"Identity.Lifetime":      "FRONTDOOR_TOKEN_LIFETIME",
	"Identity.RefreshBuffer": "FRONTDOOR_TOKEN_REFRESH_BUFFER",
}

// flagBindings 列出可由命令行覆盖的配置键。
var flagBindings = map[string]string{
	"Global.DistDir": "dist",
}

// Load 读取可选的 .env 文件，随后从环境变量解析配置、注入默认值并校验。
// flags 可为 nil；已显式设置的 flag 优先于环境变量。
func Load(envFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	for key, name := range envBindings {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", name, err)
		}
	}
	if flags != nil {
		for key, name := range flagBindings {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("绑定参数 --%s 失败: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absDist, err := filepath.Abs(cfg.Global.DistDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析构建目录: %w", err)
	}
	cfg.Global.DistDir = absDist

	return &cfg, nil
}

// LoadDotEnv 以 dotenv 格式读取文件并写入进程环境变量；已存在的变量不会被覆盖，
// 文件不存在时直接跳过（容器环境通常只注入真实环境变量）。
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("解析 .env 失败: %w", err)
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("设置环境变量 %s 失败: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Global.ListenPort", 8080)
	v.SetDefault("Global.Mode", ModeProduction)
	v.SetDefault("Global.DistDir", "dist")
	v.SetDefault("Global.EnableProxy", false)
	v.SetDefault("Global.LogLevel", "info")
	v.SetDefault("Global.LogFilePath", "")
	v.SetDefault("Global.LogMaxSize", 100)
	v.SetDefault("Global.LogMaxBackups", 10)
	v.SetDefault("Global.LogCompress", true)
	v.SetDefault("Global.UpstreamTimeout", "10s")
	v.SetDefault("Backend.DevURL", "")
	v.SetDefault("Backend.LiveURL", "")
	v.SetDefault("Identity.Audience", "")
	v.SetDefault("Identity.Timeout", "5s")
	v.SetDefault("Identity.Lifetime", "1h")
	v.SetDefault("Identity.RefreshBuffer", "10m")
}

func applyDefaults(cfg *Config) {
	g := &cfg.Global
	if g.ListenPort == 0 {
		g.ListenPort = 8080
	}
	g.Mode = strings.ToLower(strings.TrimSpace(g.Mode))
	if g.Mode == "" {
		g.Mode = ModeProduction
	}
	if strings.TrimSpace(g.DistDir) == "" {
		g.DistDir = "dist"
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(10 * time.Second)
	}

	cfg.Backend.DevURL = normalizeBaseURL(cfg.Backend.DevURL)
	cfg.Backend.LiveURL = normalizeBaseURL(cfg.Backend.LiveURL)
	cfg.Identity.Audience = strings.TrimSpace(cfg.Identity.Audience)

	id := &cfg.Identity
	if id.Timeout.DurationValue() == 0 {
		id.Timeout = Duration(5 * time.Second)
	}
	if id.Lifetime.DurationValue() == 0 {
		id.Lifetime = Duration(time.Hour)
	}
	if id.RefreshBuffer.DurationValue() == 0 {
		id.RefreshBuffer = Duration(10 * time.Minute)
	}
}

// normalizeBaseURL 去掉结尾的 /，保证与请求路径拼接时不出现 //api。
func normalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			var d Duration
			if err := d.UnmarshalText([]byte(v)); err != nil {
				return nil, fmt.Errorf("无法解析 Duration 字段: %w", err)
			}
			return d, nil
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
