package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
)

var supportedModes = map[string]struct{}{
	ModeProduction:  {},
	ModeDevelopment: {},
	ModeTest:        {},
}

const supportedModeList = "production|development|test"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
// 后端地址允许为空：缺失时由 /api 代理在请求级别返回配置错误。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError(envField("Global.ListenPort"), "必须在 1-65535")
	}
	if _, ok := supportedModes[g.Mode]; !ok {
		return newFieldError(envField("Global.Mode"), "仅支持 "+supportedModeList)
	}
	if g.DistDir == "" {
		return newFieldError(envField("Global.DistDir"), "不能为空")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError(envField("Global.LogLevel"), err.Error())
	}
	if g.LogMaxSize < 0 {
		return newFieldError(envField("Global.LogMaxSize"), "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError(envField("Global.LogMaxBackups"), "不能为负数")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError(envField("Global.UpstreamTimeout"), "必须大于 0")
	}

	if c.Backend.DevURL != "" {
		if err := validateUpstream(c.Backend.DevURL); err != nil {
			return fmt.Errorf("%s: %w", envField("Backend.DevURL"), err)
		}
	}
	if c.Backend.LiveURL != "" {
		if err := validateUpstream(c.Backend.LiveURL); err != nil {
			return fmt.Errorf("%s: %w", envField("Backend.LiveURL"), err)
		}
	}
	if c.Identity.Audience != "" {
		if err := validateUpstream(c.Identity.Audience); err != nil {
			return fmt.Errorf("%s: %w", envField("Identity.Audience"), err)
		}
	}

	id := c.Identity
	if id.Timeout.DurationValue() <= 0 {
		return newFieldError(envField("Identity.Timeout"), "必须大于 0")
	}
	if id.Lifetime.DurationValue() <= 0 {
		return newFieldError(envField("Identity.Lifetime"), "必须大于 0")
	}
	if id.RefreshBuffer.DurationValue() < 0 {
		return newFieldError(envField("Identity.RefreshBuffer"), "不能为负数")
	}
	if id.RefreshBuffer.DurationValue() >= id.Lifetime.DurationValue() {
		return newFieldError(envField("Identity.RefreshBuffer"), "必须小于 Identity.Lifetime")
	}

	return nil
}

func validateUpstream(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
