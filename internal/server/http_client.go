package server

import (
	"net"
	"net/http"
	"net/textproto"
	"time"

	"github.com/frontdoor/frontdoor/internal/config"
)

// baseTransport 复用长连接并集中配置拨号/TLS 超时，后端代理与元数据请求各自 Clone 一份。
var baseTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewUpstreamClient 返回 /api 代理使用的共享 http.Client，整体超时取 Global.UpstreamTimeout。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	timeout := 10 * time.Second
	if cfg != nil && cfg.Global.UpstreamTimeout.DurationValue() > 0 {
		timeout = cfg.Global.UpstreamTimeout.DurationValue()
	}
	client := newClient(timeout)
	// 后端的 3xx 原样返回给浏览器，不在服务端跟随，也避免跨域跳转时丢失 Authorization。
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return client
}

// NewIdentityClient 返回访问元数据服务的 http.Client，超时取 Identity.Timeout。
func NewIdentityClient(cfg *config.Config) *http.Client {
	timeout := 5 * time.Second
	if cfg != nil && cfg.Identity.Timeout.DurationValue() > 0 {
		timeout = cfg.Identity.Timeout.DurationValue()
	}
	return newClient(timeout)
}

func newClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: baseTransport.Clone(),
	}
}

// hopByHopHeaders 定义 RFC 7230 中禁止代理转发的头部。
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Proxy-Connection":    {},
}

// IsHopByHopHeader reports whether the header should be stripped by proxies.
func IsHopByHopHeader(key string) bool {
	_, ok := hopByHopHeaders[textproto.CanonicalMIMEHeaderKey(key)]
	return ok
}
