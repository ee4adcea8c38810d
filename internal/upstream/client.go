package upstream

import (
	"net"
	"net/http"
	"time"

	"github.com/any-hub/stalecache/internal/config"
)

// DefaultTimeout 容忍慢速上游，与连接/读写超时保持同一量级。
const DefaultTimeout = 5 * time.Minute

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   DefaultTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewClient 返回共享 http.Client，不跟随重定向，3xx 原样交给调用方缓存。
func NewClient(cfg *config.Config) *http.Client {
	timeout := DefaultTimeout
	if cfg != nil && cfg.Upstream.UpstreamTimeout.DurationValue() > 0 {
		timeout = cfg.Upstream.UpstreamTimeout.DurationValue()
	}

	transport := defaultTransport.Clone()
	transport.ResponseHeaderTimeout = timeout

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
