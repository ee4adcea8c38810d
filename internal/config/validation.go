package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var supportedEntryFormats = map[string]struct{}{
	"json": {},
	"cbor": {},
}

// digestHexLength 是 SHA-256 十六进制摘要的长度，分片宽度之和必须小于它。
const digestHexLength = 64

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if err := validateListenAddr(g.ListenAddr); err != nil {
		return newFieldError("ListenAddr", err.Error())
	}

	cc := c.Cache
	if strings.TrimSpace(cc.StoragePath) == "" {
		return newFieldError("StoragePath", "不能为空")
	}
	if cc.ExpiryDuration.DurationValue() <= 0 {
		return newFieldError("ExpiryDuration", "必须大于 0")
	}
	total := 0
	for i, width := range cc.ShardTiers {
		if width <= 0 {
			return newFieldError(fmt.Sprintf("ShardTiers[%d]", i), "必须大于 0")
		}
		total += width
	}
	if total >= digestHexLength {
		return newFieldError("ShardTiers", fmt.Sprintf("宽度之和必须小于 %d", digestHexLength))
	}
	if _, ok := supportedEntryFormats[cc.EntryFormat]; !ok {
		return newFieldError("EntryFormat", "仅支持 json|cbor")
	}
	if err := validateHeaderNames(cc.RequestHeaders); err != nil {
		return newFieldError("RequestHeaders", err.Error())
	}
	if err := validateHeaderNames(cc.ResponseHeaders); err != nil {
		return newFieldError("ResponseHeaders", err.Error())
	}

	u := c.Upstream
	if u.Upstream != "" {
		if err := validateUpstream(u.Upstream); err != nil {
			return fmt.Errorf("Upstream: %w", err)
		}
	}
	if u.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}
	if u.RefreshTimeout.DurationValue() < 0 {
		return newFieldError("RefreshTimeout", "不能为负数")
	}

	return nil
}

func validateListenAddr(addr string) error {
	if addr == "" {
		return errors.New("不能为空")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("格式应为 host:port: %v", err)
	}
	return nil
}

func validateHeaderNames(names []string) error {
	if len(names) == 0 {
		return errors.New("不能为空")
	}
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return errors.New("包含空白头部名称")
		}
		if strings.ContainsAny(trimmed, " :\t") {
			return fmt.Errorf("非法头部名称: %q", name)
		}
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
