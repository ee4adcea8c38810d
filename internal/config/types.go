package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/stalecache/internal/fingerprint"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"168h" 或纯数字秒值等配置写法。
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

// DefaultRequestHeaders 与 DefaultResponseHeaders 直接引用 fingerprint 包中的唯一定义。
var (
	DefaultRequestHeaders  = fingerprint.RequestHeaderAllowList
	DefaultResponseHeaders = fingerprint.ResponseHeaderAllowList
)

// GlobalConfig 描述进程级运行参数。
type GlobalConfig struct {
	ListenAddr    string `mapstructure:"ListenAddr"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFormat     string `mapstructure:"LogFormat"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// CacheConfig 描述缓存引擎的存储布局与过期策略。
type CacheConfig struct {
	StoragePath     string   `mapstructure:"StoragePath"`
	ExpiryDuration  Duration `mapstructure:"ExpiryDuration"`
	ShardTiers      []int    `mapstructure:"ShardTiers"`
	EntryFormat     string   `mapstructure:"EntryFormat"`
	RequestHeaders  []string `mapstructure:"RequestHeaders"`
	ResponseHeaders []string `mapstructure:"ResponseHeaders"`
}

// UpstreamConfig 描述回源客户端。Upstream 为空时只接受绝对 URL（正向代理模式）。
type UpstreamConfig struct {
	Upstream        string   `mapstructure:"Upstream"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	RefreshTimeout  Duration `mapstructure:"RefreshTimeout"`
}

// Config 是配置文件映射的整体结构，所有字段位于顶层。
type Config struct {
	Global   GlobalConfig   `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:",squash"`
	Upstream UpstreamConfig `mapstructure:",squash"`
}
