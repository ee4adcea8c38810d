package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖的前缀，例如 STALECACHE_STORAGEPATH。
const EnvPrefix = "STALECACHE"

// Load 读取并解析配置文件（TOML/YAML/JSON 均可），同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Cache.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Cache.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenAddr", "0.0.0.0:3128")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "json")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "")
	v.SetDefault("ExpiryDuration", "168h")
	v.SetDefault("ShardTiers", []int{2})
	v.SetDefault("EntryFormat", "json")
	v.SetDefault("RequestHeaders", DefaultRequestHeaders)
	v.SetDefault("ResponseHeaders", DefaultResponseHeaders)
	v.SetDefault("Upstream", "")
	v.SetDefault("UpstreamTimeout", "5m")
	v.SetDefault("RefreshTimeout", "")
}

// applyDefaults 补齐未通过 viper 设置的零值，方便直接构造 Config 的测试与调用方。
func applyDefaults(cfg *Config) {
	g := &cfg.Global
	if g.ListenAddr == "" {
		g.ListenAddr = "0.0.0.0:3128"
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}

	c := &cfg.Cache
	if c.ExpiryDuration.DurationValue() == 0 {
		c.ExpiryDuration = Duration(7 * 24 * time.Hour)
	}
	if len(c.ShardTiers) == 0 {
		c.ShardTiers = []int{2}
	}
	c.EntryFormat = strings.ToLower(strings.TrimSpace(c.EntryFormat))
	if c.EntryFormat == "" {
		c.EntryFormat = "json"
	}
	if len(c.RequestHeaders) == 0 {
		c.RequestHeaders = append([]string(nil), DefaultRequestHeaders...)
	}
	if len(c.ResponseHeaders) == 0 {
		c.ResponseHeaders = append([]string(nil), DefaultResponseHeaders...)
	}

	u := &cfg.Upstream
	if u.UpstreamTimeout.DurationValue() == 0 {
		u.UpstreamTimeout = Duration(5 * time.Minute)
	}
	if u.RefreshTimeout.DurationValue() == 0 {
		u.RefreshTimeout = u.UpstreamTimeout
	}
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
