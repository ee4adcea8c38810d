package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/stalecache/internal/server"
)

// CacheInspector 是诊断接口需要读取或操作的缓存能力。
type CacheInspector interface {
	Expiry() time.Duration
	InflightRefreshes() int64
	Purge(digestHex string) error
}

// StatusInfo 是启动时即确定的静态信息。
type StatusInfo struct {
	StorageRoot string
	ShardTiers  []int
	EntryFormat string
	Version     string
}

// DiagnosticsOptions 汇总 /-/ 下各接口的依赖；Metrics 为空时不注册 /-/metrics。
type DiagnosticsOptions struct {
	Cache   CacheInspector
	Info    StatusInfo
	Metrics http.Handler
	Logger  *logrus.Logger
}

// RegisterDiagnosticsRoutes 暴露 /-/status、/-/metrics 与 /-/cache/:digest，供 SRE 排查缓存状态。
func RegisterDiagnosticsRoutes(app *fiber.App, opts DiagnosticsOptions) {
	if app == nil || opts.Cache == nil {
		return
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(encodeStatus(opts.Info, opts.Cache))
	})

	if opts.Metrics != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(opts.Metrics))
	}

	app.Delete("/-/cache/:digest", func(c fiber.Ctx) error {
		digest := strings.ToLower(strings.TrimSpace(c.Params("digest")))
		if !isDigestHex(digest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "digest_invalid"})
		}
		if err := opts.Cache.Purge(digest); err != nil {
			logger.WithFields(logrus.Fields{
				"action":     "cache_purge",
				"digest":     digest,
				"request_id": server.RequestID(c),
			}).WithError(err).Warn("cache_purge_failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_purge_failed"})
		}
		logger.WithFields(logrus.Fields{
			"action":     "cache_purge",
			"digest":     digest,
			"request_id": server.RequestID(c),
		}).Info("cache_purged")
		return c.SendStatus(fiber.StatusNoContent)
	})
}

type statusPayload struct {
	StorageRoot       string `json:"storage_root"`
	ExpirySeconds     int64  `json:"expiry_seconds"`
	ShardTiers        []int  `json:"shard_tiers"`
	EntryFormat       string `json:"entry_format"`
	InflightRefreshes int64  `json:"inflight_refreshes"`
	Version           string `json:"version"`
}

func encodeStatus(info StatusInfo, inspector CacheInspector) statusPayload {
	return statusPayload{
		StorageRoot:       info.StorageRoot,
		ExpirySeconds:     int64(inspector.Expiry() / time.Second),
		ShardTiers:        append([]int(nil), info.ShardTiers...),
		EntryFormat:       info.EntryFormat,
		InflightRefreshes: inspector.InflightRefreshes(),
		Version:           info.Version,
	}
}

// isDigestHex 要求 64 位小写十六进制 SHA-256 摘要。
func isDigestHex(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
