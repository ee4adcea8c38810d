package server

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/stalecache/internal/cache"
	"github.com/any-hub/stalecache/internal/fingerprint"
)

// QueryEngine 是处理器依赖的缓存能力，测试中可注入替身。
type QueryEngine interface {
	Query(ctx context.Context, fp fingerprint.Fingerprint) (*cache.Result, error)
}

// AppOptions controls how the Fiber application builds fingerprints and
// answers requests.
type AppOptions struct {
	Logger *logrus.Logger
	Cache  QueryEngine
	// RequestHeaders 为空时使用 fingerprint.RequestHeaderAllowList。
	RequestHeaders []string
	// AbsoluteURLs 为 true 时按正向代理方式把 scheme://host 计入 URL。
	AbsoluteURLs bool
}

const contextKeyRequestID = "_stalecache_request_id"

// HeaderCacheOutcome 携带本次查询的分类结果。
const HeaderCacheOutcome = "X-Cache-Outcome"

// NewApp builds a Fiber application with request-id middleware and the
// catch-all cache handler. Diagnostics paths fall through to routes
// registered later on the returned app.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache engine is required")
	}
	headers := opts.RequestHeaders
	if len(headers) == 0 {
		headers = fingerprint.RequestHeaderAllowList
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	h := &handler{
		logger:       opts.Logger,
		engine:       opts.Cache,
		allow:        fingerprint.NewAllowList(headers),
		absoluteURLs: opts.AbsoluteURLs,
	}
	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsRequest(c) {
			return c.Next()
		}
		return h.serve(c)
	})

	return app, nil
}

func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// isDiagnosticsRequest 只拦截 origin-form 请求；正向代理的绝对 URL
// （如 GET http://example.com/-/status）一律交给缓存处理。
func isDiagnosticsRequest(c fiber.Ctx) bool {
	raw := c.OriginalURL()
	return strings.HasPrefix(raw, "/") && isDiagnosticsPath(string(c.Request().URI().Path()))
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
