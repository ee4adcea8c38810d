package server

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/stalecache/internal/fingerprint"
)

type handler struct {
	logger       *logrus.Logger
	engine       QueryEngine
	allow        fingerprint.AllowList
	absoluteURLs bool
}

func (h *handler) serve(c fiber.Ctx) error {
	fp := h.fingerprintFor(c)

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := h.engine.Query(ctx, fp)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"action":     "proxy",
			"request_id": RequestID(c),
			"method":     fp.Method,
			"url":        fp.URL,
		}).WithError(err).Warn("request_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "cache_query_failed",
		})
	}

	entry := result.Entry
	c.Status(entry.StatusCode)
	for name, value := range entry.Headers {
		c.Set(name, value)
	}
	c.Set(HeaderCacheOutcome, string(result.Outcome))
	return c.Send(entry.Body)
}

// fingerprintFor 复制请求中的所有数据：fasthttp 会在请求结束后复用缓冲区，
// 而后台刷新可能晚于请求结束才读取 fingerprint。
func (h *handler) fingerprintFor(c fiber.Ctx) fingerprint.Fingerprint {
	headers := h.allow.Filter(func(name string) (string, bool) {
		raw := c.Request().Header.Peek(name)
		if len(raw) == 0 {
			return "", false
		}
		return string(raw), true
	})

	// c.Body() 会按 Content-Encoding 解压，缓存键必须使用原始字节。
	var body []byte
	if raw := c.Request().Body(); len(raw) > 0 {
		body = append([]byte(nil), raw...)
	}

	return fingerprint.New(c.Method(), h.requestURL(c), headers, body)
}

// requestURL 返回原始路径，仅在查询串非空时追加 "?query"。
func (h *handler) requestURL(c fiber.Ctx) string {
	uri := c.Request().URI()
	target := string(uri.PathOriginal())
	if h.absoluteURLs {
		target = string(uri.Scheme()) + "://" + string(uri.Host()) + target
	}
	if query := uri.QueryString(); len(query) > 0 {
		target += "?" + string(query)
	}
	return target
}
