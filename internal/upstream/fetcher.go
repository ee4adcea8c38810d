package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/stalecache/internal/cache"
	"github.com/any-hub/stalecache/internal/fingerprint"
)

// defaultBodyContentType 在请求带正文但未声明 Content-Type 时使用。
const defaultBodyContentType = "text/plain"

// HTTPFetcher 通过共享 http.Client 回源，实现 cache.Fetcher。
type HTTPFetcher struct {
	client          *http.Client
	base            *url.URL
	responseHeaders fingerprint.AllowList
	logger          *logrus.Logger
}

// FetcherOptions 控制回源行为。
type FetcherOptions struct {
	// Base 为空时只接受绝对 URL；否则相对 URL 以 Base 为根解析。
	Base            string
	ResponseHeaders []string
	Logger          *logrus.Logger
}

// NewHTTPFetcher 构造回源器，client 应在进程内只创建一次。
func NewHTTPFetcher(client *http.Client, opts FetcherOptions) (*HTTPFetcher, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	var base *url.URL
	if opts.Base != "" {
		parsed, err := url.Parse(opts.Base)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream base: %w", err)
		}
		base = parsed
	}
	headers := opts.ResponseHeaders
	if len(headers) == 0 {
		headers = fingerprint.ResponseHeaderAllowList
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPFetcher{
		client:          client,
		base:            base,
		responseHeaders: fingerprint.NewAllowList(headers),
		logger:          logger,
	}, nil
}

// Fetch 执行一次上游请求；任何传输层失败都包装为 *cache.FetchError。
// 上游返回的非 2xx 状态码不是错误，会和正文一起原样返回。
func (f *HTTPFetcher) Fetch(ctx context.Context, fp fingerprint.Fingerprint) (*cache.Entry, error) {
	target, err := f.resolve(fp.URL)
	if err != nil {
		return nil, &cache.FetchError{Method: fp.Method, URL: fp.URL, Err: err}
	}

	req, err := f.buildRequest(ctx, fp, target)
	if err != nil {
		return nil, &cache.FetchError{Method: fp.Method, URL: fp.URL, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &cache.FetchError{Method: fp.Method, URL: fp.URL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &cache.FetchError{Method: fp.Method, URL: fp.URL, Err: fmt.Errorf("read body: %w", err)}
	}

	headers := make(map[string]string)
	for _, h := range f.responseHeaders.Filter(func(name string) (string, bool) {
		values := resp.Header.Values(name)
		if len(values) == 0 {
			return "", false
		}
		return values[0], true
	}) {
		headers[h.Name] = h.Value
	}

	f.logger.WithFields(logrus.Fields{
		"action":          "upstream_fetch",
		"method":          fp.Method,
		"upstream":        target.String(),
		"upstream_status": resp.StatusCode,
		"body_bytes":      len(body),
	}).Debug("upstream_complete")

	return &cache.Entry{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}

func (f *HTTPFetcher) resolve(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if parsed.IsAbs() {
		return parsed, nil
	}
	if f.base == nil {
		return nil, fmt.Errorf("relative url %q without configured upstream", raw)
	}
	return f.base.ResolveReference(parsed), nil
}

func (f *HTTPFetcher) buildRequest(ctx context.Context, fp fingerprint.Fingerprint, target *url.URL) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if fp.HasBody {
		body = bytes.NewReader(fp.Body)
	}

	req, err := http.NewRequestWithContext(ctx, fp.Method, target.String(), body)
	if err != nil {
		return nil, err
	}

	for _, h := range fp.Headers {
		// Host 由目标 URL 决定，转发会让反向代理模式指向错误的虚拟主机。
		if strings.EqualFold(h.Name, "Host") {
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}
	if fp.HasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", defaultBodyContentType)
	}
	return req, nil
}
