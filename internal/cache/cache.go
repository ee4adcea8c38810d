package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/stalecache/internal/fingerprint"
	"github.com/any-hub/stalecache/internal/logging"
)

// Outcome 是一次查询的分类结果，每个完成的查询恰好属于其中之一。
type Outcome string

const (
	OutcomeMiss            Outcome = "MISS"
	OutcomeHit             Outcome = "HIT"
	OutcomeHitAsyncRefresh Outcome = "HIT_ASYNC_REFRESH"
)

// Options 汇总构造 Cache 所需的依赖，Fetcher 与 Store 由调用方创建一次后注入。
type Options struct {
	Store   Store
	Layout  ShardLayout
	Fetcher Fetcher
	// Expiry 为 0 时使用 DefaultExpiry。
	Expiry time.Duration
	// RefreshTimeout 约束后台刷新任务，为 0 时只依赖 Fetcher 自身的超时。
	RefreshTimeout time.Duration
	Logger         *logrus.Logger
	Metrics        Recorder
	// Now 用于测试注入时钟。
	Now func() time.Time
}

// Result 是一次查询返回给调用方的条目及其分类。
type Result struct {
	Entry   *Entry
	Outcome Outcome
	Digest  fingerprint.Digest
	// RefreshTaskID 仅在 OutcomeHitAsyncRefresh 时非空。
	RefreshTaskID string
}

// Cache 是缓存引擎的对外入口。
type Cache struct {
	layout    ShardLayout
	store     Store
	refresher *refresher
	tasks     *taskTracker
	logger    *logrus.Logger
	metrics   Recorder
}

// New 校验依赖并组装 Cache。
func New(opts Options) (*Cache, error) {
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if opts.Layout.Root == "" {
		return nil, errors.New("shard layout root is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}

	freshness := NewFreshnessPolicy(opts.Store, opts.Expiry, logger)
	if opts.Now != nil {
		freshness.now = opts.Now
	}
	tasks := newTaskTracker(opts.RefreshTimeout, logger, metrics)

	return &Cache{
		layout: opts.Layout,
		store:  opts.Store,
		refresher: &refresher{
			store:     opts.Store,
			fetcher:   opts.Fetcher,
			freshness: freshness,
			tasks:     tasks,
			logger:    logger,
			metrics:   metrics,
		},
		tasks:   tasks,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Query 计算摘要与分片路径并执行 stale-while-revalidate 流程。
// 未命中时阻塞等待上游；过期命中时立即返回旧条目，刷新在后台进行。
func (c *Cache) Query(ctx context.Context, fp fingerprint.Fingerprint) (*Result, error) {
	digest := fingerprint.Encode(fp)
	path, err := c.layout.Resolve(digest.Hex())
	if err != nil {
		return nil, err
	}

	res, err := c.refresher.run(ctx, fp, path)
	if err != nil {
		c.logFailure(fp, digest, err)
		return nil, err
	}

	c.logQuery(fp, digest, res)
	return &Result{
		Entry:         res.entry,
		Outcome:       res.outcome,
		Digest:        digest,
		RefreshTaskID: res.taskID,
	}, nil
}

// PathFor 返回 fingerprint 对应的条目文件路径。
func (c *Cache) PathFor(fp fingerprint.Fingerprint) (string, error) {
	return c.layout.Resolve(fingerprint.Encode(fp).Hex())
}

// Purge 按十六进制摘要删除条目，供人工清理使用。
func (c *Cache) Purge(digestHex string) error {
	path, err := c.layout.Resolve(digestHex)
	if err != nil {
		return err
	}
	return c.store.Remove(path)
}

// Expiry 返回生效的过期时长。
func (c *Cache) Expiry() time.Duration {
	return c.refresher.freshness.Expiry()
}

// InflightRefreshes 返回仍在运行的后台刷新数量。
func (c *Cache) InflightRefreshes() int64 {
	return c.tasks.Inflight()
}

// Close 等待后台刷新结束，ctx 到期时放弃等待。
func (c *Cache) Close(ctx context.Context) error {
	return c.tasks.Wait(ctx)
}

func (c *Cache) logQuery(fp fingerprint.Fingerprint, digest fingerprint.Digest, res lookupResult) {
	c.metrics.ObserveQuery(string(res.outcome))
	fields := logging.QueryFields(string(res.outcome), fp.Method, fp.URL, res.entry.StatusCode, len(res.entry.Body))
	fields["digest"] = digest.Hex()
	if res.taskID != "" {
		fields["task_id"] = res.taskID
	}
	c.logger.WithFields(fields).Info("cache_query")
}

func (c *Cache) logFailure(fp fingerprint.Fingerprint, digest fingerprint.Digest, err error) {
	reason := "internal"
	var fetchErr *FetchError
	var readErr *StorageReadError
	switch {
	case errors.As(err, &fetchErr):
		reason = "fetch"
	case errors.As(err, &readErr):
		reason = "storage_read"
	}
	c.metrics.ObserveQueryFailure(reason)
	c.logger.WithError(err).WithFields(logrus.Fields{
		"action": "cache_query",
		"method": fp.Method,
		"url":    fp.URL,
		"digest": digest.Hex(),
		"reason": reason,
	}).Error("cache_query_failed")
}
