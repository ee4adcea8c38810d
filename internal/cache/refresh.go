package cache

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/stalecache/internal/fingerprint"
)

// Fetcher 执行真正的上游请求。实现需返回白名单内的响应头与完整正文。
type Fetcher interface {
	Fetch(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, error)

// Fetch makes FetcherFunc satisfy Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, error) {
	return f(ctx, fp)
}

// refresher 实现 stale-while-revalidate 状态机：
//
//	Lookup → HitFresh                    返回条目
//	Lookup → HitStale → (后台) Fetch → Write  先返回旧条目
//	Lookup → Miss → Fetch → Write        返回新条目
//
// 不同请求之间互不协调，同一个 key 可能被并发回源。
type refresher struct {
	store     Store
	fetcher   Fetcher
	freshness FreshnessPolicy
	tasks     *taskTracker
	logger    *logrus.Logger
	metrics   Recorder
}

// lookup 的结果，taskID 仅在 HIT_ASYNC_REFRESH 时非空。
type lookupResult struct {
	entry   *Entry
	outcome Outcome
	taskID  string
}

func (r *refresher) run(ctx context.Context, fp fingerprint.Fingerprint, path string) (lookupResult, error) {
	exists, err := r.store.Exists(path)
	if err != nil {
		return lookupResult{}, err
	}
	if !exists {
		return r.miss(ctx, fp, path)
	}

	entry, err := r.store.Read(ctx, path)
	if errors.Is(err, ErrNotFound) {
		// 条目在 Exists 与 Read 之间被人工删除。
		return r.miss(ctx, fp, path)
	}
	if err != nil {
		return lookupResult{}, err
	}

	if !r.freshness.Expired(path) {
		return lookupResult{entry: entry, outcome: OutcomeHit}, nil
	}

	taskID := r.spawnRefresh(fp, path)
	return lookupResult{entry: entry, outcome: OutcomeHitAsyncRefresh, taskID: taskID}, nil
}

func (r *refresher) miss(ctx context.Context, fp fingerprint.Fingerprint, path string) (lookupResult, error) {
	entry, err := r.fetch(ctx, fp)
	if err != nil {
		return lookupResult{}, err
	}

	// 响应已经确定，写入失败只记录日志；也不随请求取消而中断。
	if err := r.store.Write(context.WithoutCancel(ctx), path, entry); err != nil {
		r.metrics.ObserveStoreWriteFailure()
		r.logger.WithError(err).WithFields(logrus.Fields{
			"action": "cache_store",
			"path":   path,
			"url":    fp.URL,
		}).Warn("cache_store_failed")
	}
	return lookupResult{entry: entry, outcome: OutcomeMiss}, nil
}

func (r *refresher) spawnRefresh(fp fingerprint.Fingerprint, path string) string {
	fields := logrus.Fields{
		"action": "cache_refresh",
		"method": fp.Method,
		"url":    fp.URL,
		"path":   path,
	}
	return r.tasks.Spawn(fields, func(ctx context.Context) error {
		entry, err := r.fetch(ctx, fp)
		if err != nil {
			return err
		}
		if err := r.store.Write(ctx, path, entry); err != nil {
			r.metrics.ObserveStoreWriteFailure()
			return err
		}
		return nil
	})
}

func (r *refresher) fetch(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, error) {
	entry, err := r.fetcher.Fetch(ctx, fp)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return nil, err
		}
		return nil, &FetchError{Method: fp.Method, URL: fp.URL, Err: err}
	}
	if entry == nil {
		return nil, &FetchError{Method: fp.Method, URL: fp.URL, Err: errors.New("empty upstream response")}
	}
	if entry.Headers == nil {
		entry.Headers = map[string]string{}
	}
	if entry.Body == nil {
		entry.Body = []byte{}
	}
	return entry, nil
}
