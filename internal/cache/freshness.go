package cache

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultExpiry 是条目被视为过期前的默认时长。
const DefaultExpiry = 7 * 24 * time.Hour

// FreshnessPolicy 根据条目文件的 ModTime 判断是否需要后台刷新。
type FreshnessPolicy struct {
	store  Store
	expiry time.Duration
	now    func() time.Time
	logger *logrus.Logger
}

// NewFreshnessPolicy 构造过期判断器，默认使用 time.Now 作为时钟。
func NewFreshnessPolicy(store Store, expiry time.Duration, logger *logrus.Logger) FreshnessPolicy {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return FreshnessPolicy{
		store:  store,
		expiry: expiry,
		now:    time.Now,
		logger: logger,
	}
}

// Expiry 返回生效的过期时长。
func (p FreshnessPolicy) Expiry() time.Duration {
	return p.expiry
}

// Expired 在 now - ModTime 严格大于 expiry 时返回 true。
// 无法获取 ModTime 时按未过期处理并记录告警。
func (p FreshnessPolicy) Expired(path string) bool {
	modTime, err := p.store.LastModified(path)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"action": "cache_freshness",
			"path":   path,
		}).Warn("cache_mtime_unavailable")
		return false
	}
	return p.now().Sub(modTime) > p.expiry
}
