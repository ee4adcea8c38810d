package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// taskTracker 运行与请求生命周期解耦的后台任务，并为每个任务分配 ID 以便日志追踪。
type taskTracker struct {
	wg       conc.WaitGroup
	inflight atomic.Int64
	timeout  time.Duration
	logger   *logrus.Logger
	metrics  Recorder
}

func newTaskTracker(timeout time.Duration, logger *logrus.Logger, metrics Recorder) *taskTracker {
	return &taskTracker{
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Spawn 启动一个后台任务并立即返回任务 ID。任务使用独立的 context，
// 只受 timeout 约束，不随触发它的请求结束而取消。
func (t *taskTracker) Spawn(fields logrus.Fields, fn func(ctx context.Context) error) string {
	id := uuid.NewString()
	taskFields := logrus.Fields{"task_id": id}
	for k, v := range fields {
		taskFields[k] = v
	}

	t.inflight.Add(1)
	t.metrics.AddRefreshInflight(1)
	t.logger.WithFields(taskFields).Debug("refresh_scheduled")

	t.wg.Go(func() {
		defer func() {
			t.inflight.Add(-1)
			t.metrics.AddRefreshInflight(-1)
		}()

		ctx := context.Background()
		if t.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.timeout)
			defer cancel()
		}

		started := time.Now()
		var err error
		if recovered := panics.Try(func() { err = fn(ctx) }); recovered != nil {
			err = recovered.AsError()
		}

		done := t.logger.WithFields(taskFields).WithField("elapsed_ms", time.Since(started).Milliseconds())
		if err != nil {
			t.metrics.ObserveRefresh("failed")
			done.WithError(err).Warn("refresh_failed")
			return
		}
		t.metrics.ObserveRefresh("ok")
		done.Info("refresh_complete")
	})
	return id
}

// Inflight 返回尚未结束的后台任务数。
func (t *taskTracker) Inflight() int64 {
	return t.inflight.Load()
}

// Wait 等待所有后台任务结束，ctx 到期时提前返回。
// ctx 先到期时，内部等待协程会一直存活到剩余任务结束；
// 每个任务都受 timeout 约束，因此它最终会退出。
func (t *taskTracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
