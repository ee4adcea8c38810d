package cache

// Recorder 接收缓存引擎的计数事件，由 metrics 包提供 Prometheus 实现。
type Recorder interface {
	ObserveQuery(outcome string)
	ObserveQueryFailure(reason string)
	ObserveRefresh(result string)
	AddRefreshInflight(delta float64)
	ObserveStoreWriteFailure()
}

type nopRecorder struct{}

func (nopRecorder) ObserveQuery(string)        {}
func (nopRecorder) ObserveQueryFailure(string) {}
func (nopRecorder) ObserveRefresh(string)      {}
func (nopRecorder) AddRefreshInflight(float64) {}
func (nopRecorder) ObserveStoreWriteFailure()  {}
