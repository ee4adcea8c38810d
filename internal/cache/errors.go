package cache

import "fmt"

// FetchError 表示上游不可达、超时或传输层失败。
type FetchError struct {
	Method string
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StorageReadError 表示条目文件存在但无法读取或解析。
type StorageReadError struct {
	Path string
	Err  error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("read cache entry %s: %v", e.Path, e.Err)
}

func (e *StorageReadError) Unwrap() error {
	return e.Err
}

// StorageWriteError 表示创建目录、写临时文件或 rename 失败。
type StorageWriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("write cache entry %s (%s): %v", e.Path, e.Op, e.Err)
}

func (e *StorageWriteError) Unwrap() error {
	return e.Err
}
