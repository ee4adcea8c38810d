package cache

import (
	"context"
	"errors"
	"time"
)

// Store 负责缓存条目的磁盘读写。磁盘布局遵循：
//
//	<StoragePath>/<digest[0:2]>/<digest[2:]>    # 序列化后的 Entry
//
// 条目的新鲜度由文件 ModTime 决定，不在 Entry 内部记录。
type Store interface {
	// Exists 判断 path 上是否存在条目文件，目录不算条目。
	Exists(path string) (bool, error)

	// Read 解码条目。文件不存在返回 ErrNotFound，内容损坏返回 *StorageReadError。
	Read(ctx context.Context, path string) (*Entry, error)

	// Write 将条目整体写入临时文件后 rename 覆盖目标，失败时清理临时文件并返回 *StorageWriteError。
	Write(ctx context.Context, path string, entry *Entry) error

	// LastModified 返回条目文件的修改时间，即最近一次成功写入的时间。
	LastModified(path string) (time.Time, error)

	// Remove 删除条目文件，仅供人工清理使用；文件不存在不视为错误。
	Remove(path string) error
}

// Entry 是一次上游响应的持久化形态，只保留白名单中的响应头。
type Entry struct {
	StatusCode int               `json:"statusCode" cbor:"statusCode"`
	Headers    map[string]string `json:"headers" cbor:"headers"`
	Body       []byte            `json:"body" cbor:"body"`
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")
