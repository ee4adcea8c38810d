package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// NewStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
func NewStore(basePath string, codec Codec) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	if codec == nil {
		codec = jsonCodec{}
	}

	return &fileStore{
		basePath: abs,
		codec:    codec,
	}, nil
}

// fileStore 不对同一路径加锁：并发写入各自落到独立临时文件，最后一次 rename 生效。
type fileStore struct {
	basePath string
	codec    Codec
}

func (s *fileStore) Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, &StorageReadError{Path: path, Err: err}
	}
	return !info.IsDir(), nil
}

func (s *fileStore) Read(ctx context.Context, path string) (*Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if isNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, &StorageReadError{Path: path, Err: err}
	}

	entry, err := decodeEntry(data)
	if err != nil {
		return nil, &StorageReadError{Path: path, Err: err}
	}
	return entry, nil
}

func (s *fileStore) Write(ctx context.Context, path string, entry *Entry) error {
	if entry == nil {
		return &StorageWriteError{Path: path, Op: "encode", Err: errors.New("nil entry")}
	}
	data, err := s.codec.Marshal(entry)
	if err != nil {
		return &StorageWriteError{Path: path, Op: "encode", Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StorageWriteError{Path: path, Op: "mkdir", Err: err}
	}

	tempFile, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return &StorageWriteError{Path: path, Op: "create_temp", Err: err}
	}
	tempName := tempFile.Name()

	_, err = copyWithContext(ctx, tempFile, bytes.NewReader(data))
	if err == nil {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return &StorageWriteError{Path: path, Op: "write_temp", Err: err}
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return &StorageWriteError{Path: path, Op: "rename", Err: err}
	}
	return nil
}

func (s *fileStore) LastModified(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (s *fileStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// isNotExist 把分片目录被同名文件占用（ENOTDIR）也视为条目不存在。
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
