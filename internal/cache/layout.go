package cache

import (
	"errors"
	"fmt"
	"path/filepath"
)

// DefaultShardTiers 默认只有一级 2 字符目录，单层最多 256 个子目录。
var DefaultShardTiers = []int{2}

// ShardLayout 把十六进制摘要切分为多级目录，剩余部分作为文件名。
type ShardLayout struct {
	Root  string
	Tiers []int
}

// NewShardLayout 校验层级宽度；tiers 为空时使用 DefaultShardTiers。
func NewShardLayout(root string, tiers []int) (ShardLayout, error) {
	if root == "" {
		return ShardLayout{}, errors.New("storage path required")
	}
	if len(tiers) == 0 {
		tiers = DefaultShardTiers
	}
	for i, width := range tiers {
		if width <= 0 {
			return ShardLayout{}, fmt.Errorf("shard tier #%d must be positive, got %d", i, width)
		}
	}
	return ShardLayout{
		Root:  root,
		Tiers: append([]int(nil), tiers...),
	}, nil
}

// Resolve 返回 root/<tier1>/<tier2>.../<rest>。同一摘要总是得到同一路径。
func (l ShardLayout) Resolve(digestHex string) (string, error) {
	total := 0
	for _, width := range l.Tiers {
		total += width
	}
	if len(digestHex) <= total {
		return "", fmt.Errorf("digest %q too short for shard tiers %v", digestHex, l.Tiers)
	}
	if !isLowerHex(digestHex) {
		return "", fmt.Errorf("digest %q is not lower-case hex", digestHex)
	}

	parts := make([]string, 0, len(l.Tiers)+2)
	parts = append(parts, l.Root)
	offset := 0
	for _, width := range l.Tiers {
		parts = append(parts, digestHex[offset:offset+width])
		offset += width
	}
	parts = append(parts, digestHex[offset:])
	return filepath.Join(parts...), nil
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
