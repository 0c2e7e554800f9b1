package contract

import (
	"context"
	"io"
)

// Segmenter: 将单文件字节流切分为有序 Segment 序列，并分配 Index（0..n-1）。
// 约束：
// 1) 不跨文件合并；
// 2) Index 严格递增且稳定；
// 3) 每段文本长度（rune 计数）不超过实现配置的上限；
// 4) 不改变文本语义（仅做 CRLF→LF 归一与段级 TrimSpace）；
// 5) 无内部并发、幂等。
type Segmenter interface {
	Split(ctx context.Context, fileID FileID, r io.Reader) ([]Segment, error)
}
