package contract

import (
	"context"
	"io"
)

// Reader: 输入源抽象（文件/目录/STDIN/PDF）。
// 约束：
// 1) 按文件维度回调，流式提供 UTF-8 文本字节流；
// 2) FileID 稳定且去平台差异化；
// 3) 格式相关的文本提取（如 PDF）在实现内部完成，下游只见文本；
// 4) 不在内部起并发。
type Reader interface {
	Iterate(ctx context.Context, roots []string, yield func(fileID FileID, r io.ReadCloser) error) error
}
