package contract

import (
	"context"
	"io"
)

// Assembler: 将单文件的 SegmentResult 序列按 Index 线性装配为最终文本。
// 约束：
//  1. 仅对同一 FileID 的结果进行装配；
//  2. 按 Index 严格升序拼接（0..n-1 连续覆盖）；
//  3. 不引入跨文件状态；
//  4. 序列违规返回 ErrSeqInvalid。
type Assembler interface {
	Assemble(ctx context.Context, fileID FileID, results []SegmentResult) (io.Reader, error)
}
