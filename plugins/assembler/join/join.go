package join

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"ocrclean/pkg/contract"
)

// Options: 可选分隔符配置。
type Options struct {
	// Separator: 片段间分隔符；为空时使用默认 "\n\n"。
	Separator string `json:"separator"`
}

type assembler struct {
	sep string
}

// New 从原样 JSON Options 创建线性拼接装配器。
func New(raw json.RawMessage) (contract.Assembler, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
	}
	sep := o.Separator
	if sep == "" {
		sep = "\n\n"
	}
	return &assembler{sep: sep}, nil
}

// Assemble 按 Index 严格升序以分隔符拼接 results.Output；
// 发现 FileID 混入、索引缺口或偏移即返回 ErrSeqInvalid。
func (a *assembler) Assemble(ctx context.Context, fileID contract.FileID, results []contract.SegmentResult) (io.Reader, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if len(results) == 0 {
		return strings.NewReader(""), nil
	}

	// 线性校验：同一 FileID、Index 自 0 连续
	if err := contract.ValidateResults(fileID, results); err != nil {
		return nil, err
	}

	// 零拷贝倾向：拼接多个只读字符串 reader
	rs := make([]io.Reader, 0, 2*len(results)-1)
	for i, r := range results {
		if i > 0 {
			rs = append(rs, strings.NewReader(a.sep))
		}
		rs = append(rs, strings.NewReader(r.Output))
	}
	return io.MultiReader(rs...), nil
}

var _ contract.Assembler = (*assembler)(nil)
