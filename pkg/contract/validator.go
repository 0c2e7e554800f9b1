package contract

// 校验库函数（纯函数，无 I/O）。

// ValidateSegments 校验 Segmenter 产出的最小不变量：
// 同一 FileID、Index 自 0 严格递增、文本非空。
// 违例返回 ErrInvariantViolation。
func ValidateSegments(fileID FileID, segs []Segment) error {
	for i, s := range segs {
		if s.FileID != fileID {
			return ErrInvariantViolation
		}
		if s.Index != Index(i) {
			return ErrInvariantViolation
		}
		if s.Text == "" {
			return ErrInvariantViolation
		}
	}
	return nil
}

// ValidateResults 校验编排层产出的结果序列：
// 与输入片段一一对应（同一 FileID、Index 0..n-1 连续）。
// 违例返回 ErrSeqInvalid。
func ValidateResults(fileID FileID, results []SegmentResult) error {
	for i, r := range results {
		if r.FileID != fileID {
			return ErrSeqInvalid
		}
		if r.Index != Index(i) {
			return ErrSeqInvalid
		}
	}
	return nil
}
