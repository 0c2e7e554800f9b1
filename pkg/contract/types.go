package contract

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Index: 单文件内稳定递增的片段索引（0..n-1）。
type Index int64

// Segment: 原子处理单元（不可跨文件）。
// 约束：
// - FileID 一致；
// - Index 自 0 严格递增；
// - Text 非空且去除首尾空白后产出（由 Segmenter 保证）。
type Segment struct {
	Index  Index
	FileID FileID
	Text   string
}

// SegmentResult: 单片段处理结果。
// Corrected=false 表示纠错失败后按原文降级，Reason 记录失败分类（仅降级时非空）。
// 同一 FileID 内按 Index 严格升序、与输入一一对应。
type SegmentResult struct {
	Index     Index
	FileID    FileID
	Output    string
	Corrected bool
	Reason    string
}
