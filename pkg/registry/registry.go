package registry

import (
	"bytes"
	"encoding/json"

	"ocrclean/pkg/contract"
	ajoin "ocrclean/plugins/assembler/join"
	flaky "ocrclean/plugins/corrector/flaky"
	mock "ocrclean/plugins/corrector/mock"
	oai "ocrclean/plugins/corrector/openai"
	ppt "ocrclean/plugins/prompt/cleanup"
	rfs "ocrclean/plugins/reader/filesystem"
	rpdf "ocrclean/plugins/reader/pdf"
	sbnd "ocrclean/plugins/segmenter/boundary"
	wfs "ocrclean/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewSegmenter 工厂签名：接收原样 JSON Options。
type NewSegmenter func(raw json.RawMessage) (contract.Segmenter, error)

// NewPromptBuilder 工厂签名：接收原样 JSON Options。
type NewPromptBuilder func(raw json.RawMessage) (contract.PromptBuilder, error)

// NewCorrector 工厂签名：接收原样 JSON Options。
type NewCorrector func(raw json.RawMessage) (contract.Corrector, error)

// NewAssembler 工厂签名：接收原样 JSON Options。
type NewAssembler func(raw json.RawMessage) (contract.Assembler, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN 纯文本 Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
	// pdf: PDF 文本提取 Reader（可选 OCR 回退）
	"pdf": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rpdf.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rpdf.New(&opts), nil
	},
}

// Segmenter 工厂注册表。
var Segmenter = map[string]NewSegmenter{
	// boundary: 段落→句子→硬切三级边界切分
	"boundary": func(raw json.RawMessage) (contract.Segmenter, error) {
		var opts sbnd.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sbnd.New(&opts)
	},
}

// PromptBuilder 工厂注册表。
var PromptBuilder = map[string]NewPromptBuilder{
	// cleanup: OCR 纠错指令 PromptBuilder（system 指令 + user 原文）
	"cleanup": func(raw json.RawMessage) (contract.PromptBuilder, error) {
		var opts ppt.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ppt.New(&opts)
	},
}

// Corrector 工厂注册表。
var Corrector = map[string]NewCorrector{
	"openai": func(raw json.RawMessage) (contract.Corrector, error) { return oai.New(raw) },
	"mock":   func(raw json.RawMessage) (contract.Corrector, error) { return mock.New(raw) },
	"flaky":  func(raw json.RawMessage) (contract.Corrector, error) { return flaky.New(raw) },
}

// Assembler 工厂注册表。
var Assembler = map[string]NewAssembler{
	// join: 按 Index 升序以分隔符拼接（默认 "\n\n"）
	"join": func(raw json.RawMessage) (contract.Assembler, error) { return ajoin.New(raw) },
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}
