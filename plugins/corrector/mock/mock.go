package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ocrclean/pkg/contract"
)

// Options: 最小调试配置（可选）。
type Options struct {
	Prefix string `json:"prefix"` // prefix 模式下的输出前缀，默认 "MOCK"
	// ResponseMode: 可选的响应模式（用于集成测试与无网络联调）。
	//  - "": 留空或未知值时，默认使用 "echo"。
	//  - "echo": 原样回显片段文本（端到端幂等验证）。
	//  - "prefix": 返回 Prefix + ": " + 片段文本（验证结果确实被替换）。
	//  - "upper": 返回片段文本的大写形式。
	ResponseMode string `json:"response_mode,omitempty"`
}

type Client struct {
	prefix string
	mode   string
}

func New(raw json.RawMessage) (contract.Corrector, error) {
	var o Options
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &o)
	}
	if o.Prefix == "" {
		o.Prefix = "MOCK"
	}
	mode := strings.TrimSpace(o.ResponseMode)
	if mode == "" {
		mode = "echo"
	}
	return &Client{prefix: o.Prefix, mode: mode}, nil
}

// Correct: 仅用于模块/流程调试，不做网络请求。
func (c *Client) Correct(ctx context.Context, seg contract.Segment, p contract.Prompt) (contract.Raw, error) {
	select {
	case <-ctx.Done():
		return contract.Raw{}, ctx.Err()
	default:
	}
	switch c.mode {
	case "echo":
		return contract.Raw{Text: seg.Text}, nil
	case "prefix":
		return contract.Raw{Text: c.prefix + ": " + seg.Text}, nil
	case "upper":
		return contract.Raw{Text: strings.ToUpper(seg.Text)}, nil
	}

	// 兜底：回显 Prompt 摘要（仅当显式配置了未知模式时触发）
	switch v := p.(type) {
	case contract.TextPrompt:
		return contract.Raw{Text: fmt.Sprintf("%s(text): %s", c.prefix, string(v))}, nil
	case contract.ChatPrompt:
		if len(v) == 0 {
			return contract.Raw{Text: fmt.Sprintf("%s(chat): <empty>", c.prefix)}, nil
		}
		// 取第一条消息内容，避免打印过长
		return contract.Raw{Text: fmt.Sprintf("%s(chat:%s): %s", c.prefix, v[0].Role, v[0].Content)}, nil
	default:
		return contract.Raw{Text: fmt.Sprintf("%s(unknown prompt type)", c.prefix)}, nil
	}
}

var _ contract.Corrector = (*Client)(nil)
