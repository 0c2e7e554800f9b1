package flaky

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"

	"ocrclean/pkg/contract"
)

// Options 定义可选项。
type Options struct {
	Prefix string `json:"prefix"`
	// Mode: 失败注入模式。
	//  - "fail_first"（默认）: 第一次限流、第二次空响应、之后正常。
	//  - "fail_all": 每次都返回超时类网络错误（验证整文件降级：输出等于输入）。
	Mode string `json:"mode,omitempty"`
	// LogPath: 调试用日志文件，记录每次调用结果（可选）。
	LogPath string `json:"log_path,omitempty"`
}

// Client 是带故障注入的 Corrector 实现，用于联调降级路径。
type Client struct {
	prefix  string
	mode    string
	logPath string
	count   atomic.Int32
}

// New 构造 Client。
func New(raw json.RawMessage) (contract.Corrector, error) {
	var o Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
	}
	if o.Prefix == "" {
		o.Prefix = "FLAKY"
	}
	if o.Mode == "" {
		o.Mode = "fail_first"
	}
	c := &Client{prefix: o.Prefix, mode: o.Mode, logPath: o.LogPath}
	return c, nil
}

func (c *Client) log(s string) {
	if c.logPath == "" {
		return
	}
	// 追加写入，忽略错误。
	_ = appendFile(c.logPath, s+"\n")
}

// appendFile 以追加方式写入。
func appendFile(path, s string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(s)
	return err
}

// timeoutError 实现 net.Error，模拟上游超时。
type timeoutError struct{}

func (timeoutError) Error() string           { return "flaky upstream 408: simulated timeout" }
func (timeoutError) Timeout() bool           { return true }
func (timeoutError) Temporary() bool         { return true }
func (timeoutError) UpstreamStatus() int     { return http.StatusRequestTimeout }
func (timeoutError) UpstreamMessage() string { return "simulated timeout" }

// Correct 实现 contract.Corrector。
func (c *Client) Correct(ctx context.Context, seg contract.Segment, p contract.Prompt) (contract.Raw, error) {
	if c.mode == "fail_all" {
		c.log("timeout")
		return contract.Raw{}, timeoutError{}
	}
	switch c.count.Add(1) {
	case 1:
		c.log("rate_limited")
		return contract.Raw{}, contract.ErrRateLimited
	case 2:
		c.log("empty_response")
		return contract.Raw{}, contract.ErrResponseInvalid
	default:
		c.log("ok")
		return contract.Raw{Text: fmt.Sprintf("%s: %s", c.prefix, seg.Text)}, nil
	}
}

var _ contract.Corrector = (*Client)(nil)
