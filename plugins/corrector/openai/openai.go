package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"ocrclean/pkg/contract"
)

// Options: 最小必需配置。默认面向本地 LM Studio 兼容端点。
type Options struct {
	BaseURL        string   `json:"base_url"`        // 例如 http://127.0.0.1:1234/v1
	Model          string   `json:"model"`           // 为空则使用默认
	APIKeyEnv      string   `json:"api_key_env"`     // 优先从环境变量读取
	APIKey         string   `json:"api_key"`         // 明文传入（不推荐，按需用于测试）
	TimeoutSeconds int      `json:"timeout_seconds"` // 单次请求超时（秒），默认 60
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens"` // 响应 token 上限，默认 2048
	// 第三方兼容（最小）：
	EndpointPath       string            `json:"endpoint_path"`        // 覆盖默认 /chat/completions；可为完整 URL（以 http 开头）
	DisableDefaultAuth bool              `json:"disable_default_auth"` // 关闭默认 Authorization: Bearer 注入
	ExtraHeaders       map[string]string `json:"extra_headers"`        // 追加/覆盖请求头（用于 OpenAI 兼容服务）
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = "http://127.0.0.1:1234/v1"
	}
	if o.Model == "" {
		o.Model = "openai/gpt-oss-20b"
	}
	if o.APIKeyEnv == "" {
		o.APIKeyEnv = "OCRCLEAN_API_KEY"
	}
	if o.EndpointPath == "" {
		o.EndpointPath = "/chat/completions"
	}
	if o.Temperature == nil {
		t := 0.2
		o.Temperature = &t
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 2048
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 60
	}
}

type Client struct {
	hc          *http.Client
	url         string
	apiKey      string
	temp        *float64
	maxTokens   int
	model       string
	extraH      map[string]string
	disableAuth bool
	do          func(*http.Request) (*http.Response, error)
}

// New 从原样 JSON 选项构造客户端。
// 本地端点通常无需鉴权：api key 缺失时不注入 Authorization 头。
func New(raw json.RawMessage) (contract.Corrector, error) {
	var opts Options
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, fmt.Errorf("openai options: %w", err)
		}
	}
	opts.defaults()
	if *opts.Temperature < 0 || *opts.Temperature > 1 {
		return nil, fmt.Errorf("openai: %w: temperature must be in [0,1]", contract.ErrInvalidInput)
	}
	if opts.MaxTokens < 0 {
		return nil, fmt.Errorf("openai: %w: max_tokens must be positive", contract.ErrInvalidInput)
	}
	key := opts.APIKey
	if key == "" && opts.APIKeyEnv != "" {
		key = os.Getenv(opts.APIKeyEnv)
	}
	hc := &http.Client{Timeout: time.Duration(opts.TimeoutSeconds) * time.Second}
	// 解析 URL：允许 endpoint_path 为完整 URL
	fullURL := opts.EndpointPath
	if !(strings.HasPrefix(fullURL, "http://") || strings.HasPrefix(fullURL, "https://")) {
		// 健壮拼接，确保恰好一个斜杠
		base := strings.TrimRight(opts.BaseURL, "/")
		path := strings.TrimLeft(opts.EndpointPath, "/")
		fullURL = base + "/" + path
	}
	return &Client{
		hc:          hc,
		url:         fullURL,
		apiKey:      key,
		temp:        opts.Temperature,
		maxTokens:   opts.MaxTokens,
		model:       opts.Model,
		extraH:      opts.ExtraHeaders,
		disableAuth: opts.DisableDefaultAuth || key == "",
		do:          hc.Do,
	}, nil
}

type oaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type oaReq struct {
	Model       string      `json:"model"`
	Messages    []oaMessage `json:"messages"`
	Temperature *float64    `json:"temperature,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
}
type oaResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// upstreamError 实现 net.Error，用于将 HTTP 上游 5xx/408 映射为网络类错误，便于分类。
type upstreamError struct {
	status int
	msg    string
}

func (e upstreamError) Error() string           { return fmt.Sprintf("openai upstream %d: %s", e.status, e.msg) }
func (e upstreamError) Timeout() bool           { return e.status == http.StatusRequestTimeout }
func (e upstreamError) Temporary() bool         { return e.status/100 == 5 }
func (e upstreamError) UpstreamStatus() int     { return e.status }
func (e upstreamError) UpstreamMessage() string { return e.msg }

// statusError 将 5xx/408 之外的非 2xx 状态映射为协议类错误（可降级），
// 保留上游状态与消息用于诊断。
type statusError struct {
	status int
	msg    string
}

func (e statusError) Error() string           { return fmt.Sprintf("openai upstream %d: %s", e.status, e.msg) }
func (e statusError) Unwrap() error           { return contract.ErrResponseInvalid }
func (e statusError) UpstreamStatus() int     { return e.status }
func (e statusError) UpstreamMessage() string { return e.msg }

func (c *Client) encodePrompt(p contract.Prompt) ([]byte, error) {
	var req oaReq
	req.Model = c.model
	req.Temperature = c.temp
	req.MaxTokens = c.maxTokens
	switch v := p.(type) {
	case contract.TextPrompt:
		req.Messages = []oaMessage{{Role: "user", Content: string(v)}}
	case contract.ChatPrompt:
		req.Messages = make([]oaMessage, 0, len(v))
		for _, m := range v {
			req.Messages = append(req.Messages, oaMessage{Role: m.Role, Content: m.Content})
		}
	default:
		return nil, contract.ErrInvalidInput
	}
	return json.Marshal(&req)
}

// Correct: 单次调用，同步返回；不在客户端内重试。
func (c *Client) Correct(ctx context.Context, seg contract.Segment, p contract.Prompt) (contract.Raw, error) {
	_ = seg // 请求体由 Prompt 决定；Segment 仅用于上层关联
	body, err := c.encodePrompt(p)
	if err != nil {
		if errors.Is(err, contract.ErrInvalidInput) {
			return contract.Raw{}, err
		}
		return contract.Raw{}, fmt.Errorf("encode: %v: %w", err, contract.ErrInvalidInput)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return contract.Raw{}, fmt.Errorf("new request: %v: %w", err, contract.ErrInvalidInput)
	}
	if !c.disableAuth {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.extraH {
		if k == "" {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := c.do(req)
	if err != nil {
		// 仅当 ctx 确实终止时归一为 ctx.Err()；否则透传传输层错误
		if cerr := ctx.Err(); cerr != nil {
			return contract.Raw{}, cerr
		}
		return contract.Raw{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return contract.Raw{}, contract.ErrRateLimited
	}
	if resp.StatusCode/100 != 2 {
		// 读取少量响应体辅助定位
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		msg := strings.TrimSpace(string(slurp))
		// 分类：5xx/408 为网络类；其余非 2xx 为协议类。两类均可降级。
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode/100 == 5 {
			return contract.Raw{}, upstreamError{status: resp.StatusCode, msg: msg}
		}
		return contract.Raw{}, statusError{status: resp.StatusCode, msg: msg}
	}
	var or oaResp
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&or); err != nil {
		return contract.Raw{}, fmt.Errorf("decode: %w", contract.ErrResponseInvalid)
	}
	if len(or.Choices) == 0 || strings.TrimSpace(or.Choices[0].Message.Content) == "" {
		return contract.Raw{}, contract.ErrResponseInvalid
	}
	return contract.Raw{Text: or.Choices[0].Message.Content}, nil
}

// 静态接口断言
var _ contract.Corrector = (*Client)(nil)
