package contract

import (
	"context"
	"errors"
)

// Raw: 纠错服务返回的原始文本载荷。
// 约束：原样返回，不做清洗/截断/归一化。
type Raw struct {
	Text string
}

// Corrector: 以单个 Segment+Prompt 为单位与纠错服务交互，返回原始文本 Raw。
// 单次调用、同步返回、不重试；应尊重 ctx 取消/超时并及时释放资源。
// 失败时的降级策略属于编排层，不在此处实现。
type Corrector interface {
	Correct(ctx context.Context, seg Segment, p Prompt) (Raw, error)
}

// 最小错误分类（用于上层降级/终止判定）。
var (
	ErrRateLimited     = errors.New("rate limited")
	ErrResponseInvalid = errors.New("response invalid")
	ErrInvalidInput    = errors.New("invalid input")
	ErrSeqInvalid      = errors.New("sequence invalid")
)
