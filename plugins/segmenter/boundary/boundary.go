package boundary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"ocrclean/pkg/contract"
)

// Options 为边界切分 Segmenter 的最小配置。
type Options struct {
	// MaxChars: 单段最大字符数（rune 计数）。0 表示采用默认 1500。
	MaxChars int `json:"max_chars"`
}

// DefaultMaxChars 为未配置时的单段上限。
const DefaultMaxChars = 1500

// Segmenter 实现三级边界切分：段落 → 句子 → 硬切。
// 优先在 "\n\n" 段落边界聚合；超限段落退化为句子边界聚合；
// 超限句子按固定 rune 窗口硬切。所有产出片段 TrimSpace 后非空且 ≤ MaxChars。
type Segmenter struct {
	maxChars int
}

// New 创建边界切分 Segmenter。
func New(opts *Options) (*Segmenter, error) {
	mc := DefaultMaxChars
	if opts != nil && opts.MaxChars != 0 {
		if opts.MaxChars < 0 {
			return nil, fmt.Errorf("segmenter: %w: max_chars must be positive", contract.ErrInvalidInput)
		}
		mc = opts.MaxChars
	}
	return &Segmenter{maxChars: mc}, nil
}

// Split 将单文件字节流切分为有序 Segment 序列。
func (s *Segmenter) Split(ctx context.Context, fileID contract.FileID, r io.Reader) ([]contract.Segment, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(b), "\r\n", "\n")
	if !utf8.ValidString(text) {
		return nil, errors.New("decode error: invalid UTF-8 in input")
	}

	chunks, err := s.splitChunks(ctx, text)
	if err != nil {
		return nil, err
	}
	segs := make([]contract.Segment, 0, len(chunks))
	for i, c := range chunks {
		segs = append(segs, contract.Segment{
			Index:  contract.Index(i),
			FileID: fileID,
			Text:   c,
		})
	}
	return segs, nil
}

// splitChunks 实现三级切分。统一的累积缓冲跨级共享：
// 追加单元前检查 buf + 分隔符 + 单元 是否超限，超限先落盘（TrimSpace 后非空才产出）。
func (s *Segmenter) splitChunks(ctx context.Context, text string) ([]string, error) {
	var chunks []string
	var buf strings.Builder
	bufRunes := 0

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		c := strings.TrimSpace(buf.String())
		buf.Reset()
		bufRunes = 0
		if c != "" {
			chunks = append(chunks, c)
		}
	}
	// append 单元到缓冲；sepRunes 为分隔符 rune 数（缓冲非空时计入）。
	push := func(unit, sep string, unitRunes int) {
		if bufRunes > 0 {
			if bufRunes+len([]rune(sep))+unitRunes > s.maxChars {
				flush()
			} else {
				buf.WriteString(sep)
				bufRunes += len([]rune(sep))
			}
		}
		buf.WriteString(unit)
		bufRunes += unitRunes
	}

	for _, para := range strings.Split(text, "\n\n") {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		pRunes := utf8.RuneCountInString(para)
		if pRunes <= s.maxChars {
			// 段落级聚合
			if strings.TrimSpace(para) == "" {
				continue
			}
			push(para, "\n\n", pRunes)
			continue
		}
		// 句子级聚合
		for _, sent := range splitSentences(para) {
			sRunes := utf8.RuneCountInString(sent)
			if sRunes <= s.maxChars {
				if strings.TrimSpace(sent) == "" {
					continue
				}
				push(sent, " ", sRunes)
				continue
			}
			// 硬切：固定 rune 窗口，切片与句子共用同一缓冲。
			// 满宽切片追加时必然超限而落盘；末尾短切片留在缓冲中，
			// 允许后续句子继续聚合。
			rs := []rune(sent)
			for i := 0; i < len(rs); i += s.maxChars {
				end := i + s.maxChars
				if end > len(rs) {
					end = len(rs)
				}
				push(string(rs[i:end]), " ", end-i)
			}
		}
	}
	flush()
	return chunks, nil
}

// splitSentences 在终止标点（. ! ?）之后紧跟空白处切句，并吞掉整段空白。
// 等价于按 "标点后空白" 边界分割；不依赖语言/区域设置。
// "3.14" 不切（点后非空白），"Hi!! Yo" 在第二个 '!' 后切。
func splitSentences(p string) []string {
	rs := []rune(p)
	var out []string
	start, i := 0, 0
	for i < len(rs) {
		r := rs[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(rs) && unicode.IsSpace(rs[i+1]) {
			out = append(out, string(rs[start:i+1]))
			i++
			for i < len(rs) && unicode.IsSpace(rs[i]) {
				i++
			}
			start = i
			continue
		}
		i++
	}
	if start < len(rs) {
		out = append(out, string(rs[start:]))
	}
	return out
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// 静态接口断言
var _ contract.Segmenter = (*Segmenter)(nil)
