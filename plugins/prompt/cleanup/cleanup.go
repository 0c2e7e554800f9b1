package cleanup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"text/template"

	"ocrclean/pkg/contract"
)

// Options 为 OCR 纠错 PromptBuilder 的最小配置。
// - InlineInstructionTemplate / InstructionTemplatePath: 指令模板（二选一，均为空时使用内置默认模板）。
type Options struct {
	InlineInstructionTemplate string `json:"inline_instruction_template"`
	InstructionTemplatePath   string `json:"instruction_template_path"`
}

// Builder: 以单个 Segment 构造 ChatPrompt（system+user）。
// 运行期不做 I/O；模板在构造期解析。
type Builder struct {
	insT *template.Template
}

// New 创建 OCR 纠错 PromptBuilder。
func New(opts *Options) (*Builder, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}

	// 加载指令模板（构造期 I/O）。
	src := defaultInstructionTemplate
	if o.InlineInstructionTemplate != "" {
		src = o.InlineInstructionTemplate
	} else if o.InstructionTemplatePath != "" {
		b, err := os.ReadFile(o.InstructionTemplatePath)
		if err != nil {
			return nil, fmt.Errorf("instruction template read: %w", err)
		}
		src = string(b)
	}
	tpl, err := template.New("instruction").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("instruction template parse: %w", err)
	}
	return &Builder{insT: tpl}, nil
}

// Build: 基于 Segment 构造 ChatPrompt（system 指令 + user 原文）。
// 片段文本按字节透传，不做任何改写。
func (b *Builder) Build(ctx context.Context, seg contract.Segment) (contract.Prompt, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if seg.Text == "" {
		return nil, fmt.Errorf("prompt: %w: empty segment text", contract.ErrInvalidInput)
	}

	var insBuf bytes.Buffer
	if err := b.insT.Execute(&insBuf, nil); err != nil {
		return nil, fmt.Errorf("instruction render: %w", contract.ErrInvalidInput)
	}

	return contract.ChatPrompt([]contract.Message{
		{Role: "system", Content: insBuf.String()},
		{Role: "user", Content: seg.Text},
	}), nil
}

// 静态接口断言
var _ contract.PromptBuilder = (*Builder)(nil)

// 默认指令模板（与输入文本同语种的法语扫描件为主要场景）。
const defaultInstructionTemplate = `Corrige et reformule légèrement ce texte OCR pour qu'il soit lisible,
sans fautes et sans caractères étranges, mais en gardant le sens original.
Ne change pas la structure ni le contenu, corrige uniquement les erreurs OCR.
Réponds uniquement avec le texte corrigé, sans commentaire.`
