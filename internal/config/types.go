package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Inputs []string `json:"inputs"`
	// MaxChars: 单片段最大字符数（rune），注入 segmenter 选项。
	MaxChars int     `json:"max_chars"`
	Logging  Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// LLM Provider 选择与定义。
	LLM      string              `json:"llm"`
	Provider map[string]Provider `json:"provider"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader        string `json:"reader"`
	Segmenter     string `json:"segmenter"`
	PromptBuilder string `json:"prompt_builder"`
	Assembler     string `json:"assembler"`
	Writer        string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader        json.RawMessage `json:"reader"`
	Segmenter     json.RawMessage `json:"segmenter"`
	PromptBuilder json.RawMessage `json:"prompt_builder"`
	Assembler     json.RawMessage `json:"assembler"`
	Writer        json.RawMessage `json:"writer"`
}

// Provider: 命名 provider 定义（corrector 实现 + options）。
type Provider struct {
	Client  string          `json:"client"`
	Options json.RawMessage `json:"options"`
}
