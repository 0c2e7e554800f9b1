package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 使用 mock 纠错客户端（本地/离线调试友好），并给出 LM Studio 的 openai 示例；
// - 默认输入为 STDIN（"-"），Writer 输出到 ./out 目录并带 _corrected 后缀；
// - 组件名采用仓库内置实现；
// - 选项给出安全中性默认值。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Inputs:     []string{"-"},
		MaxChars:   d.MaxChars,
		Logging:    Logging{Level: "info"},
		Components: d.Components,
		LLM:        "mock",
		Provider: map[string]Provider{
			"mock": {
				Client: "mock",
				// 包含所有 mock 选项键（可为空）
				Options: json.RawMessage(`{"prefix":"","response_mode":""}`),
			},
			"openai": {
				Client: "openai",
				// 覆盖全部 OpenAI 兼容选项键；空值回落到 LM Studio 本地默认
				Options: json.RawMessage(`{
  "base_url": "",
  "model": "",
  "api_key_env": "",
  "api_key": "",
  "timeout_seconds": 60,
  "temperature": null,
  "max_tokens": 2048,
  "endpoint_path": "",
  "disable_default_auth": false,
  "extra_headers": {}
}`),
			},
		},
	}
	// Options：包含所有键（值可为空/默认），确保键存在。
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git", "node_modules", "vendor"],
  "allow_exts": [".txt"]
}`)
	// segmenter 的 max_chars 由顶层 max_chars 注入；此处留空以免固化覆盖
	cfg.Options.Segmenter = json.RawMessage(`{}`)
	cfg.Options.PromptBuilder = json.RawMessage(`{
  "inline_instruction_template": "",
  "instruction_template_path": ""
}`)
	// join 装配器仅有分隔符一项，默认空行
	cfg.Options.Assembler = json.RawMessage(`{
  "separator": "\n\n"
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "suffix": "_corrected",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}
