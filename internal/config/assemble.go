package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ocrclean/internal/pipeline"
	"ocrclean/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("config: inputs empty")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return errors.New("config: input path cannot be empty")
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return errors.New("config: '-' cannot be mixed with other roots")
	}
	if cfg.MaxChars <= 0 {
		return errors.New("config: max_chars must be > 0")
	}
	if cfg.LLM == "" {
		return errors.New("config: llm not set")
	}
	prov, ok := cfg.Provider[cfg.LLM]
	if !ok {
		return fmt.Errorf("config: provider %q not found", cfg.LLM)
	}
	if prov.Client == "" {
		return fmt.Errorf("config: provider %q missing client", cfg.LLM)
	}
	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	if name := effName(cfg.Components.Reader, Defaults().Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	if name := effName(cfg.Components.Segmenter, Defaults().Components.Segmenter); registry.Segmenter[name] == nil {
		return fmt.Errorf("config: segmenter %q not registered", name)
	}
	if name := effName(cfg.Components.PromptBuilder, Defaults().Components.PromptBuilder); registry.PromptBuilder[name] == nil {
		return fmt.Errorf("config: prompt_builder %q not registered", name)
	}
	if name := effName(cfg.Components.Assembler, Defaults().Components.Assembler); registry.Assembler[name] == nil {
		return fmt.Errorf("config: assembler %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, Defaults().Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	if registry.Corrector[prov.Client] == nil {
		return fmt.Errorf("config: corrector %q not registered", prov.Client)
	}
	return nil
}

// Assemble 构造 pipeline 的 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 有效名称
	d := Defaults()
	rn := effName(cfg.Components.Reader, d.Components.Reader)
	sn := effName(cfg.Components.Segmenter, d.Components.Segmenter)
	pn := effName(cfg.Components.PromptBuilder, d.Components.PromptBuilder)
	an := effName(cfg.Components.Assembler, d.Components.Assembler)
	wn := effName(cfg.Components.Writer, d.Components.Writer)

	// 构造实例
	r, err := registry.Reader[rn](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	segRaw, err := injectMaxChars(cfg.Options.Segmenter, cfg.MaxChars)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	s, err := registry.Segmenter[sn](segRaw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	pb, err := registry.PromptBuilder[pn](cfg.Options.PromptBuilder)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	asm, err := registry.Assembler[an](cfg.Options.Assembler)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	w, err := registry.Writer[wn](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 纠错客户端
	prov := cfg.Provider[cfg.LLM]
	corr, err := registry.Corrector[prov.Client](prov.Options)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	comp := pipeline.Components{
		Reader:        r,
		Segmenter:     s,
		PromptBuilder: pb,
		Corrector:     corr,
		Assembler:     asm,
		Writer:        w,
	}
	set := pipeline.Settings{
		Inputs: cloneStrings(cfg.Inputs),
		// Observer 由调用方（cmd）注入。
	}
	return comp, set, nil
}

// injectMaxChars 将顶层 max_chars 注入 segmenter 选项；
// 选项中显式给出的 max_chars 优先。
func injectMaxChars(raw json.RawMessage, maxChars int) (json.RawMessage, error) {
	m := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("config: segmenter options: %w", err)
		}
	}
	if _, ok := m["max_chars"]; !ok {
		m["max_chars"] = maxChars
	}
	return json.Marshal(m)
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
