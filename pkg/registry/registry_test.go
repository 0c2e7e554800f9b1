package registry

import (
	"encoding/json"
	"fmt"
	"testing"
)

// TestStrictUnmarshal 验证严格解码逻辑。
func TestStrictUnmarshal(t *testing.T) {
	type opt struct {
		A int `json:"a"`
	}
	var o opt
	if err := strictUnmarshal(nil, &o); err != nil || o.A != 0 {
		t.Fatalf("nil 输入失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1}`), &o); err != nil || o.A != 1 {
		t.Fatalf("合法 JSON 解析失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1,"b":2}`), &o); err == nil {
		t.Fatalf("未知字段应报错")
	}
}

// TestFactories 遍历注册表入口。
func TestFactories(t *testing.T) {
	t.Run("reader-fs", func(t *testing.T) {
		if _, err := Reader["fs"](json.RawMessage(`{}`)); err != nil {
			t.Fatalf("reader: %v", err)
		}
		if _, err := Reader["fs"](json.RawMessage(`{"x":1}`)); err == nil {
			t.Fatalf("reader 未对未知字段报错")
		}
	})
	t.Run("reader-pdf", func(t *testing.T) {
		if _, err := Reader["pdf"](json.RawMessage(`{"languages":"fra"}`)); err != nil {
			t.Fatalf("pdf reader: %v", err)
		}
		if _, err := Reader["pdf"](json.RawMessage(`{"x":1}`)); err == nil {
			t.Fatalf("pdf reader 未对未知字段报错")
		}
	})
	t.Run("segmenter", func(t *testing.T) {
		if _, err := Segmenter["boundary"](json.RawMessage(`{}`)); err != nil {
			t.Fatalf("segmenter: %v", err)
		}
		if _, err := Segmenter["boundary"](json.RawMessage(`{"max_chars":-1}`)); err == nil {
			t.Fatalf("segmenter 未对非法 max_chars 报错")
		}
		if _, err := Segmenter["boundary"](json.RawMessage(`{"x":1}`)); err == nil {
			t.Fatalf("segmenter 未对未知字段报错")
		}
	})
	t.Run("prompt", func(t *testing.T) {
		if _, err := PromptBuilder["cleanup"](json.RawMessage(`{}`)); err != nil {
			t.Fatalf("prompt: %v", err)
		}
		if _, err := PromptBuilder["cleanup"](json.RawMessage(`{"x":1}`)); err == nil {
			t.Fatalf("prompt 未对未知字段报错")
		}
	})
	t.Run("assembler", func(t *testing.T) {
		if _, err := Assembler["join"](json.RawMessage(`{}`)); err != nil {
			t.Fatalf("assembler: %v", err)
		}
	})
	t.Run("writer", func(t *testing.T) {
		tmp := t.TempDir()
		raw := json.RawMessage([]byte(fmt.Sprintf(`{"output_dir":%q}`, tmp)))
		if _, err := Writer["fs"](raw); err != nil {
			t.Fatalf("writer: %v", err)
		}
		bad := json.RawMessage([]byte(fmt.Sprintf(`{"output_dir":%q,"x":1}`, tmp)))
		if _, err := Writer["fs"](bad); err == nil {
			t.Fatalf("writer 未对未知字段报错")
		}
	})
	t.Run("corrector-mock", func(t *testing.T) {
		if _, err := Corrector["mock"](json.RawMessage(`{}`)); err != nil {
			t.Fatalf("mock: %v", err)
		}
	})
	t.Run("corrector-openai", func(t *testing.T) {
		// 无选项时采用 LM Studio 本地默认，不应报错
		if _, err := Corrector["openai"](json.RawMessage(`{}`)); err != nil {
			t.Fatalf("openai: %v", err)
		}
		if _, err := Corrector["openai"](json.RawMessage(`{"temperature":3.0}`)); err == nil {
			t.Fatalf("openai 未对非法 temperature 报错")
		}
	})
	t.Run("corrector-flaky", func(t *testing.T) {
		if _, err := Corrector["flaky"](json.RawMessage(`{}`)); err != nil {
			t.Fatalf("flaky: %v", err)
		}
	})
}
