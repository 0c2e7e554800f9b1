package testdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cfgpkg "ocrclean/internal/config"
	"ocrclean/internal/pipeline"
)

// expectedReassembly 按切分/装配的规范化规则构造期望输出：
// 空行分段、去首尾空白、以空行拼接。
func expectedReassembly(t *testing.T, inPath, prefix string) string {
	b, err := os.ReadFile(inPath)
	if err != nil {
		t.Fatalf("read input: %v", err)
	}
	var parts []string
	for _, p := range strings.Split(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if prefix != "" {
			p = prefix + ": " + p
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "\n\n")
}

func baseConfig(input, outDir string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{input}
	// 每个段落单独成段（段落 <150 字符、两两相加超限）
	cfg.MaxChars = 150
	cfg.Logging.Level = "error"
	cfg.Provider = map[string]cfgpkg.Provider{}
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"output_dir":%q,"suffix":"_corrected","atomic":false,"flat":true,"perm_file":0,"perm_dir":0,"buf_size":65536}`, outDir))
	return cfg
}

func runPipeline(t *testing.T, cfg cfgpkg.Config) (pipeline.Summary, error) {
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return pipeline.Summary{}, err
	}
	return pipeline.Run(context.Background(), comp, set, nil)
}

// 端到端：mock echo 客户端，输出等于输入的规范化重组
func TestE2EEcho(t *testing.T) {
	in := filepath.Join("files", "sample.txt")
	outDir := t.TempDir()
	cfg := baseConfig(in, outDir)
	cfg.LLM = "mock"
	cfg.Provider["mock"] = cfgpkg.Provider{
		Client:  "mock",
		Options: json.RawMessage(`{"response_mode":"echo"}`),
	}
	sum, err := runPipeline(t, cfg)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if sum.Files != 1 || sum.Segments != 3 || sum.Corrected != 3 {
		t.Fatalf("summary: %+v", sum)
	}
	got, err := os.ReadFile(filepath.Join(outDir, "sample_corrected.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := expectedReassembly(t, in, "")
	if string(got) != want {
		t.Fatalf("output mismatch\nwant:\n%s\ngot:\n%s", want, got)
	}
	// JSONL 边车：逐段一行审计记录
	side, err := os.ReadFile(filepath.Join(outDir, "sample_corrected.txt.jsonl"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(side)), "\n")
	if len(lines) != 3 {
		t.Fatalf("sidecar rows: %d", len(lines))
	}
	var row struct {
		Index     int64 `json:"index"`
		CharsSrc  int   `json:"chars_src"`
		CharsDst  int   `json:"chars_dst"`
		Corrected bool  `json:"corrected"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &row); err != nil {
		t.Fatalf("sidecar row: %v", err)
	}
	if row.Index != 0 || !row.Corrected || row.CharsSrc == 0 || row.CharsSrc != row.CharsDst {
		t.Fatalf("sidecar row content: %+v", row)
	}
}

// 端到端：幂等性——两次运行产出相同字节
func TestE2EIdempotent(t *testing.T) {
	in := filepath.Join("files", "sample.txt")
	outDir1 := t.TempDir()
	outDir2 := t.TempDir()
	for _, d := range []string{outDir1, outDir2} {
		cfg := baseConfig(in, d)
		cfg.LLM = "mock"
		cfg.Provider["mock"] = cfgpkg.Provider{Client: "mock", Options: json.RawMessage(`{"response_mode":"echo"}`)}
		if _, err := runPipeline(t, cfg); err != nil {
			t.Fatalf("pipeline: %v", err)
		}
	}
	a, _ := os.ReadFile(filepath.Join(outDir1, "sample_corrected.txt"))
	b, _ := os.ReadFile(filepath.Join(outDir2, "sample_corrected.txt"))
	if string(a) != string(b) {
		t.Fatalf("runs differ")
	}
}

// 端到端：全部失败（网络类）→ 整文件降级为原文，运行不报错
func TestE2EAllDegraded(t *testing.T) {
	in := filepath.Join("files", "sample.txt")
	outDir := t.TempDir()
	cfg := baseConfig(in, outDir)
	cfg.LLM = "flaky"
	cfg.Provider["flaky"] = cfgpkg.Provider{
		Client:  "flaky",
		Options: json.RawMessage(`{"mode":"fail_all"}`),
	}
	sum, err := runPipeline(t, cfg)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if sum.Corrected != 0 || sum.Degraded != 3 {
		t.Fatalf("summary: %+v", sum)
	}
	got, err := os.ReadFile(filepath.Join(outDir, "sample_corrected.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := expectedReassembly(t, in, "")
	if string(got) != want {
		t.Fatalf("degraded output must equal input reassembly")
	}
	side, _ := os.ReadFile(filepath.Join(outDir, "sample_corrected.txt.jsonl"))
	if !strings.Contains(string(side), `"corrected":false`) || !strings.Contains(string(side), `"reason":"network"`) {
		t.Fatalf("sidecar: %s", side)
	}
}

// 端到端：前两次失败逐段降级，其余片段正常纠错（无重试）
func TestE2EFlakyFirstTwo(t *testing.T) {
	in := filepath.Join("files", "sample.txt")
	outDir := t.TempDir()
	logPath := filepath.Join(outDir, "flaky.log")
	cfg := baseConfig(in, outDir)
	cfg.LLM = "flaky"
	cfg.Provider["flaky"] = cfgpkg.Provider{
		Client:  "flaky",
		Options: json.RawMessage(fmt.Sprintf(`{"prefix":"FLAKY","log_path":%q}`, logPath)),
	}
	sum, err := runPipeline(t, cfg)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if sum.Degraded != 2 || sum.Corrected != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	got, err := os.ReadFile(filepath.Join(outDir, "sample_corrected.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	parts := strings.Split(string(got), "\n\n")
	if len(parts) != 3 {
		t.Fatalf("parts: %d", len(parts))
	}
	if strings.HasPrefix(parts[0], "FLAKY: ") || strings.HasPrefix(parts[1], "FLAKY: ") {
		t.Fatalf("degraded segments must keep original text")
	}
	if !strings.HasPrefix(parts[2], "FLAKY: ") {
		t.Fatalf("third segment should be corrected: %q", parts[2])
	}
	logData, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(logData)), "\n")
	if len(lines) != 3 || lines[0] != "rate_limited" || lines[1] != "empty_response" || lines[2] != "ok" {
		t.Fatalf("unexpected log: %v", lines)
	}
}
