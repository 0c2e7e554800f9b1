package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	cfgpkg "ocrclean/internal/config"
	"ocrclean/internal/diag"
	"ocrclean/internal/pipeline"
)

func resetFlag(args []string) {
	flag.CommandLine = flag.NewFlagSet(args[0], flag.ContinueOnError)
	os.Args = args
}

func TestWriteConfig(t *testing.T) {
	cfg := cfgpkg.Defaults()
	dir := t.TempDir()
	file := filepath.Join(dir, "c.json")
	if err := writeConfig(file, cfg); err != nil {
		t.Fatalf("writeConfig file: %v", err)
	}
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("file not created: %v", err)
	}
	r, w, _ := os.Pipe()
	old := os.Stdout
	os.Stdout = w
	if err := writeConfig("-", cfg); err != nil {
		t.Fatalf("writeConfig stdout: %v", err)
	}
	w.Close()
	os.Stdout = old
	r.Close()
}

func TestDumpConfig(t *testing.T) {
	cfg := cfgpkg.Defaults()
	devnull, _ := os.Open(os.DevNull)
	old := os.Stderr
	os.Stderr = devnull
	if err := dumpConfig(cfg); err != nil {
		t.Fatalf("dumpConfig: %v", err)
	}
	os.Stderr = old
	devnull.Close()
}

func TestRunInitConfig(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	outDir := filepath.Join(dir, "out")
	resetFlag([]string{"ocrclean", "--init-config", outDir})
	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if _, err := os.Stat(filepath.Join(outDir, "config.json")); err != nil {
		t.Fatalf("config not generated: %v", err)
	}
}

func TestRunSuccess(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{"-"}
	b, _ := json.Marshal(cfg)
	t.Setenv("OCRCLEAN_CONFIG_JSON", string(b))

	resetFlag([]string{"ocrclean"})
	called := false
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (pipeline.Summary, error) {
		called = true
		return pipeline.Summary{}, nil
	}
	defer func() { pipelineRun = orig }()

	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if !called {
		t.Fatalf("pipelineRun not called")
	}
}

func TestRunWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{"-"}
	b, _ := json.Marshal(cfg)
	path := filepath.Join(dir, "cfg.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	resetFlag([]string{"ocrclean", "--config", path})
	called := false
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (pipeline.Summary, error) {
		called = true
		return pipeline.Summary{}, nil
	}
	defer func() { pipelineRun = orig }()

	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if !called {
		t.Fatalf("pipelineRun not called")
	}
}

func TestRunConfigFileNotFound(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	resetFlag([]string{"ocrclean", "--config", "missing.json"})
	if code := run(); code != 3 {
		t.Fatalf("expect 3, got %d", code)
	}
}

func TestRunValidateError(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{"-"}
	cfg.LLM = ""
	cfg.Provider = map[string]cfgpkg.Provider{}
	b, _ := json.Marshal(cfg)
	t.Setenv("OCRCLEAN_CONFIG_JSON", string(b))

	resetFlag([]string{"ocrclean"})
	if code := run(); code != 3 {
		t.Fatalf("expect 3, got %d", code)
	}
}

func TestRunAssembleError(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{"-"}
	cfg.Options.Reader = json.RawMessage(`{"unknown":1}`)
	b, _ := json.Marshal(cfg)
	t.Setenv("OCRCLEAN_CONFIG_JSON", string(b))

	resetFlag([]string{"ocrclean"})
	if code := run(); code != 3 {
		t.Fatalf("expect 3, got %d", code)
	}
}

func TestRunPipelineError(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{"-"}
	b, _ := json.Marshal(cfg)
	t.Setenv("OCRCLEAN_CONFIG_JSON", string(b))

	resetFlag([]string{"ocrclean"})
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (pipeline.Summary, error) {
		return pipeline.Summary{}, errors.New("boom")
	}
	defer func() { pipelineRun = orig }()

	if code := run(); code != 1 {
		t.Fatalf("expect 1, got %d", code)
	}
}

func TestRunInitConfigFileExists(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	outDir := filepath.Join(dir, "out2")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	dest := filepath.Join(outDir, "config.json")
	if err := os.WriteFile(dest, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write existing: %v", err)
	}
	resetFlag([]string{"ocrclean", "--init-config", outDir})
	if code := run(); code != 3 {
		t.Fatalf("expect 3, got %d", code)
	}
}

func TestRunCLIOverrides(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = nil
	cfg.LLM = ""
	b, _ := json.Marshal(cfg)
	t.Setenv("OCRCLEAN_CONFIG_JSON", string(b))

	resetFlag([]string{"ocrclean", "--llm", "mock", "--max-chars", "800", "-"})
	called := false
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (pipeline.Summary, error) {
		called = true
		if len(set.Inputs) != 1 || set.Inputs[0] != "-" {
			t.Fatalf("cli inputs not applied: %+v", set.Inputs)
		}
		return pipeline.Summary{}, nil
	}
	defer func() { pipelineRun = orig }()

	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if !called {
		t.Fatalf("pipelineRun not called")
	}
}

func TestRunReaderOverride(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{dir}
	// pdf reader 不接受 fs 专属选项键，清空避免装配失败
	cfg.Options.Reader = nil
	b, _ := json.Marshal(cfg)
	t.Setenv("OCRCLEAN_CONFIG_JSON", string(b))

	resetFlag([]string{"ocrclean", "--reader", "pdf"})
	called := false
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (pipeline.Summary, error) {
		called = true
		return pipeline.Summary{}, nil
	}
	defer func() { pipelineRun = orig }()

	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if !called {
		t.Fatalf("pipelineRun not called")
	}
}

func TestRunConfigFileEnv(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{"-"}
	b, _ := json.Marshal(cfg)
	path := filepath.Join(dir, "cfg.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OCRCLEAN_CONFIG_FILE", path)

	resetFlag([]string{"ocrclean"})
	called := false
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (pipeline.Summary, error) {
		called = true
		return pipeline.Summary{}, nil
	}
	defer func() { pipelineRun = orig }()

	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if !called {
		t.Fatalf("pipelineRun not called")
	}
}

func TestRunDefaultConfigFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{"-"}
	b, _ := json.Marshal(cfg)
	if err := os.WriteFile("config.json", b, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	resetFlag([]string{"ocrclean"})
	called := false
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (pipeline.Summary, error) {
		called = true
		return pipeline.Summary{}, nil
	}
	defer func() { pipelineRun = orig }()

	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if !called {
		t.Fatalf("pipelineRun not called")
	}
}

func TestRunInitConfigDefault(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	resetFlag([]string{"ocrclean", "--init-config"})
	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if _, err := os.Stat("config.json"); err != nil {
		t.Fatalf("config not written: %v", err)
	}
}

func TestRunInitConfigDir(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	outDir := filepath.Join(dir, "emit")
	resetFlag([]string{"ocrclean", "--init-config", outDir})
	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if _, err := os.Stat(filepath.Join(outDir, "config.json")); err != nil {
		t.Fatalf("config not generated: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, ".env")); err != nil {
		t.Fatalf(".env not generated: %v", err)
	}
}

func TestRunDebugProviderInfo(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{"-"}
	cfg.LLM = "openai"
	cfg.Provider["openai"] = cfgpkg.Provider{
		Client:  "openai",
		Options: json.RawMessage(`{"base_url":"http://127.0.0.1:1234/v1","model":"openai/gpt-oss-20b","endpoint_path":"/chat/completions"}`),
	}
	b, _ := json.Marshal(cfg)
	t.Setenv("OCRCLEAN_CONFIG_JSON", string(b))

	resetFlag([]string{"ocrclean"})
	called := false
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (pipeline.Summary, error) {
		called = true
		return pipeline.Summary{}, nil
	}
	defer func() { pipelineRun = orig }()

	if code := run(); code != 0 {
		t.Fatalf("run return %d", code)
	}
	if !called {
		t.Fatalf("pipelineRun not called")
	}
}
