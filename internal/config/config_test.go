package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEffective_DefaultsWithoutConfigFile(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "")

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Dir != filepath.Join(home, "Desktop") {
		t.Fatalf("期望 dir=~/Desktop，实际=%q", eff.Dir)
	}
	if eff.Model != DefaultModel {
		t.Fatalf("期望 model=%q，实际=%q", DefaultModel, eff.Model)
	}
	if eff.MaxTokens != DefaultMaxTokens {
		t.Fatalf("期望 max_tokens=%d，实际=%d", DefaultMaxTokens, eff.MaxTokens)
	}
	if eff.Timeout != DefaultTimeout {
		t.Fatalf("期望 timeout=%v，实际=%v", DefaultTimeout, eff.Timeout)
	}
	if eff.MaxRetries != DefaultMaxRetries {
		t.Fatalf("期望 max_retries=%d，实际=%d", DefaultMaxRetries, eff.MaxRetries)
	}
	if eff.BatchSize != DefaultBatchSize {
		t.Fatalf("期望 batch_size=%d，实际=%d", DefaultBatchSize, eff.BatchSize)
	}
	if eff.DescriptionWords != DefaultDescriptionWords {
		t.Fatalf("期望 description_words=%d，实际=%d", DefaultDescriptionWords, eff.DescriptionWords)
	}
	if eff.APIKey != "sk-test" {
		t.Fatalf("期望 api_key=sk-test，实际=%q", eff.APIKey)
	}
}

func TestLoadEffective_MissingAPIKey(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "")

	_, err := LoadEffective(cwd, CLIArgs{Dir: cwd})
	if Code(err) != ErrCodeMissingKey {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeMissingKey, err, Code(err))
	}
}

func TestLoadEffective_ExplicitConfigMustExist(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := LoadEffective(cwd, CLIArgs{Config: "nope.json"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_DiscoveredConfigIsOptional(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")

	// 工作目录没有 renshot.json 也能走默认值。
	eff, err := LoadEffective(cwd, CLIArgs{Dir: cwd})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Dir != cwd {
		t.Fatalf("期望 dir=%q，实际=%q", cwd, eff.Dir)
	}
}

func TestLoadEffective_DirMergeOrder(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"dir":"shots"}`))

	// CLI 未指定 dir，则应使用配置文件中的相对路径（基于 cwd 归一化）。
	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	wantDir := filepath.Join(cwd, "shots")
	if eff.Dir != wantDir {
		t.Fatalf("期望 dir=%q，实际=%q", wantDir, eff.Dir)
	}

	// CLI 显式指定，则覆盖配置文件。
	eff2, err := LoadEffective(cwd, CLIArgs{Dir: "other"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	wantDir2 := filepath.Join(cwd, "other")
	if eff2.Dir != wantDir2 {
		t.Fatalf("期望 dir=%q，实际=%q", wantDir2, eff2.Dir)
	}
}

func TestLoadEffective_ModelMergeOrder(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"dir":"p","model":"gpt-4o"}`))

	// CLI 未指定 model，则应使用配置文件中的 gpt-4o（压过环境变量）。
	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Model != "gpt-4o" {
		t.Fatalf("期望 model=gpt-4o，实际=%q", eff.Model)
	}

	// CLI 显式指定，则覆盖配置文件。
	eff2, err := LoadEffective(cwd, CLIArgs{Model: "gpt-4-turbo"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff2.Model != "gpt-4-turbo" {
		t.Fatalf("期望 model=gpt-4-turbo，实际=%q", eff2.Model)
	}
}

func TestLoadEffective_ModelFromEnvWhenFileSilent(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")

	eff, err := LoadEffective(cwd, CLIArgs{Dir: cwd})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Model != "gpt-4o-mini" {
		t.Fatalf("期望 model=gpt-4o-mini，实际=%q", eff.Model)
	}
}

func TestLoadEffective_FileTunables(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
		"dir": "p",
		"base_url": "http://127.0.0.1:8080/v1",
		"max_tokens": 80,
		"timeout_seconds": 10,
		"max_retries": 1,
		"batch_size": 8,
		"description_words": 4,
		"log_level": "debug"
	}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.BaseURL != "http://127.0.0.1:8080/v1" {
		t.Fatalf("期望 base_url 透传，实际=%q", eff.BaseURL)
	}
	if eff.MaxTokens != 80 {
		t.Fatalf("期望 max_tokens=80，实际=%d", eff.MaxTokens)
	}
	if eff.Timeout != 10*time.Second {
		t.Fatalf("期望 timeout=10s，实际=%v", eff.Timeout)
	}
	if eff.MaxRetries != 1 {
		t.Fatalf("期望 max_retries=1（只试一次，不重试），实际=%d", eff.MaxRetries)
	}
	if eff.BatchSize != 8 {
		t.Fatalf("期望 batch_size=8，实际=%d", eff.BatchSize)
	}
	if eff.DescriptionWords != 4 {
		t.Fatalf("期望 description_words=4，实际=%d", eff.DescriptionWords)
	}
	if eff.LogLevel != "debug" {
		t.Fatalf("期望 log_level=debug，实际=%q", eff.LogLevel)
	}
}

func TestLoadEffective_InvalidJSON(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_RetriesBelowOneRejected(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")

	// max_retries 含首次尝试，0 与负数都拒绝。
	for _, raw := range []string{
		`{"dir":"p","max_retries":-1}`,
		`{"dir":"p","max_retries":0}`,
	} {
		writeFile(t, filepath.Join(cwd, FileName), []byte(raw))
		_, err := LoadEffective(cwd, CLIArgs{})
		if Code(err) != ErrCodeInvalid {
			t.Fatalf("%s：期望 %q，实际 err=%v (code=%q)", raw, ErrCodeInvalid, err, Code(err))
		}
	}
}

func TestLoadEffective_NegativeTimeoutRejected(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"dir":"p","timeout_seconds":-5}`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_BatchSizeClamped(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"dir":"p","batch_size":100}`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.BatchSize != 32 {
		t.Fatalf("期望 batch_size 截断为 32，实际=%d", eff.BatchSize)
	}
}

func TestLoadEffective_CLIFlagsPassThrough(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")

	eff, err := LoadEffective(cwd, CLIArgs{
		Dir:    cwd,
		Auto:   true,
		DryRun: true,
		Report: "out.json",
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !eff.Auto {
		t.Fatalf("期望 auto=true，实际=%v", eff.Auto)
	}
	if !eff.DryRun {
		t.Fatalf("期望 dry_run=true，实际=%v", eff.DryRun)
	}
	if eff.Report != "out.json" {
		t.Fatalf("期望 report=out.json，实际=%q", eff.Report)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
