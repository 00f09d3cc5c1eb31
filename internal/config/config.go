package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingKey 表示环境里没有 OPENAI_API_KEY。
	ErrCodeMissingKey = "config_missing_key"
	// ErrCodeMissingPath 表示目标目录无法确定（CLI、配置、家目录全部落空）。
	ErrCodeMissingPath = "config_missing_path"
)

// 内置默认值（CLI 与配置文件都未指定时生效）。
const (
	DefaultModel            = "gpt-4-vision-preview"
	DefaultMaxTokens        = 50
	DefaultTimeout          = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultBatchSize        = 5
	DefaultDescriptionWords = 5
	DefaultLogLevel         = "info"
)

// FileName 是配置文件的固定名字（在工作目录发现，或经 --config 指定）。
const FileName = "renshot.json"

// CLIArgs 保存命令行入口，并保留“是否显式指定”的信息，
// 保证覆盖优先级可实现（CLI 明确给的值必须压过配置文件）。
type CLIArgs struct {
	Dir    string // 目标目录；空 = 未指定
	Config string // 配置文件路径；空 = 走发现规则
	Model  string // 模型名；空 = 未指定

	Auto   bool // 跳过交互确认
	DryRun bool // 只估算，不调用、不改名

	Report string // 报告文件路径；空 = 不落盘
}

// FileConfig 对应 renshot.json 的解析结构。
type FileConfig struct {
	Dir              string `json:"dir"`
	Model            string `json:"model"`
	BaseURL          string `json:"base_url"`
	MaxTokens        int    `json:"max_tokens"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	MaxRetries       *int   `json:"max_retries"` // 尝试总次数（含首次，≥1）；用指针区分未设置与显式 0
	BatchSize        int    `json:"batch_size"`
	DescriptionWords int    `json:"description_words"`
	LogLevel         string `json:"log_level"`
}

// Effective 是合并并规范化后的最终配置。
// 实现层直接消费，不再做二次默认/优先级判断。
type Effective struct {
	Dir string

	APIKey  string
	BaseURL string
	Model   string

	MaxTokens        int
	Timeout          time.Duration
	MaxRetries       int
	BatchSize        int
	DescriptionWords int
	LogLevel         string

	Auto   bool
	DryRun bool
	Report string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingKey:
		return fmt.Sprintf("%s：环境变量 OPENAI_API_KEY 未设置；请导出后重试", e.Code)
	case ErrCodeMissingPath:
		if e.Err != nil {
			return fmt.Sprintf("%s：无法确定目标目录：%v", e.Code, e.Err)
		}
		return fmt.Sprintf("%s：无法确定目标目录", e.Code)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数、环境变量合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：该文件必须存在
// 2) 否则尝试 <cwd>/renshot.json（可选，不存在不报错）
//
// 覆盖优先级（固定）：
// - dir：CLI > config > ~/Desktop
// - model：CLI > config > 环境变量 OPENAI_MODEL > 默认
// - 凭证：只来自环境变量 OPENAI_API_KEY（永不进配置文件）
// - 其余 tunable：config > 默认
func LoadEffective(cwd string, cli CLIArgs) (Effective, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return Effective{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)
	if strings.TrimSpace(cli.Config) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.Config)
		exists, err := readFileConfig(cfgPath, &fc)
		if err != nil {
			return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return Effective{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(cwdAbs, FileName)
		if _, err := readFileConfig(cfgPath, &fc); err != nil {
			return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (Effective, error) {
	// dir：CLI > config > ~/Desktop
	var dir string
	switch {
	case strings.TrimSpace(cli.Dir) != "":
		dir = absCleanFrom(cwdAbs, cli.Dir)
	case strings.TrimSpace(fc.Dir) != "":
		dir = absCleanFrom(cwdAbs, fc.Dir)
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return Effective{}, &Error{Code: ErrCodeMissingPath, Err: err}
		}
		dir = filepath.Join(home, "Desktop")
	}

	// 凭证只认环境变量，避免密钥进文件或进 shell 历史
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return Effective{}, &Error{Code: ErrCodeMissingKey}
	}

	// model：CLI > config > OPENAI_MODEL > 默认
	model := DefaultModel
	switch {
	case strings.TrimSpace(cli.Model) != "":
		model = strings.TrimSpace(cli.Model)
	case strings.TrimSpace(fc.Model) != "":
		model = strings.TrimSpace(fc.Model)
	case strings.TrimSpace(os.Getenv("OPENAI_MODEL")) != "":
		model = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	}

	maxTokens := fc.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	timeout := DefaultTimeout
	if fc.TimeoutSeconds > 0 {
		timeout = time.Duration(fc.TimeoutSeconds) * time.Second
	} else if fc.TimeoutSeconds < 0 {
		return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("timeout_seconds 不能为负：%d", fc.TimeoutSeconds)}
	}

	maxRetries := DefaultMaxRetries
	if fc.MaxRetries != nil {
		if *fc.MaxRetries < 1 {
			return Effective{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("max_retries 至少为 1（含首次尝试）：%d", *fc.MaxRetries)}
		}
		maxRetries = *fc.MaxRetries
	}

	batch := fc.BatchSize
	if batch == 0 {
		batch = DefaultBatchSize
	}
	// 范围建议 [1, 32]；超出截断
	if batch < 1 {
		batch = 1
	}
	if batch > 32 {
		batch = 32
	}

	words := fc.DescriptionWords
	if words <= 0 {
		words = DefaultDescriptionWords
	}

	level := strings.TrimSpace(fc.LogLevel)
	if level == "" {
		level = DefaultLogLevel
	}

	return Effective{
		Dir:              dir,
		APIKey:           apiKey,
		BaseURL:          strings.TrimSpace(fc.BaseURL),
		Model:            model,
		MaxTokens:        maxTokens,
		Timeout:          timeout,
		MaxRetries:       maxRetries,
		BatchSize:        batch,
		DescriptionWords: words,
		LogLevel:         level,
		Auto:             cli.Auto,
		DryRun:           cli.DryRun,
		Report:           strings.TrimSpace(cli.Report),
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string, fc *FileConfig) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, fc); err != nil {
		return true, err
	}
	return true, nil
}
