package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/John-Robertt/Renshot/internal/app/run"
	"github.com/John-Robertt/Renshot/internal/config"
	"github.com/John-Robertt/Renshot/internal/cost"
	"github.com/John-Robertt/Renshot/internal/domain"
	"github.com/John-Robertt/Renshot/internal/infra/fsx"
	"github.com/John-Robertt/Renshot/internal/logx"
	"github.com/John-Robertt/Renshot/internal/vision"
)

// logFileName 是写进目标目录的会话日志名。
const logFileName = "renshot_log.txt"

func main() {
	if code := runCmd(os.Args[1:]); code != 0 {
		os.Exit(code)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printUsage()
			return 0
		}
	}

	ra, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, ra)
	if err != nil {
		emitReport(reportForConfigError(cwdAbs, ra, err))
		return 1
	}

	// 会话日志落在目标目录；dry-run 不在目录里留任何痕迹，只写控制台。
	logFile := filepath.Join(eff.Dir, logFileName)
	if eff.DryRun {
		logFile = ""
	}
	if err := logx.Init(eff.LogLevel, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "打开日志文件失败（退回控制台）：%v\n", err)
		_ = logx.Init(eff.LogLevel, "")
	}

	// Ctrl-C 后不再开启新的组；已完成的部分照常进报告。
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	deps := run.Deps{
		Vision: vision.NewOpenAI(vision.Options{
			APIKey:           eff.APIKey,
			BaseURL:          eff.BaseURL,
			Model:            eff.Model,
			MaxTokens:        eff.MaxTokens,
			Timeout:          eff.Timeout,
			MaxRetries:       eff.MaxRetries,
			BatchSize:        eff.BatchSize,
			DescriptionWords: eff.DescriptionWords,
		}),
		Confirm: promptConfirm(os.Stdin, progressW),
	}

	rr := run.ExecuteWithObserver(ctx, eff, deps, obs)

	if eff.Report != "" {
		if err := writeReportFile(cwdAbs, eff.Report, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入报告文件失败：%v\n", err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

func parseArgs(args []string) (config.CLIArgs, error) {
	var ra config.CLIArgs

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--config":
			if i+1 >= len(args) {
				return config.CLIArgs{}, fmt.Errorf("--config 需要一个值")
			}
			i++
			ra.Config = args[i]
		case strings.HasPrefix(a, "--config="):
			ra.Config = strings.TrimPrefix(a, "--config=")
		case a == "--model":
			if i+1 >= len(args) {
				return config.CLIArgs{}, fmt.Errorf("--model 需要一个值")
			}
			i++
			ra.Model = args[i]
		case strings.HasPrefix(a, "--model="):
			ra.Model = strings.TrimPrefix(a, "--model=")
		case a == "--report":
			if i+1 >= len(args) {
				return config.CLIArgs{}, fmt.Errorf("--report 需要一个值")
			}
			i++
			ra.Report = args[i]
		case strings.HasPrefix(a, "--report="):
			ra.Report = strings.TrimPrefix(a, "--report=")
		case a == "--auto":
			ra.Auto = true
		case a == "--dry-run":
			ra.DryRun = true
		case strings.HasPrefix(a, "-"):
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Dir != "" {
				return config.CLIArgs{}, fmt.Errorf("重复的目录参数：%q 与 %q", ra.Dir, a)
			}
			ra.Dir = a
		}
	}

	return ra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  renshot [dir] [--auto] [--dry-run] [--model 名称] [--config 路径] [--report 路径]

给 macOS 截图文件补上内容描述：
  "Screenshot 2025-06-09 at 9.15.24.png"
    -> "Screenshot 2025-06-09 at 9.15.24 - Web browser article reading.png"

参数：
  dir          目标目录（未指定则读配置文件，最终默认 ~/Desktop）
  --auto       跳过交互确认
  --dry-run    只扫描与估算：不触网、不改名、不留日志文件
  --model      视觉模型名（覆盖配置文件与 OPENAI_MODEL）
  --config     配置文件路径（默认发现 ./renshot.json，可选）
  --report     把运行报告另存为 JSON 文件
  -h, --help   显示帮助

环境变量：
  OPENAI_API_KEY  必需，API 凭证（凭证只走环境变量，不进配置文件）
  OPENAI_MODEL    可选，模型名（优先级低于 --model 与配置文件）
`)
}

// promptConfirm 在改名前展示文件样例与费用预估，征求同意。
// 只有 y/yes（不区分大小写）才继续；读到 EOF 当作拒绝。
func promptConfirm(in io.Reader, w io.Writer) run.ConfirmFunc {
	if w == nil {
		w = os.Stderr
	}
	reader := bufio.NewReader(in)
	return func(est cost.Estimate, files []domain.ShotFile) bool {
		fmt.Fprintf(w, "\n找到 %d 个截图文件（%d 组）：\n", est.Files, est.Groups)
		show := files
		if len(show) > 5 {
			show = show[:5]
		}
		for _, f := range show {
			fmt.Fprintf(w, "  - %s\n", f.Base+f.Ext)
		}
		if len(files) > 5 {
			fmt.Fprintf(w, "  ... 以及另外 %d 个\n", len(files)-5)
		}
		if est.Files > est.Groups {
			fmt.Fprintf(w, "按时间戳并组后只需调用 %d 次接口（而不是 %d 次），省约 $%.4f\n",
				est.Groups, est.Files, est.SavedUSD())
		}
		fmt.Fprintf(w, "预估费用：$%.4f（按 %d 组计，平均 %.1fMB/张）\n",
			est.TotalUSD, est.Groups, est.AvgImageMB)
		fmt.Fprintf(w, "继续重命名 %d 个文件？(y/N): ", est.Files)

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(w)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		printHumanSummary(os.Stdout, rr)
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：renamed=%d refused=%d failed=%d already_named=%d ignored=%d\n",
		rr.Summary.Renamed, rr.Summary.Refused, rr.Summary.Failed,
		rr.Summary.AlreadyNamed, rr.Summary.Ignored,
	)
}

func printHumanSummary(w io.Writer, rr domain.RunReport) {
	if rr.DryRun {
		fmt.Fprintf(w, "dry-run 完成：%d 组 %d 个文件待处理，预估费用 $%.4f（未触网，未改名）\n",
			rr.Summary.Groups, rr.Summary.Files, rr.Cost.EstimatedUSD)
		return
	}

	fmt.Fprintf(w, "完成：renamed=%d refused=%d failed=%d already_named=%d ignored=%d\n",
		rr.Summary.Renamed, rr.Summary.Refused, rr.Summary.Failed,
		rr.Summary.AlreadyNamed, rr.Summary.Ignored,
	)
	fmt.Fprintf(w, "费用：预估 $%.4f，实际 $%.4f（调用 %d 次，token %d）\n",
		rr.Cost.EstimatedUSD, rr.Cost.ActualUSD, rr.Cost.Calls, rr.Cost.Tokens)

	if rr.Summary.Failed > 0 {
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed {
				continue
			}
			key := it.Timestamp
			if key == "" {
				// 合成条目（配置/预检失败）没有时间戳，用占位锚点。
				key = "<run>"
			}
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, truncate(it.ErrorMsg, 160))
		}
	}
}

func reportForConfigError(cwdAbs string, ra config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	dir := strings.TrimSpace(ra.Dir)
	if dir == "" {
		dir = cwdAbs
	}
	rr := domain.RunReport{
		Dir:        dir,
		DryRun:     ra.DryRun,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.GroupResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
			Files:     []domain.FileResult{},
		}},
	}
	rr.Finalize()
	return rr
}

// writeReportFile 把报告另存为 --report 指定的 JSON 文件（原子写，允许覆盖）。
func writeReportFile(cwdAbs, path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	if !filepath.IsAbs(path) {
		path = filepath.Join(cwdAbs, path)
	}
	dir, name := filepath.Split(filepath.Clean(path))
	return fsx.WriteFileAtomic(dir, name, b)
}

func isTTY(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
