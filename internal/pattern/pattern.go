package pattern

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/Renshot/internal/domain"
)

// 两代命名共用同一套日期/时间/编号语法，只有字面前缀不同。
// 小时允许 1–2 位（"9.15.24" 与 "09.15.24" 都合法），分、秒固定两位；
// 日历与时钟的合法性交给 time.Parse，正则只管形态。
// 扩展名大小写不敏感，但按原样捕获保留。
var nameRE = regexp.MustCompile(`^(Screenshot|Screen Shot) (\d{4}-\d{2}-\d{2} at \d{1,2}\.\d{2}\.\d{2})( \((\d+)\))?(\.(?i:png))$`)

// describedRE 识别已经带描述的文件名：时间之后出现字面 " - " 且其后非空。
// 规则（硬约束）：只认这个分隔符启发式，不做更严格的判定——否则会把
// 历史运行产生的文件重新处理或永久跳过。
var describedRE = regexp.MustCompile(`^(?:Screenshot|Screen Shot) \d{4}-\d{2}-\d{2} at \d{1,2}\.\d{2}\.\d{2} - (?:.+?)(?: \(\d+\))?\.(?i:png)$`)

// stampLayout 解析文件名内的时间文本；"15" 同时接受一位与两位小时。
const stampLayout = "2006-01-02 at 15.04.05"

type SkipError struct {
	// Kind: "no_match" 或 "already_named"
	Kind string
}

func (e *SkipError) Error() string {
	switch e.Kind {
	case "no_match":
		return "文件名不是可识别的截图命名"
	case "already_named":
		return "文件名已带描述（此前运行的产物）"
	default:
		return "skipped"
	}
}

// Parse 从纯文件名中提取命名代、时间戳与可选编号。
// 解析失败返回 *SkipError（no_match / already_named），两者都不是错误路径：
// no_match 的文件被完全忽略，already_named 的文件被幂等跳过。
// 返回值只填名字可推导的字段（AbsPath/Size 由扫描方补齐）。
func Parse(name string) (domain.ShotFile, error) {
	m := nameRE.FindStringSubmatch(name)
	if m == nil {
		if describedRE.MatchString(name) {
			return domain.ShotFile{}, &SkipError{Kind: "already_named"}
		}
		return domain.ShotFile{}, &SkipError{Kind: "no_match"}
	}

	stamp, err := time.Parse(stampLayout, m[2])
	if err != nil {
		// 形态对但日历/时钟非法（如 13 月、25 时）：按非截图处理。
		return domain.ShotFile{}, &SkipError{Kind: "no_match"}
	}

	f := domain.ShotFile{
		Convention: domain.Convention(m[1]),
		StampText:  m[2],
		Stamp:      stamp,
		Base:       strings.TrimSuffix(name, m[5]),
		Ext:        m[5],
	}
	if m[4] != "" {
		seq, err := strconv.Atoi(m[4])
		if err != nil {
			return domain.ShotFile{}, &SkipError{Kind: "no_match"}
		}
		f.Seq = seq
		f.HasSeq = true
	}
	return f, nil
}
