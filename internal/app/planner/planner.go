package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/John-Robertt/Renshot/internal/domain"
)

// maxDescriptionLen 是描述进文件名后的长度上限（按字符数）。
const maxDescriptionLen = 50

// ReadDirState 读取目标目录的现状（只做 ReadDir，不读文件内容）。
// 目录不存在时返回空状态且不报错。
func ReadDirState(dir string) (domain.DirState, error) {
	st := domain.DirState{
		Dir:           dir,
		ExistingNames: map[string]struct{}{},
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return domain.DirState{}, err
	}

	for _, e := range entries {
		st.ExistingNames[e.Name()] = struct{}{}
	}
	return st, nil
}

// SanitizeDescription 把模型给的描述洗成能进文件名的形态。
//
// 规则（硬约束）：
// - 丢掉 <>:"/\|?* 与句点
// - 连续空白折叠成单个空格并去首尾
// - 首字母大写，其余全部小写
// - 超过 50 个字符时截到 50，再退到前一个词边界
func SanitizeDescription(desc string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*', '.':
			return -1
		}
		return r
	}, desc)

	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}

	runes := []rune(s)
	s = string(unicode.ToUpper(runes[0])) + strings.ToLower(string(runes[1:]))

	runes = []rune(s)
	if len(runes) > maxDescriptionLen {
		cut := string(runes[:maxDescriptionLen])
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		}
		s = cut
	}
	return s
}

// BuildName 生成目标文件名：描述插在时间戳与序号之间，
// 前缀、时间戳原文、序号、扩展名全部原样保留。
func BuildName(f domain.ShotFile, desc string) string {
	name := string(f.Convention) + " " + f.StampText + " - " + desc
	if f.HasSeq {
		name += fmt.Sprintf(" (%d)", f.Seq)
	}
	return name + f.Ext
}

// PlanGroup 为一组生成确定性的改名计划（不做任何写入/移动）。
//
// 约束：
// - 组内所有文件共享同一份清洗后的描述，各自保留自己的序号后缀
// - 冲突解决同时看目录现状与本次已分配的名字
func PlanGroup(files []domain.ShotFile, g domain.Group, desc string, st domain.DirState) ([]domain.RenamePlan, error) {
	clean := SanitizeDescription(desc)

	used := make(map[string]struct{}, len(st.ExistingNames)+len(g.FileIdx))
	for n := range st.ExistingNames {
		used[n] = struct{}{}
	}

	plans := make([]domain.RenamePlan, 0, len(g.FileIdx))
	for _, idx := range g.FileIdx {
		if idx < 0 || idx >= len(files) {
			return nil, fmt.Errorf("非法 file index：%d", idx)
		}
		f := files[idx]

		dstName := allocName(BuildName(f, clean), used)
		used[dstName] = struct{}{}

		plans = append(plans, domain.RenamePlan{
			SrcAbs: f.AbsPath,
			DstAbs: filepath.Join(st.Dir, dstName),
		})
	}
	return plans, nil
}

func allocName(name string, used map[string]struct{}) string {
	if _, ok := used[name]; !ok {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 1; ; n++ {
		cand := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, ok := used[cand]; !ok {
			return cand
		}
	}
}
