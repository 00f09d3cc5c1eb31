package scan

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/John-Robertt/Renshot/internal/domain"
	"github.com/John-Robertt/Renshot/internal/pattern"
)

// Result 是一次目录扫描的产物：待处理文件加两类跳过计数。
type Result struct {
	Files []domain.ShotFile
	// AlreadyNamed 是已带描述的文件数（幂等跳过，下次运行同样跳过）。
	AlreadyNamed int
	// Ignored 是不符合任一命名代的普通文件数（完全忽略，不是错误）。
	Ignored int
}

// ScanShots 扫描 dir 的直接子项（不递归），用文件名语法筛出截图文件。
//
// 规则（硬约束）：
// - 只解析文件名，stat 仅取 Size，不读内容
// - 子目录一律跳过
// - 已带描述 → AlreadyNamed；其余不匹配 → Ignored
//
// 注意：返回的 Files 按文件名排序，保证不同文件系统上输出一致。
func ScanShots(dir string) (Result, error) {
	dir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return Result{}, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{}, err
	}

	res := Result{Files: make([]domain.ShotFile, 0, len(entries))}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		f, perr := pattern.Parse(e.Name())
		if perr != nil {
			var se *pattern.SkipError
			if errors.As(perr, &se) && se.Kind == "already_named" {
				res.AlreadyNamed++
			} else {
				res.Ignored++
			}
			continue
		}

		info, err := e.Info()
		if err != nil {
			return Result{}, err
		}

		f.AbsPath = filepath.Join(dir, e.Name())
		f.Size = info.Size()
		res.Files = append(res.Files, f)
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(res.Files, func(i, j int) bool {
		return res.Files[i].Base+res.Files[i].Ext < res.Files[j].Base+res.Files[j].Ext
	})
	return res, nil
}
