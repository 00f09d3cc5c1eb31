package domain

import "time"

// ShotFile 描述一次扫描得到的截图文件（只解析文件名，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - StampText 是文件名里出现的原始时间文本（如 "2025-06-09 at 9.15.24"），
//   重命名时逐字保留；Stamp 是它解析后的时刻，只用于分组与排序
// - Seq 仅在 HasSeq 为 true 时有意义
type ShotFile struct {
	AbsPath string
	Base    string // filename without ext
	Ext     string // ".png"（保留原大小写）
	Size    int64

	Convention Convention
	StampText  string
	Stamp      time.Time
	Seq        int
	HasSeq     bool
}
