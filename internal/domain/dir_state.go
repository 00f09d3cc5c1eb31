package domain

// DirState 描述目标目录的现状（只做 ReadDir，不读内容）。
type DirState struct {
	Dir string

	// ExistingNames 是目录内现有文件名集合，用于 O(1) 冲突判定。
	// 本次运行中已分配出去的目标名也会加入其中，防止组间互撞。
	ExistingNames map[string]struct{}
}
