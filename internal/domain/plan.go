package domain

// RenamePlan 规划一次改名（只描述 src/dst；真正执行是另一步）。
// 同目录内改名，src 与 dst 永远在同一个目录下。
type RenamePlan struct {
	SrcAbs string
	DstAbs string
}
