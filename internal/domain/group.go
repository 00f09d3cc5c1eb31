package domain

// GroupKey 是分组主键：命名代 + 解析后的时刻。
// 用解析后的 Unix 秒而非原始文本做键，使 "9.15.24" 与 "09.15.24" 归入同组；
// 两代命名即使时刻相同也绝不合并。
type GroupKey struct {
	Convention Convention
	StampUnix  int64
}

// Group 是按 (Convention, Stamp) 聚合后的工作单元。
// 为了数据局部性，Group 只保存文件下标（指向 []ShotFile），避免复制大结构体。
// FileIdx 的顺序即处理顺序：无编号的文件在前，其后按 Seq 升序。
type Group struct {
	Key     GroupKey
	FileIdx []int
}
