package domain

// Convention 是截图文件名的命名代（也是重命名时保留的字面前缀）。
//
// 约束：只有两代命名被识别；前缀必须逐字保留，不允许在重命名时互相转换。
type Convention string

const (
	// ConventionModern 是现行 macOS 的 "Screenshot" 前缀。
	ConventionModern Convention = "Screenshot"
	// ConventionLegacy 是旧版 macOS 的 "Screen Shot" 前缀。
	ConventionLegacy Convention = "Screen Shot"
)
