package model

// Zone 规避区域 (地理围栏), 启动时加载, 进程生命周期内不可变
type Zone struct {
	ID       string       `json:"id"`       // 稳定标识, 如 zone_high_1, random_zone_7
	Name     string       `json:"name"`     // 展示名称
	Severity float64      `json:"severity"` // 严重程度 0.0 - 1.0
	Ring     []Coordinate `json:"ring"`     // 闭合外环, 首尾点相同
}

// HighSeverity 高污染区域的阈值, 与前端图层的配色一致
const HighSeverity = 0.8
