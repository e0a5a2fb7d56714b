package model

// Route 一次寻路的结果, 按请求创建, 不持久化
type Route struct {
	Profile        string       `json:"profile"`
	Geometry       []Coordinate `json:"geometry"`
	NodeIDs        []int64      `json:"node_ids"`
	DistanceMeters float64      `json:"distance_meters"` // 总距离 (米)
	TimeMs         int64        `json:"time_ms"`         // 总通行时间 (毫秒)
	Cost           float64      `json:"cost"`            // 该配置下的总代价
}

// PlanningRequest 路径规划请求: 起点、终点、需要计算的配置名称
type PlanningRequest struct {
	Origin      Coordinate `json:"origin"`
	Destination Coordinate `json:"destination"`
	Profiles    []string   `json:"profiles"`
}
