package model

// Coordinate 代表一个经纬度点 (WGS84), 不可变值
type Coordinate struct {
	Lat float64 `json:"lat"` // 纬度
	Lng float64 `json:"lng"` // 经度
}

// Valid 检查经纬度是否在合法范围内
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Node 对应路网上的一个点 (路口、道路折点)
// ID 使用整数, 寻路时平局按最小 ID 打破, 保证结果可复现
type Node struct {
	ID  int64   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TableName 路网节点表
func (Node) TableName() string { return "road_nodes" }

// Coordinate 返回节点坐标
func (n Node) Coordinate() Coordinate {
	return Coordinate{Lat: n.Lat, Lng: n.Lng}
}

// Network 数据源一次加载得到的完整路网
type Network struct {
	Nodes    []Node
	Segments []Segment
}
