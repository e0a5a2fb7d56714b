package model

import "strings"

// RoadClass 道路等级, 取值与 OSM highway 标签对应
type RoadClass string

const (
	ClassMotorway     RoadClass = "MOTORWAY"
	ClassTrunk        RoadClass = "TRUNK"
	ClassPrimary      RoadClass = "PRIMARY"
	ClassSecondary    RoadClass = "SECONDARY"
	ClassTertiary     RoadClass = "TERTIARY"
	ClassResidential  RoadClass = "RESIDENTIAL"
	ClassService      RoadClass = "SERVICE"
	ClassUnclassified RoadClass = "UNCLASSIFIED"
	ClassLivingStreet RoadClass = "LIVING_STREET"
	ClassTrack        RoadClass = "TRACK"
	ClassOther        RoadClass = "OTHER"
)

// RoadEnvironment 道路环境 (普通路面、桥梁、隧道等)
type RoadEnvironment string

const (
	EnvRoad   RoadEnvironment = "ROAD"
	EnvBridge RoadEnvironment = "BRIDGE"
	EnvTunnel RoadEnvironment = "TUNNEL"
	EnvFerry  RoadEnvironment = "FERRY"
	EnvFord   RoadEnvironment = "FORD"
)

// 各道路等级的默认通行速度 (米/秒), 数据源没有 maxspeed 时使用
const (
	SpeedMotorway    = 27.8 // 约 100 km/h
	SpeedTrunk       = 22.2 // 约 80 km/h
	SpeedPrimary     = 16.7 // 约 60 km/h
	SpeedSecondary   = 13.9 // 约 50 km/h
	SpeedTertiary    = 11.1 // 约 40 km/h
	SpeedResidential = 8.3  // 约 30 km/h
	SpeedService     = 5.6  // 约 20 km/h
	SpeedSlow        = 4.2  // 约 15 km/h (生活街道、土路)
)

var roadClasses = []RoadClass{
	ClassMotorway, ClassTrunk, ClassPrimary, ClassSecondary, ClassTertiary,
	ClassResidential, ClassService, ClassUnclassified, ClassLivingStreet, ClassTrack, ClassOther,
}

var roadEnvironments = []RoadEnvironment{EnvRoad, EnvBridge, EnvTunnel, EnvFerry, EnvFord}

// Segment 路段, 对应两个节点之间的一条边
type Segment struct {
	ID           int64           `json:"id"`
	From         int64           `json:"from"`
	To           int64           `json:"to"`
	Class        RoadClass       `json:"road_class"`
	Environment  RoadEnvironment `json:"road_environment"`
	Length       float64         `json:"length"`        // 长度 (米)
	BaseSpeed    float64         `json:"base_speed"`    // 基础通行速度 (米/秒)
	BasePriority float64         `json:"base_priority"` // 基础优先级权重, 默认 1
	OneWay       bool            `json:"one_way"`
	Geometry     []Coordinate    `json:"geometry"` // 从 From 到 To 的折线
}

// Midpoint 路段几何的中点, 作为判断所在区域的代表点
func (s *Segment) Midpoint() Coordinate {
	n := len(s.Geometry)
	switch n {
	case 0:
		return Coordinate{}
	case 1:
		return s.Geometry[0]
	}
	a := s.Geometry[(n-1)/2]
	b := s.Geometry[n/2]
	if n%2 == 1 {
		return a
	}
	return Coordinate{Lat: (a.Lat + b.Lat) / 2, Lng: (a.Lng + b.Lng) / 2}
}

// ParseRoadClass 将 OSM highway 标签转换为道路等级
// 例如: "motorway_link" -> MOTORWAY; 不可通行的标签 (人行道等) 返回 false
func ParseRoadClass(highway string) (RoadClass, bool) {
	switch strings.TrimSuffix(highway, "_link") {
	case "motorway":
		return ClassMotorway, true
	case "trunk":
		return ClassTrunk, true
	case "primary":
		return ClassPrimary, true
	case "secondary":
		return ClassSecondary, true
	case "tertiary":
		return ClassTertiary, true
	case "residential":
		return ClassResidential, true
	case "service":
		return ClassService, true
	case "unclassified", "road":
		return ClassUnclassified, true
	case "living_street":
		return ClassLivingStreet, true
	case "track":
		return ClassTrack, true
	default:
		return ClassOther, false
	}
}

// LookupRoadClass 按名称查找道路等级 (用于解析配置中的规则)
func LookupRoadClass(name string) (RoadClass, bool) {
	for _, c := range roadClasses {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// LookupRoadEnvironment 按名称查找道路环境, NORMAL 视为 ROAD
func LookupRoadEnvironment(name string) (RoadEnvironment, bool) {
	if name == "NORMAL" {
		return EnvRoad, true
	}
	for _, e := range roadEnvironments {
		if string(e) == name {
			return e, true
		}
	}
	return "", false
}

// DefaultSpeed 获取指定道路等级的默认速度 (米/秒)
func DefaultSpeed(class RoadClass) float64 {
	switch class {
	case ClassMotorway:
		return SpeedMotorway
	case ClassTrunk:
		return SpeedTrunk
	case ClassPrimary:
		return SpeedPrimary
	case ClassSecondary:
		return SpeedSecondary
	case ClassTertiary:
		return SpeedTertiary
	case ClassResidential, ClassUnclassified:
		return SpeedResidential
	case ClassService:
		return SpeedService
	default:
		return SpeedSlow
	}
}
