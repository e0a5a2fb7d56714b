package source

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"zone-router/model"
)

// RoadSource 路网数据源, 一次返回完整路网
type RoadSource interface {
	LoadNetwork(ctx context.Context) (*model.Network, error)
}

// ZoneSource 规避区域数据源
type ZoneSource interface {
	LoadZones(ctx context.Context) ([]model.Zone, error)
}

// osmNode / osmWay 与具体 OSM 库无关的中间结构
type osmNode struct {
	id       int64
	lat, lon float64
}

type osmWay struct {
	id    int64
	tags  map[string]string
	nodes []int64
}

// networkBuilder 将 OSM 节点和道路转换为路网
// 每条道路按相邻节点拆分为路段
type networkBuilder struct {
	source string
	nodes  map[int64]osmNode
	ways   []osmWay
}

func newNetworkBuilder(source string) *networkBuilder {
	return &networkBuilder{source: source, nodes: make(map[int64]osmNode)}
}

func (b *networkBuilder) addNode(id int64, lat, lon float64) {
	b.nodes[id] = osmNode{id: id, lat: lat, lon: lon}
}

// addWay 只保留可通行的道路 (有 highway 标签且是机动车道路)
func (b *networkBuilder) addWay(id int64, tags map[string]string, nodes []int64) {
	if _, ok := model.ParseRoadClass(tags["highway"]); !ok {
		return
	}
	if len(nodes) < 2 {
		return
	}
	b.ways = append(b.ways, osmWay{id: id, tags: tags, nodes: nodes})
}

func (b *networkBuilder) build() (*model.Network, error) {
	if len(b.ways) == 0 {
		return nil, malformed(b.source, "no routable ways")
	}
	sort.Slice(b.ways, func(i, j int) bool { return b.ways[i].id < b.ways[j].id })

	network := &model.Network{}
	used := make(map[int64]bool)
	var nextID int64 = 1

	for _, w := range b.ways {
		class, _ := model.ParseRoadClass(w.tags["highway"])
		env := parseEnvironment(w.tags)
		speed := parseMaxSpeed(w.tags["maxspeed"])
		if speed == 0 {
			speed = model.DefaultSpeed(class)
		}

		nodes := w.nodes
		oneWay := false
		switch w.tags["oneway"] {
		case "yes", "true", "1":
			oneWay = true
		case "-1", "reverse":
			oneWay = true
			nodes = reversed(nodes)
		case "no", "false", "0":
		default:
			oneWay = class == model.ClassMotorway || w.tags["junction"] == "roundabout"
		}

		for i := 1; i < len(nodes); i++ {
			from, okFrom := b.nodes[nodes[i-1]]
			to, okTo := b.nodes[nodes[i]]
			if !okFrom || !okTo {
				return nil, malformed(b.source, "way %d references missing node", w.id)
			}
			if from.id == to.id {
				continue
			}
			network.Segments = append(network.Segments, model.Segment{
				ID:           nextID,
				From:         from.id,
				To:           to.id,
				Class:        class,
				Environment:  env,
				BaseSpeed:    speed,
				BasePriority: 1,
				OneWay:       oneWay,
				Geometry: []model.Coordinate{
					{Lat: from.lat, Lng: from.lon},
					{Lat: to.lat, Lng: to.lon},
				},
			})
			nextID++
			used[from.id] = true
			used[to.id] = true
		}
	}

	ids := make([]int64, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		n := b.nodes[id]
		network.Nodes = append(network.Nodes, model.Node{ID: n.id, Lat: n.lat, Lng: n.lon})
	}

	return network, nil
}

func parseEnvironment(tags map[string]string) model.RoadEnvironment {
	switch {
	case tags["tunnel"] != "" && tags["tunnel"] != "no":
		return model.EnvTunnel
	case tags["bridge"] != "" && tags["bridge"] != "no":
		return model.EnvBridge
	case tags["route"] == "ferry":
		return model.EnvFerry
	case tags["ford"] == "yes":
		return model.EnvFord
	default:
		return model.EnvRoad
	}
}

// parseMaxSpeed 解析 maxspeed 标签, 返回 米/秒; 无法解析时返回 0
// 支持 "50" (km/h) 和 "30 mph"
func parseMaxSpeed(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	mph := false
	if num, ok := strings.CutSuffix(v, "mph"); ok {
		v = strings.TrimSpace(num)
		mph = true
	}
	speed, err := strconv.ParseFloat(v, 64)
	if err != nil || speed <= 0 {
		return 0
	}
	if mph {
		return speed * 0.44704
	}
	return speed / 3.6
}

func reversed(ids []int64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
