package algo

import (
	"fmt"
	"sort"
	"zone-router/model"
	"zone-router/utils"
	"zone-router/zone"
)

// Edge 邻接表中的一条有向边
type Edge struct {
	Segment *model.Segment
	From    int64
	To      int64
	Reverse bool     // true 表示逆着路段几何方向行驶
	Zones   zone.Set // 路段中点所在的区域, 构建时预先计算
}

// Graph 图结构, 用于路径规划
// 构建完成后只读; 数据刷新时整体替换, 不做原地修改
type Graph struct {
	Nodes    map[int64]*model.Node // 节点字典 (ID -> Node)
	AdjList  map[int64][]*Edge     // 邻接表 (ID -> 出边列表)
	NodeIDs  []int64               // 有序节点 ID (用于确定性遍历)
	Segments []*model.Segment
}

// NewGraph 由路网和区域索引构建图
// 路段引用不存在的节点、速度非正等视为数据源格式错误
func NewGraph(network *model.Network, zones *zone.Index) (*Graph, error) {
	g := &Graph{
		Nodes:   make(map[int64]*model.Node, len(network.Nodes)),
		AdjList: make(map[int64][]*Edge),
	}

	// 加载节点
	for i := range network.Nodes {
		node := network.Nodes[i]
		if _, dup := g.Nodes[node.ID]; dup {
			return nil, fmt.Errorf("节点重复: %d", node.ID)
		}
		if !node.Coordinate().Valid() {
			return nil, fmt.Errorf("节点 %d 坐标非法: %v", node.ID, node.Coordinate())
		}
		g.Nodes[node.ID] = &node
		g.NodeIDs = append(g.NodeIDs, node.ID)
	}
	sort.Slice(g.NodeIDs, func(i, j int) bool { return g.NodeIDs[i] < g.NodeIDs[j] })

	// 加载路段, 补全长度和几何, 并计算所在区域
	for i := range network.Segments {
		seg := network.Segments[i]
		from, to := g.Nodes[seg.From], g.Nodes[seg.To]
		if from == nil || to == nil {
			return nil, fmt.Errorf("路段 %d 引用了不存在的节点 (%d -> %d)", seg.ID, seg.From, seg.To)
		}
		if len(seg.Geometry) < 2 {
			seg.Geometry = []model.Coordinate{from.Coordinate(), to.Coordinate()}
		}
		// 如果长度为 0，则自动计算
		if seg.Length == 0 {
			seg.Length = utils.PolylineLength(seg.Geometry)
		}
		if seg.Length < 0 {
			return nil, fmt.Errorf("路段 %d 长度为负: %v", seg.ID, seg.Length)
		}
		if seg.BaseSpeed == 0 {
			seg.BaseSpeed = model.DefaultSpeed(seg.Class)
		}
		if seg.BaseSpeed < 0 {
			return nil, fmt.Errorf("路段 %d 速度为负: %v", seg.ID, seg.BaseSpeed)
		}
		if seg.BasePriority == 0 {
			seg.BasePriority = 1
		}
		if seg.BasePriority < 0 {
			return nil, fmt.Errorf("路段 %d 优先级为负: %v", seg.ID, seg.BasePriority)
		}
		if seg.Environment == "" {
			seg.Environment = model.EnvRoad
		}

		s := &seg
		g.Segments = append(g.Segments, s)

		var membership zone.Set
		if zones != nil {
			membership = zones.Membership(s.Midpoint())
		}

		g.AdjList[s.From] = append(g.AdjList[s.From], &Edge{Segment: s, From: s.From, To: s.To, Zones: membership})
		// 双向道路添加反向边
		if !s.OneWay {
			g.AdjList[s.To] = append(g.AdjList[s.To], &Edge{Segment: s, From: s.To, To: s.From, Reverse: true, Zones: membership})
		}
	}

	// 邻接表按 (目标节点, 路段 ID, 方向) 排序, 遍历顺序与数据源顺序无关
	for _, edges := range g.AdjList {
		sort.Slice(edges, func(i, j int) bool {
			a, b := edges[i], edges[j]
			if a.To != b.To {
				return a.To < b.To
			}
			if a.Segment.ID != b.Segment.ID {
				return a.Segment.ID < b.Segment.ID
			}
			return !a.Reverse && b.Reverse
		})
	}

	return g, nil
}

// GetNeighbors 获取指定节点的出边
func (g *Graph) GetNeighbors(nodeID int64) []*Edge {
	return g.AdjList[nodeID]
}

// FindNearestNode 找到离给定坐标最近的节点, 距离相同时取 ID 最小者
func (g *Graph) FindNearestNode(c model.Coordinate) (*model.Node, float64) {
	var nearest *model.Node
	minDist := -1.0

	for _, id := range g.NodeIDs {
		node := g.Nodes[id]
		dist := utils.HaversineDistance(c, node.Coordinate())

		if minDist < 0 || dist < minDist {
			minDist = dist
			nearest = node
		}
	}

	return nearest, minDist
}

// Snap 将任意坐标吸附到搜索半径内最近的路网节点
func (g *Graph) Snap(c model.Coordinate, radiusMeters float64) (int64, error) {
	node, dist := g.FindNearestNode(c)
	if node == nil || dist > radiusMeters {
		return 0, fmt.Errorf("吸附 (%.6f, %.6f) 失败: %w", c.Lat, c.Lng, model.ErrNoSnapTarget)
	}
	return node.ID, nil
}

// Geometry 按行驶方向返回边的几何
func (e *Edge) Geometry() []model.Coordinate {
	if !e.Reverse {
		return e.Segment.Geometry
	}
	n := len(e.Segment.Geometry)
	rev := make([]model.Coordinate, n)
	for i, c := range e.Segment.Geometry {
		rev[n-1-i] = c
	}
	return rev
}
