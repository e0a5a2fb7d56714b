package algo

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"slices"
	"zone-router/model"
)

// cancelCheckInterval 每弹出多少个节点检查一次 context
const cancelCheckInterval = 256

// PriorityQueueItem 优先队列中的元素
type PriorityQueueItem struct {
	NodeID int64
	Cost   float64
	Index  int // 在堆中的索引
}

// PriorityQueue 实现 heap.Interface 接口的优先队列
// 代价相同时按节点 ID 升序出队, 保证结果可复现
type PriorityQueue []*PriorityQueueItem

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	if pq[i].Cost != pq[j].Cost {
		return pq[i].Cost < pq[j].Cost
	}
	return pq[i].NodeID < pq[j].NodeID
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *PriorityQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*PriorityQueueItem)
	item.Index = n
	*pq = append(*pq, item)
}

func (pq *PriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // 避免内存泄漏
	item.Index = -1 // 标记为已移除
	*pq = old[0 : n-1]
	return item
}

// label 到达某节点的最优记录
type label struct {
	cost    float64
	seconds float64
	edge    *Edge // 到达该节点使用的边
}

// ShortestPath 使用 Dijkstra 算法寻找代价最小的路径
// 边的代价在遍历时按需计算; 代价相同的两条路径取前驱节点 ID 更小的一条
func (g *Graph) ShortestPath(ctx context.Context, startID, endID int64, costFn CostFunc) (*model.Route, error) {
	if g.Nodes[startID] == nil || g.Nodes[endID] == nil {
		return nil, fmt.Errorf("起点或终点不在路网中: %w", model.ErrNoSnapTarget)
	}

	labels := map[int64]*label{startID: {}}
	visited := make(map[int64]bool)

	// 初始化优先队列
	pq := make(PriorityQueue, 0)
	heap.Init(&pq)
	heap.Push(&pq, &PriorityQueueItem{NodeID: startID, Cost: 0})

	// Dijkstra 主循环
	pops := 0
	for pq.Len() > 0 {
		pops++
		if pops%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("寻路中断: %w", model.ErrTimeout)
			}
		}

		current := heap.Pop(&pq).(*PriorityQueueItem)
		currentID := current.NodeID

		// 如果已访问过，跳过
		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		// 如果到达终点，提前退出
		if currentID == endID {
			break
		}

		cur := labels[currentID]
		for _, edge := range g.GetNeighbors(currentID) {
			if visited[edge.To] {
				continue
			}
			edgeCost, edgeSeconds, err := costFn(edge)
			if err != nil {
				return nil, err
			}

			newCost := cur.cost + edgeCost
			old, seen := labels[edge.To]
			if seen && !better(newCost, edge, old) {
				continue
			}
			labels[edge.To] = &label{
				cost:    newCost,
				seconds: cur.seconds + edgeSeconds,
				edge:    edge,
			}
			heap.Push(&pq, &PriorityQueueItem{NodeID: edge.To, Cost: newCost})
		}
	}

	// 已经超时的请求不返回结果
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("寻路中断: %w", model.ErrTimeout)
	}

	// 如果没有找到路径
	if !visited[endID] {
		return nil, model.ErrNoRouteFound
	}

	return g.buildRoute(startID, endID, labels), nil
}

// better 代价更低, 或代价相同但前驱节点 ID 更小 (再相同比较路段 ID)
func better(cost float64, edge *Edge, old *label) bool {
	if cost != old.cost {
		return cost < old.cost
	}
	if old.edge == nil {
		return false
	}
	if edge.From != old.edge.From {
		return edge.From < old.edge.From
	}
	return edge.Segment.ID < old.edge.Segment.ID
}

// buildRoute 回溯路径, 拼接几何并累计距离和时间
func (g *Graph) buildRoute(startID, endID int64, labels map[int64]*label) *model.Route {
	var edges []*Edge
	for at := endID; at != startID; {
		e := labels[at].edge
		edges = append(edges, e)
		at = e.From
	}
	slices.Reverse(edges)

	route := &model.Route{
		NodeIDs: []int64{startID},
		Cost:    labels[endID].cost,
	}
	start := g.Nodes[startID].Coordinate()
	route.Geometry = append(route.Geometry, start)

	for _, e := range edges {
		route.NodeIDs = append(route.NodeIDs, e.To)
		route.DistanceMeters += e.Segment.Length
		for _, c := range e.Geometry() {
			// 相邻路段首尾点重合, 去掉重复
			if last := route.Geometry[len(route.Geometry)-1]; last == c {
				continue
			}
			route.Geometry = append(route.Geometry, c)
		}
	}
	route.TimeMs = int64(math.Round(labels[endID].seconds * 1000))

	return route
}

// FormatPath 格式化路径结果为可读字符串
func FormatPath(route *model.Route) string {
	if route == nil {
		return "未找到路径"
	}

	output := fmt.Sprintf("配置: %s\n", route.Profile)
	output += fmt.Sprintf("总距离: %.2f 米 (%.2f 公里)\n", route.DistanceMeters, route.DistanceMeters/1000)
	output += fmt.Sprintf("预计时间: %.0f 秒 (%.1f 分钟)\n", float64(route.TimeMs)/1000, float64(route.TimeMs)/60000)
	output += fmt.Sprintf("途经节点: %d 个, 几何点: %d 个\n", len(route.NodeIDs), len(route.Geometry))

	return output
}
