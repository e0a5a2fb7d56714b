// Package zone 规避区域索引: 给定坐标, 返回包含该点的所有区域
package zone

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"zone-router/model"
	"zone-router/utils"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultCellSize 粗网格的默认边长 (度), 约 1 公里
const DefaultCellSize = 0.01

// maxCellsPerZone 单个区域最多登记的网格数
const maxCellsPerZone = 10000

// Set 某个点所在的区域 ID 集合, 有序且无重复 (评估时按此顺序相乘)
type Set []string

// NewSet 从任意 ID 列表构造集合
func NewSet(ids ...string) Set {
	s := append(Set(nil), ids...)
	sort.Strings(s)
	return slices.Compact(s)
}

// Has 判断是否属于指定区域
func (s Set) Has(id string) bool {
	i := sort.SearchStrings(s, id)
	return i < len(s) && s[i] == id
}

// IDs 有序的区域 ID 列表
func (s Set) IDs() []string {
	return []string(s)
}

type cellKey struct {
	x, y int
}

type entry struct {
	zone  model.Zone
	ring  orb.Ring
	bound orb.Bound
}

// Index 区域索引, 构建后只读, 可被并发查询共享
type Index struct {
	// 按 ID 排序
	entries []entry
	// 网格 -> 外包框覆盖该网格的区域下标
	cells    map[cellKey][]int
	cellSize float64
	large    []int // 覆盖网格数超过 maxCellsPerZone 的区域, 每次查询都参与检查
	byID     map[string]int
}

// NewIndex 校验区域并构建索引
// cellSize <= 0 时不建网格, 查询退化为线性扫描
func NewIndex(zones []model.Zone, cellSize float64) (*Index, error) {
	idx := &Index{
		entries:  make([]entry, 0, len(zones)),
		cellSize: cellSize,
		byID:     make(map[string]int, len(zones)),
	}

	for _, z := range zones {
		if err := validate(z); err != nil {
			return nil, err
		}
		if _, dup := idx.byID[z.ID]; dup {
			return nil, &model.ZoneDataError{ZoneID: z.ID, Reason: "duplicate zone id"}
		}
		ring := utils.ToOrbRing(z.Ring)
		idx.byID[z.ID] = len(idx.entries)
		idx.entries = append(idx.entries, entry{zone: z, ring: ring, bound: ring.Bound()})
	}

	sort.Slice(idx.entries, func(i, j int) bool {
		return idx.entries[i].zone.ID < idx.entries[j].zone.ID
	})
	for i, e := range idx.entries {
		idx.byID[e.zone.ID] = i
	}

	if cellSize > 0 {
		idx.cells = make(map[cellKey][]int)
		for i, e := range idx.entries {
			minX, minY := idx.cellOf(e.bound.Min)
			maxX, maxY := idx.cellOf(e.bound.Max)
			if int64(maxX-minX+1)*int64(maxY-minY+1) > maxCellsPerZone {
				idx.large = append(idx.large, i)
				continue
			}
			for x := minX; x <= maxX; x++ {
				for y := minY; y <= maxY; y++ {
					k := cellKey{x, y}
					idx.cells[k] = append(idx.cells[k], i)
				}
			}
		}
	}

	return idx, nil
}

// validate 环至少 3 个不同顶点且首尾闭合
func validate(z model.Zone) error {
	if z.ID == "" {
		return &model.ZoneDataError{ZoneID: z.ID, Reason: "missing zone id"}
	}
	if len(z.Ring) < 4 {
		return &model.ZoneDataError{ZoneID: z.ID, Reason: fmt.Sprintf("ring has %d points, need at least 3 vertices plus closure", len(z.Ring))}
	}
	if z.Ring[0] != z.Ring[len(z.Ring)-1] {
		return &model.ZoneDataError{ZoneID: z.ID, Reason: "ring is not closed"}
	}
	distinct := make(map[model.Coordinate]struct{}, len(z.Ring)-1)
	for _, c := range z.Ring[:len(z.Ring)-1] {
		distinct[c] = struct{}{}
	}
	if len(distinct) < 3 {
		return &model.ZoneDataError{ZoneID: z.ID, Reason: "ring has fewer than 3 distinct vertices"}
	}
	for _, c := range z.Ring {
		if !c.Valid() || math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
			return &model.ZoneDataError{ZoneID: z.ID, Reason: fmt.Sprintf("invalid coordinate %v", c)}
		}
	}
	if z.Severity < 0 || z.Severity > 1 || math.IsNaN(z.Severity) {
		return &model.ZoneDataError{ZoneID: z.ID, Reason: fmt.Sprintf("severity %v outside [0, 1]", z.Severity)}
	}
	return nil
}

func (idx *Index) cellOf(p orb.Point) (int, int) {
	return int(math.Floor(p[0] / idx.cellSize)), int(math.Floor(p[1] / idx.cellSize))
}

// candidates 返回外包框可能包含该点的区域下标 (升序)
func (idx *Index) candidates(p orb.Point) []int {
	if idx.cells == nil {
		all := make([]int, len(idx.entries))
		for i := range all {
			all[i] = i
		}
		return all
	}
	x, y := idx.cellOf(p)
	cell := idx.cells[cellKey{x, y}]
	if len(idx.large) == 0 {
		return cell
	}
	// 两个升序列表归并
	merged := make([]int, 0, len(cell)+len(idx.large))
	i, j := 0, 0
	for i < len(cell) && j < len(idx.large) {
		if cell[i] < idx.large[j] {
			merged = append(merged, cell[i])
			i++
		} else {
			merged = append(merged, idx.large[j])
			j++
		}
	}
	merged = append(merged, cell[i:]...)
	return append(merged, idx.large[j:]...)
}

// Containing 返回包含该坐标的所有区域 (按 ID 排序), 没有时返回空切片
func (idx *Index) Containing(c model.Coordinate) []model.Zone {
	p := utils.ToOrbPoint(c)
	result := []model.Zone{}
	for _, i := range idx.candidates(p) {
		e := idx.entries[i]
		if e.bound.Contains(p) && planar.RingContains(e.ring, p) {
			result = append(result, e.zone)
		}
	}
	return result
}

// Membership 返回包含该坐标的区域 ID 集合
func (idx *Index) Membership(c model.Coordinate) Set {
	zones := idx.Containing(c)
	if len(zones) == 0 {
		return nil
	}
	set := make(Set, len(zones))
	for i, z := range zones {
		set[i] = z.ID
	}
	return set
}

// Get 按 ID 获取区域
func (idx *Index) Get(id string) (model.Zone, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return model.Zone{}, false
	}
	return idx.entries[i].zone, true
}

// IDs 所有区域 ID (有序)
func (idx *Index) IDs() []string {
	ids := make([]string, len(idx.entries))
	for i, e := range idx.entries {
		ids[i] = e.zone.ID
	}
	return ids
}

// Zones 所有区域 (按 ID 排序)
func (idx *Index) Zones() []model.Zone {
	zones := make([]model.Zone, len(idx.entries))
	for i, e := range idx.entries {
		zones[i] = e.zone
	}
	return zones
}

// Len 区域数量
func (idx *Index) Len() int {
	return len(idx.entries)
}
