// Package profile 代价配置 (custom model): 按规则调整路段的速度和优先级
package profile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"zone-router/model"
	"zone-router/zone"
)

// Baseline 基准配置名称, 没有任何规则
const Baseline = "baseline"

// DefaultDistanceInfluence 未配置时的 distance_influence
const DefaultDistanceInfluence = 70.0

// Rule 一条规则: 谓词成立时乘以系数
type Rule struct {
	If         string  `toml:"if" json:"if"`
	MultiplyBy float64 `toml:"multiply_by" json:"multiply_by"`
}

// Definition 配置文件中的一个配置
// ZoneSpeed / ZonePriority 是 区域ID -> 系数 的映射, 与 "in_<区域ID>" 规则等价
type Definition struct {
	DistanceInfluence float64            `toml:"distance_influence" json:"distance_influence"`
	Speed             []Rule             `toml:"speed" json:"speed,omitempty"`
	Priority          []Rule             `toml:"priority" json:"priority,omitempty"`
	ZoneSpeed         map[string]float64 `toml:"zone_speed" json:"zone_speed,omitempty"`
	ZonePriority      map[string]float64 `toml:"zone_priority" json:"zone_priority,omitempty"`
}

type predicateKind int

const (
	predClass predicateKind = iota
	predEnvironment
	predSeverity
)

// condition 编译后的非区域规则
type condition struct {
	rule       string
	kind       predicateKind
	class      model.RoadClass
	env        model.RoadEnvironment
	zones      zone.Set // predSeverity: 严重程度达到阈值的区域
	multiplier float64
}

func (c *condition) matches(seg *model.Segment, membership zone.Set) bool {
	switch c.kind {
	case predClass:
		return seg.Class == c.class
	case predEnvironment:
		return seg.Environment == c.env
	case predSeverity:
		for _, id := range membership {
			if c.zones.Has(id) {
				return true
			}
		}
	}
	return false
}

type zoneRule struct {
	rule       string
	multiplier float64
}

// ruleSet 速度或优先级的一组规则
type ruleSet struct {
	conditions []condition
	zones      map[string][]zoneRule // 同一区域可被多条规则引用, 逐条校验后相乘
}

func (rs *ruleSet) size() int {
	return len(rs.conditions) + len(rs.zones)
}

// Profile 编译后的不可变配置
type Profile struct {
	Name              string
	DistanceInfluence float64
	speed             ruleSet
	priority          ruleSet
}

// Summary 配置概要 (用于接口展示)
type Summary struct {
	Name              string  `json:"name"`
	DistanceInfluence float64 `json:"distance_influence"`
	SpeedRules        int     `json:"speed_rules"`
	PriorityRules     int     `json:"priority_rules"`
}

// Summary 返回配置概要
func (p *Profile) Summary() Summary {
	return Summary{
		Name:              p.Name,
		DistanceInfluence: p.DistanceInfluence,
		SpeedRules:        p.speed.size(),
		PriorityRules:     p.priority.size(),
	}
}

// Compile 校验并编译一个配置
// 引用未知谓词、未知取值或不存在的区域时返回 *model.ProfileConfigError
func Compile(name string, def Definition, zones *zone.Index) (*Profile, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &model.ProfileConfigError{Profile: name, Reason: "missing profile name"}
	}
	di := def.DistanceInfluence
	if di == 0 {
		di = DefaultDistanceInfluence
	}
	if di < 0 || math.IsNaN(di) || math.IsInf(di, 0) {
		return nil, &model.ProfileConfigError{Profile: name, Reason: fmt.Sprintf("distance_influence %v must be positive", def.DistanceInfluence)}
	}

	p := &Profile{Name: name, DistanceInfluence: di}
	var err error
	if p.speed, err = compileRules(name, def.Speed, def.ZoneSpeed, zones); err != nil {
		return nil, err
	}
	if p.priority, err = compileRules(name, def.Priority, def.ZonePriority, zones); err != nil {
		return nil, err
	}
	return p, nil
}

func compileRules(profile string, rules []Rule, zoneMap map[string]float64, zones *zone.Index) (ruleSet, error) {
	rs := ruleSet{zones: make(map[string][]zoneRule)}

	addZone := func(rule, id string, mult float64) error {
		if zones == nil {
			return &model.ProfileConfigError{Profile: profile, Rule: rule, Reason: "zone rules require a loaded zone set"}
		}
		if _, ok := zones.Get(id); !ok {
			return &model.ProfileConfigError{Profile: profile, Rule: rule, Reason: fmt.Sprintf("unknown zone %q", id)}
		}
		rs.zones[id] = append(rs.zones[id], zoneRule{rule: rule, multiplier: mult})
		return nil
	}

	for _, r := range rules {
		expr := strings.TrimSpace(r.If)
		if id, ok := strings.CutPrefix(expr, "in_"); ok && !strings.ContainsAny(id, " =<>!") {
			if err := addZone(expr, id, r.MultiplyBy); err != nil {
				return rs, err
			}
			continue
		}
		cond, err := parseCondition(profile, expr, zones)
		if err != nil {
			return rs, err
		}
		cond.multiplier = r.MultiplyBy
		rs.conditions = append(rs.conditions, cond)
	}

	ids := make([]string, 0, len(zoneMap))
	for id := range zoneMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := addZone("in_"+id, id, zoneMap[id]); err != nil {
			return rs, err
		}
	}
	return rs, nil
}

// parseCondition 解析 "road_class == PRIMARY" / "road_environment == TUNNEL" / "severity >= 0.8"
func parseCondition(profile, expr string, zones *zone.Index) (condition, error) {
	fail := func(reason string) (condition, error) {
		return condition{}, &model.ProfileConfigError{Profile: profile, Rule: expr, Reason: reason}
	}

	op := "=="
	left, right, ok := strings.Cut(expr, "==")
	if !ok {
		op = ">="
		if left, right, ok = strings.Cut(expr, ">="); !ok {
			return fail("unknown predicate")
		}
	}
	left, right = strings.TrimSpace(left), strings.TrimSpace(right)

	switch {
	case left == "road_class" && op == "==":
		class, ok := model.LookupRoadClass(right)
		if !ok {
			return fail(fmt.Sprintf("unknown road_class %q", right))
		}
		return condition{rule: expr, kind: predClass, class: class}, nil
	case left == "road_environment" && op == "==":
		env, ok := model.LookupRoadEnvironment(right)
		if !ok {
			return fail(fmt.Sprintf("unknown road_environment %q", right))
		}
		return condition{rule: expr, kind: predEnvironment, env: env}, nil
	case left == "severity" && op == ">=":
		threshold, err := strconv.ParseFloat(right, 64)
		if err != nil {
			return fail(fmt.Sprintf("invalid severity threshold %q", right))
		}
		var ids []string
		if zones != nil {
			for _, z := range zones.Zones() {
				if z.Severity >= threshold {
					ids = append(ids, z.ID)
				}
			}
		}
		return condition{rule: expr, kind: predSeverity, zones: zone.NewSet(ids...)}, nil
	default:
		return fail("unknown predicate")
	}
}

// Evaluate 对路段应用配置, 返回速度系数和优先级系数
// 所有命中的规则按乘积合并, 初始值 1.0; 出现非正数系数时返回 *model.InvalidMultiplierError
func (p *Profile) Evaluate(seg *model.Segment, membership zone.Set) (speed, priority float64, err error) {
	if speed, err = p.apply("speed", &p.speed, seg, membership); err != nil {
		return 0, 0, err
	}
	if priority, err = p.apply("priority", &p.priority, seg, membership); err != nil {
		return 0, 0, err
	}
	return speed, priority, nil
}

func (p *Profile) apply(target string, rs *ruleSet, seg *model.Segment, membership zone.Set) (float64, error) {
	result := 1.0
	for i := range rs.conditions {
		c := &rs.conditions[i]
		if !c.matches(seg, membership) {
			continue
		}
		if !validMultiplier(c.multiplier) {
			return 0, &model.InvalidMultiplierError{Profile: p.Name, Target: target, Rule: c.rule, Value: c.multiplier}
		}
		result *= c.multiplier
	}
	for _, id := range membership {
		for _, zr := range rs.zones[id] {
			if !validMultiplier(zr.multiplier) {
				return 0, &model.InvalidMultiplierError{Profile: p.Name, Target: target, Rule: zr.rule, Value: zr.multiplier}
			}
			result *= zr.multiplier
		}
	}
	// 很多极小系数相乘可能下溢为 0
	if !validMultiplier(result) {
		return 0, &model.InvalidMultiplierError{Profile: p.Name, Target: target, Value: result}
	}
	return result, nil
}

func validMultiplier(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
