package algo

import (
	"math"
	"zone-router/model"
	"zone-router/profile"
)

// CostFunc 计算一条边在某个配置下的代价和实际通行时间 (秒)
type CostFunc func(e *Edge) (cost, seconds float64, err error)

// TravelTime 调整后的通行时间 (秒) = 长度 / (基础速度 × 速度系数)
func TravelTime(seg *model.Segment, speedMul float64) float64 {
	return seg.Length / (seg.BaseSpeed * speedMul)
}

// EdgeCost 路段代价 = 调整后的通行时间 + 优先级惩罚
// 优先级惩罚 = 长度 × 1/(基础优先级 × 优先级系数) × 1/distanceInfluence
// distanceInfluence 越大, 惩罚占比越小, 越接近纯粹的最短时间
func EdgeCost(seg *model.Segment, speedMul, priorityMul, distanceInfluence float64) (float64, error) {
	for _, m := range []struct {
		target string
		value  float64
	}{
		{"speed", speedMul},
		{"priority", priorityMul},
		{"distance_influence", distanceInfluence},
	} {
		if !(m.value > 0) || math.IsInf(m.value, 0) {
			return 0, &model.InvalidMultiplierError{Target: m.target, Value: m.value}
		}
	}

	travel := TravelTime(seg, speedMul)
	penalty := seg.Length * (1 / (seg.BasePriority * priorityMul)) * (1 / distanceInfluence)
	return travel + penalty, nil
}

// ProfileCost 组合配置评估和代价模型, 得到寻路使用的代价函数
func ProfileCost(p *profile.Profile) CostFunc {
	return func(e *Edge) (float64, float64, error) {
		speedMul, priorityMul, err := p.Evaluate(e.Segment, e.Zones)
		if err != nil {
			return 0, 0, err
		}
		cost, err := EdgeCost(e.Segment, speedMul, priorityMul, p.DistanceInfluence)
		if err != nil {
			if multErr, ok := err.(*model.InvalidMultiplierError); ok {
				multErr.Profile = p.Name
			}
			return 0, 0, err
		}
		return cost, TravelTime(e.Segment, speedMul), nil
	}
}
