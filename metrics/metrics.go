// Package metrics 路径规划服务的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PlanDuration 单个配置的寻路耗时 (秒)
var PlanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "zonerouter",
	Name:      "plan_duration_seconds",
	Help:      "Per-profile route computation duration in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
}, []string{"profile"})

// PlanFailures 按配置和原因统计的寻路失败次数
var PlanFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zonerouter",
	Name:      "plan_failures_total",
	Help:      "Per-profile route computation failures by reason.",
}, []string{"profile", "reason"})

// SnapshotLoads 数据快照加载次数 (result = ok / error)
var SnapshotLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zonerouter",
	Name:      "snapshot_loads_total",
	Help:      "Road network and zone snapshot loads.",
}, []string{"result"})

// GraphNodes 当前快照的节点数
var GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "zonerouter",
	Name:      "graph_nodes",
	Help:      "Nodes in the active road network snapshot.",
})

// GraphSegments 当前快照的路段数
var GraphSegments = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "zonerouter",
	Name:      "graph_segments",
	Help:      "Road segments in the active road network snapshot.",
})

// Zones 当前快照的区域数
var Zones = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "zonerouter",
	Name:      "zones",
	Help:      "Avoidance zones in the active snapshot.",
})
