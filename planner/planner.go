// Package planner 路径规划编排: 对每个请求的配置独立寻路, 汇总各自的结果
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"zone-router/algo"
	"zone-router/metrics"
	"zone-router/model"
	"zone-router/profile"
	"zone-router/zone"

	"golang.org/x/sync/errgroup"
)

// Snapshot 一份不可变的数据快照: 路网、区域、配置
type Snapshot struct {
	Graph    *algo.Graph
	Zones    *zone.Index
	Profiles *profile.Set
	LoadedAt time.Time
}

// Result 单个配置的规划结果, Route 与 Err 二选一
type Result struct {
	Route *model.Route
	Err   error
}

// Options 规划参数
type Options struct {
	Timeout          time.Duration // 单个配置的寻路时间预算
	SnapRadiusMeters float64
	Workers          int // 并发寻路数, 0 表示 CPU 核数
}

// Planner 路径规划器, 可被多个请求并发使用
type Planner struct {
	snapshot atomic.Pointer[Snapshot]
	opts     Options
	logger   *slog.Logger
}

// ErrNotReady 尚未加载任何数据快照
var ErrNotReady = errors.New("planner has no data snapshot loaded")

// New 创建规划器
func New(snap *Snapshot, opts Options, logger *slog.Logger) *Planner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Planner{opts: opts, logger: logger}
	if snap != nil {
		p.Swap(snap)
	}
	return p
}

// Swap 原子替换数据快照, 正在进行的请求继续使用旧快照
func (p *Planner) Swap(snap *Snapshot) {
	p.snapshot.Store(snap)
	metrics.GraphNodes.Set(float64(len(snap.Graph.Nodes)))
	metrics.GraphSegments.Set(float64(len(snap.Graph.Segments)))
	if snap.Zones != nil {
		metrics.Zones.Set(float64(snap.Zones.Len()))
	}
}

// Snapshot 当前数据快照, 未加载时为 nil
func (p *Planner) Snapshot() *Snapshot {
	return p.snapshot.Load()
}

// Plan 对请求中的每个配置独立寻路
// 某个配置失败不影响其他配置; 配置列表为空时返回空映射
func (p *Planner) Plan(ctx context.Context, req model.PlanningRequest) (map[string]Result, error) {
	results := make(map[string]Result, len(req.Profiles))
	if len(req.Profiles) == 0 {
		return results, nil
	}
	snap := p.snapshot.Load()
	if snap == nil {
		return nil, ErrNotReady
	}

	names := uniqueNames(req.Profiles)

	// 起终点吸附对所有配置相同, 失败时记录到每个配置上
	from, err := snap.Graph.Snap(req.Origin, p.opts.SnapRadiusMeters)
	if err != nil {
		return failAll(names, fmt.Errorf("origin: %w", err)), nil
	}
	to, err := snap.Graph.Snap(req.Destination, p.opts.SnapRadiusMeters)
	if err != nil {
		return failAll(names, fmt.Errorf("destination: %w", err)), nil
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(p.opts.Workers)
	for _, name := range names {
		g.Go(func() error {
			route, err := p.planProfile(ctx, snap, name, from, to)
			mu.Lock()
			results[name] = Result{Route: route, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// planProfile 在独立的时间预算内计算一个配置的路线
func (p *Planner) planProfile(ctx context.Context, snap *Snapshot, name string, from, to int64) (*model.Route, error) {
	prof, ok := snap.Profiles.Get(name)
	if !ok {
		err := fmt.Errorf("%q: %w", name, model.ErrUnknownProfile)
		metrics.PlanFailures.WithLabelValues(name, model.ErrorKind(err)).Inc()
		return nil, err
	}

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	route, err := snap.Graph.ShortestPath(ctx, from, to, algo.ProfileCost(prof))
	elapsed := time.Since(start)
	metrics.PlanDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		kind := model.ErrorKind(err)
		metrics.PlanFailures.WithLabelValues(name, kind).Inc()
		p.logger.DebugContext(ctx, "profile routing failed",
			slog.String("profile", name), slog.String("reason", kind), slog.Any("error", err))
		return nil, err
	}

	route.Profile = name
	p.logger.DebugContext(ctx, "profile routed",
		slog.String("profile", name),
		slog.Float64("distance_m", route.DistanceMeters),
		slog.Int64("time_ms", route.TimeMs),
		slog.Duration("elapsed", elapsed))
	return route, nil
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func failAll(names []string, err error) map[string]Result {
	results := make(map[string]Result, len(names))
	for _, n := range names {
		metrics.PlanFailures.WithLabelValues(n, model.ErrorKind(err)).Inc()
		results[n] = Result{Err: err}
	}
	return results
}
