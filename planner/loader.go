package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"zone-router/algo"
	"zone-router/config"
	"zone-router/db"
	"zone-router/metrics"
	"zone-router/profile"
	"zone-router/source"
	"zone-router/zone"
)

// Loader 从各数据源构建数据快照
type Loader struct {
	Roads        source.RoadSource
	Zones        source.ZoneSource
	ProfilesPath string
	CellSize     float64
	Retry        source.RetryPolicy
	Logger       *slog.Logger

	closers []func() error
}

// RetryPolicy 用配置覆盖默认重试策略, 未设置的字段保持默认值
func RetryPolicy(cfg config.LoaderConfig) source.RetryPolicy {
	policy := source.DefaultRetryPolicy()
	if cfg.Attempts > 0 {
		policy.Attempts = cfg.Attempts
	}
	if cfg.AttemptTimeout > 0 {
		policy.Timeout = cfg.AttemptTimeout
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	return policy
}

// NewLoader 根据配置创建数据源
func NewLoader(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		ProfilesPath: cfg.Profiles.File,
		CellSize:     cfg.Zones.CellSize,
		Retry:        RetryPolicy(cfg.Loader),
		Logger:       logger,
	}

	switch cfg.Roads.Source {
	case config.RoadsOSMFile:
		l.Roads = &source.OSMFileSource{Path: cfg.Roads.OSMFile}
	case config.RoadsOverpass:
		src, err := source.NewOverpassSource(cfg.Roads.OverpassURL, cfg.Roads.BBox, cfg.Roads.HTTPTimeout)
		if err != nil {
			return nil, err
		}
		l.Roads = src
	case config.RoadsDatabase:
		conn, err := db.Open(ctx, cfg.Database, cfg.Loader.Attempts, logger)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := conn.DB(); err == nil {
			l.closers = append(l.closers, sqlDB.Close)
		}
		l.Roads = &source.DBSource{DB: conn}
	default:
		return nil, fmt.Errorf("unknown roads source %q", cfg.Roads.Source)
	}

	switch cfg.Zones.Source {
	case config.ZonesGeoJSON:
		l.Zones = &source.GeoJSONZoneSource{Path: cfg.Zones.File}
	case config.ZonesSQL:
		src, err := source.OpenSQLZoneSource(cfg.Zones.Driver, cfg.Zones.DSN, cfg.Zones.Query)
		if err != nil {
			l.Close()
			return nil, err
		}
		l.closers = append(l.closers, src.Close)
		l.Zones = src
	default:
		l.Close()
		return nil, fmt.Errorf("unknown zones source %q", cfg.Zones.Source)
	}

	return l, nil
}

// Load 依次加载区域、配置表、路网, 任何一步失败都不产生快照
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	snap, err := l.load(ctx)
	if err != nil {
		metrics.SnapshotLoads.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SnapshotLoads.WithLabelValues("ok").Inc()
	return snap, nil
}

func (l *Loader) load(ctx context.Context) (*Snapshot, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	zones, err := source.Retry(ctx, logger, "zones", l.Retry, l.Zones.LoadZones)
	if err != nil {
		return nil, fmt.Errorf("加载区域失败: %w", err)
	}
	index, err := zone.NewIndex(zones, l.CellSize)
	if err != nil {
		return nil, err
	}

	// 配置表引用的区域必须存在, 所以在区域之后加载
	profiles, err := profile.Load(l.ProfilesPath, index)
	if err != nil {
		return nil, err
	}

	network, err := source.Retry(ctx, logger, "roads", l.Retry, l.Roads.LoadNetwork)
	if err != nil {
		return nil, fmt.Errorf("加载路网失败: %w", err)
	}
	graph, err := algo.NewGraph(network, index)
	if err != nil {
		return nil, fmt.Errorf("构建路网图失败: %w", err)
	}

	logger.InfoContext(ctx, "snapshot loaded",
		slog.Int("nodes", len(graph.Nodes)),
		slog.Int("segments", len(graph.Segments)),
		slog.Int("zones", index.Len()),
		slog.Any("profiles", profiles.Names()),
		slog.Duration("elapsed", time.Since(start)))

	return &Snapshot{Graph: graph, Zones: index, Profiles: profiles, LoadedAt: time.Now()}, nil
}

// Refresh 重新加载并原子替换快照; 失败时继续使用旧快照
func (p *Planner) Refresh(ctx context.Context, l *Loader) error {
	snap, err := l.Load(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "snapshot refresh failed, keeping previous snapshot", slog.Any("error", err))
		return err
	}
	p.Swap(snap)
	return nil
}

// Close 释放数据源连接
func (l *Loader) Close() error {
	var errs []error
	for _, c := range l.closers {
		errs = append(errs, c())
	}
	l.closers = nil
	return errors.Join(errs...)
}
