// Package db PostgreSQL 路网存储 (import 命令写入, database 数据源读取)
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"zone-router/config"
	"zone-router/model"

	"github.com/cenkalti/backoff/v5"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// segmentRow road_segments 表的一行, 几何拆成纬度和经度两个数组列
type segmentRow struct {
	ID           int64           `gorm:"primaryKey;autoIncrement:false"`
	FromNode     int64           `gorm:"index;not null"`
	ToNode       int64           `gorm:"index;not null"`
	Class        string          `gorm:"size:32"`
	Environment  string          `gorm:"size:16"`
	Length       float64         `gorm:"not null"`
	BaseSpeed    float64         `gorm:"not null"`
	BasePriority float64         `gorm:"not null;default:1"`
	OneWay       bool            `gorm:"not null;default:false"`
	Lats         pq.Float64Array `gorm:"type:double precision[]"`
	Lngs         pq.Float64Array `gorm:"type:double precision[]"`
}

func (segmentRow) TableName() string { return "road_segments" }

const batchSize = 500

// Open 连接数据库并迁移表结构
// 带重试 (Docker 启动时数据库可能还没准备好)
func Open(ctx context.Context, cfg config.DatabaseConfig, attempts int, logger *slog.Logger) (*gorm.DB, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	connect := func() (*gorm.DB, error) {
		conn, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			sqlDB.Close()
			return nil, err
		}
		return conn, nil
	}

	conn, err := backoff.Retry(ctx, connect,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "等待数据库就绪", slog.Any("error", err), slog.Duration("next", next))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w: %v", model.ErrDataSourceUnavailable, err)
	}

	// 自动迁移模式 (自动创建表结构)
	if err := conn.WithContext(ctx).AutoMigrate(&model.Node{}, &segmentRow{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}
	return conn, nil
}

// SaveNetwork 在一个事务中替换已存储的路网
func SaveNetwork(ctx context.Context, conn *gorm.DB, network *model.Network) error {
	rows := make([]segmentRow, len(network.Segments))
	for i, s := range network.Segments {
		rows[i] = toRow(s)
	}

	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&segmentRow{}).Error; err != nil {
			return fmt.Errorf("清空路段失败: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&model.Node{}).Error; err != nil {
			return fmt.Errorf("清空节点失败: %w", err)
		}
		if len(network.Nodes) > 0 {
			if err := tx.CreateInBatches(network.Nodes, batchSize).Error; err != nil {
				return fmt.Errorf("插入节点失败: %w", err)
			}
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
				return fmt.Errorf("插入路段失败: %w", err)
			}
		}
		return nil
	})
}

// LoadNetwork 读取全部节点和路段, 按 ID 排序
func LoadNetwork(ctx context.Context, conn *gorm.DB) (*model.Network, error) {
	var nodes []model.Node
	if err := conn.WithContext(ctx).Order("id").Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("读取节点失败: %w", err)
	}
	var rows []segmentRow
	if err := conn.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("读取路段失败: %w", err)
	}

	network := &model.Network{Nodes: nodes, Segments: make([]model.Segment, 0, len(rows))}
	for _, r := range rows {
		seg, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		network.Segments = append(network.Segments, seg)
	}
	return network, nil
}

func toRow(s model.Segment) segmentRow {
	row := segmentRow{
		ID:           s.ID,
		FromNode:     s.From,
		ToNode:       s.To,
		Class:        string(s.Class),
		Environment:  string(s.Environment),
		Length:       s.Length,
		BaseSpeed:    s.BaseSpeed,
		BasePriority: s.BasePriority,
		OneWay:       s.OneWay,
		Lats:         make(pq.Float64Array, len(s.Geometry)),
		Lngs:         make(pq.Float64Array, len(s.Geometry)),
	}
	for i, c := range s.Geometry {
		row.Lats[i] = c.Lat
		row.Lngs[i] = c.Lng
	}
	return row
}

func fromRow(r segmentRow) (model.Segment, error) {
	if len(r.Lats) != len(r.Lngs) {
		return model.Segment{}, fmt.Errorf("路段 %d 几何数据损坏: %d 个纬度, %d 个经度", r.ID, len(r.Lats), len(r.Lngs))
	}
	class, ok := model.LookupRoadClass(r.Class)
	if !ok {
		class = model.ClassOther
	}
	env, ok := model.LookupRoadEnvironment(r.Environment)
	if !ok {
		env = model.EnvRoad
	}
	seg := model.Segment{
		ID:           r.ID,
		From:         r.FromNode,
		To:           r.ToNode,
		Class:        class,
		Environment:  env,
		Length:       r.Length,
		BaseSpeed:    r.BaseSpeed,
		BasePriority: r.BasePriority,
		OneWay:       r.OneWay,
		Geometry:     make([]model.Coordinate, len(r.Lats)),
	}
	for i := range r.Lats {
		seg.Geometry[i] = model.Coordinate{Lat: r.Lats[i], Lng: r.Lngs[i]}
	}
	return seg, nil
}
