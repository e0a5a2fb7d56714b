package source

import (
	"context"
	"zone-router/db"
	"zone-router/model"

	"gorm.io/gorm"
)

// DBSource 从 PostgreSQL 路网表读取 (由 import 命令写入)
type DBSource struct {
	DB *gorm.DB
}

// LoadNetwork 读取全部节点和路段
func (s *DBSource) LoadNetwork(ctx context.Context) (*model.Network, error) {
	network, err := db.LoadNetwork(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if len(network.Nodes) == 0 {
		return nil, malformed("database", "road network tables are empty")
	}
	return network, nil
}
