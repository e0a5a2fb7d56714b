package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"zone-router/model"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmxml"
)

// OSMFileSource 从本地 .osm (XML) 文件读取路网
type OSMFileSource struct {
	Path string
}

// LoadNetwork 读取并转换整个文件
func (s *OSMFileSource) LoadNetwork(ctx context.Context) (*model.Network, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("打开 OSM 文件失败: %w", err)
	}
	defer f.Close()

	return ReadOSM(ctx, s.Path, f)
}

// ReadOSM 解析 OSM XML 数据流
func ReadOSM(ctx context.Context, name string, r io.Reader) (*model.Network, error) {
	scanner := osmxml.New(ctx, r)
	defer scanner.Close()

	b := newNetworkBuilder(name)
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			b.addNode(int64(o.ID), o.Lat, o.Lon)
		case *osm.Way:
			ids := make([]int64, len(o.Nodes))
			for i, wn := range o.Nodes {
				ids[i] = int64(wn.ID)
			}
			b.addWay(int64(o.ID), o.Tags.Map(), ids)
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &MalformedError{Source: name, Err: err}
	}

	return b.build()
}
