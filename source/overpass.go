package source

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"zone-router/model"

	"github.com/serjvanilla/go-overpass"
)

// OverpassSource 通过 Overpass API 下载指定范围内的路网
type OverpassSource struct {
	client overpass.Client
	bbox   string
}

// NewOverpassSource bbox 格式为 "south,west,north,east"
func NewOverpassSource(endpoint, bbox string, timeout time.Duration) (*OverpassSource, error) {
	if err := validateBBox(bbox); err != nil {
		return nil, err
	}
	httpClient := &http.Client{
		Timeout: timeout,
	}
	return &OverpassSource{
		client: overpass.NewWithSettings(endpoint, 1, httpClient),
		bbox:   bbox,
	}, nil
}

// roadQuery 可通行道路及其引用的全部节点
func (s *OverpassSource) roadQuery() string {
	return fmt.Sprintf(`
		[out:json];
		(
			way["highway"](%s);
		);
		out body;
		>;
		out skel qt;
	`, s.bbox)
}

// LoadNetwork 执行查询并转换结果
func (s *OverpassSource) LoadNetwork(ctx context.Context) (*model.Network, error) {
	type queryResult struct {
		result overpass.Result
		err    error
	}
	done := make(chan queryResult, 1)
	go func() {
		result, err := s.client.Query(s.roadQuery())
		done <- queryResult{result: result, err: err}
	}()

	var result overpass.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", r.err)
		}
		result = r.result
	}

	return convertOverpass(&result)
}

func convertOverpass(result *overpass.Result) (*model.Network, error) {
	b := newNetworkBuilder("overpass")
	for _, node := range result.Nodes {
		b.addNode(node.ID, node.Lat, node.Lon)
	}
	for _, way := range result.Ways {
		ids := make([]int64, 0, len(way.Nodes))
		for _, n := range way.Nodes {
			if n == nil {
				continue
			}
			ids = append(ids, n.ID)
		}
		b.addWay(way.ID, way.Tags, ids)
	}
	return b.build()
}

func validateBBox(bbox string) error {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return fmt.Errorf("bbox %q: expected south,west,north,east", bbox)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("bbox %q: %w", bbox, err)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return fmt.Errorf("bbox %q: south/west must be less than north/east", bbox)
	}
	return nil
}
