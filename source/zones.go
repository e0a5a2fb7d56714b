package source

import (
	"context"
	"fmt"
	"os"
	"sort"
	"zone-router/model"
	"zone-router/utils"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	_ "modernc.org/sqlite"
)

// GeoJSONZoneSource 从 GeoJSON FeatureCollection 文件读取规避区域
// 每个 Feature 的属性: id (字符串), level (0..1 严重程度), name (可选)
type GeoJSONZoneSource struct {
	Path string
}

// LoadZones 读取文件并转换; 校验交给 zone.NewIndex
func (s *GeoJSONZoneSource) LoadZones(ctx context.Context) ([]model.Zone, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("读取区域文件失败: %w", err)
	}
	return ParseZones(s.Path, data)
}

// ParseZones 解析 GeoJSON FeatureCollection
// MultiPolygon 展开为多个区域, ID 为 "<id>_<n>"
func ParseZones(name string, data []byte) ([]model.Zone, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &MalformedError{Source: name, Err: err}
	}

	var zones []model.Zone
	for i, f := range fc.Features {
		id := propString(f.Properties, "id")
		if id == "" && f.ID != nil {
			id = fmt.Sprint(f.ID)
		}
		if id == "" {
			return nil, &model.ZoneDataError{ZoneID: fmt.Sprintf("#%d", i), Reason: "missing id"}
		}
		severity, ok := propFloat(f.Properties, "level")
		if !ok {
			return nil, &model.ZoneDataError{ZoneID: id, Reason: "missing numeric level"}
		}
		zoneName := propString(f.Properties, "name")

		fz, err := geometryZones(id, zoneName, severity, f.Geometry)
		if err != nil {
			return nil, err
		}
		zones = append(zones, fz...)
	}
	return zones, nil
}

// geometryZones 把 Polygon / MultiPolygon 转为区域, 其他几何类型报错
func geometryZones(id, name string, severity float64, g orb.Geometry) ([]model.Zone, error) {
	switch geom := g.(type) {
	case orb.Polygon:
		z, err := polygonZone(id, name, severity, geom)
		if err != nil {
			return nil, err
		}
		return []model.Zone{z}, nil
	case orb.MultiPolygon:
		zones := make([]model.Zone, 0, len(geom))
		for n, poly := range geom {
			z, err := polygonZone(fmt.Sprintf("%s_%d", id, n+1), name, severity, poly)
			if err != nil {
				return nil, err
			}
			zones = append(zones, z)
		}
		return zones, nil
	default:
		return nil, &model.ZoneDataError{ZoneID: id, Reason: fmt.Sprintf("unsupported geometry %T", g)}
	}
}

// polygonZone 只接受单个外环; 带洞的多边形需要拆分后再导入
func polygonZone(id, name string, severity float64, poly orb.Polygon) (model.Zone, error) {
	if len(poly) > 1 {
		return model.Zone{}, &model.ZoneDataError{ZoneID: id, Reason: fmt.Sprintf("polygon has %d interior rings, holes are not supported", len(poly)-1)}
	}
	z := model.Zone{ID: id, Name: name, Severity: severity}
	if len(poly) > 0 {
		z.Ring = make([]model.Coordinate, len(poly[0]))
		for i, p := range poly[0] {
			z.Ring[i] = utils.FromOrbPoint(p)
		}
	}
	return z, nil
}

func propString(p geojson.Properties, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func propFloat(p geojson.Properties, key string) (float64, bool) {
	v, ok := p[key].(float64)
	return v, ok
}

// DefaultZoneQuery SQL 区域表的默认查询, geojson 列为 Polygon 或 MultiPolygon 几何
const DefaultZoneQuery = `SELECT id, name, severity, geojson FROM zones ORDER BY id`

// SQLZoneSource 从数据库表读取规避区域, 支持 postgres 与 sqlite
type SQLZoneSource struct {
	DB    *sqlx.DB
	Query string
}

type zoneRow struct {
	ID       string  `db:"id"`
	Name     *string `db:"name"`
	Severity float64 `db:"severity"`
	GeoJSON  string  `db:"geojson"`
}

// OpenSQLZoneSource driver 为 "postgres" 或 "sqlite"
func OpenSQLZoneSource(driver, dsn, query string) (*SQLZoneSource, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("连接区域数据库失败: %w", err)
	}
	if query == "" {
		query = DefaultZoneQuery
	}
	return &SQLZoneSource{DB: db, Query: query}, nil
}

// LoadZones 查询全部区域
func (s *SQLZoneSource) LoadZones(ctx context.Context) ([]model.Zone, error) {
	var rows []zoneRow
	if err := s.DB.SelectContext(ctx, &rows, s.Query); err != nil {
		return nil, fmt.Errorf("查询区域失败: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	zones := make([]model.Zone, 0, len(rows))
	for _, r := range rows {
		g, err := geojson.UnmarshalGeometry([]byte(r.GeoJSON))
		if err != nil {
			return nil, &model.ZoneDataError{ZoneID: r.ID, Reason: "invalid geojson: " + err.Error()}
		}
		name := ""
		if r.Name != nil {
			name = *r.Name
		}
		fz, err := geometryZones(r.ID, name, r.Severity, g.Geometry())
		if err != nil {
			return nil, err
		}
		zones = append(zones, fz...)
	}
	return zones, nil
}

// Close 关闭数据库连接
func (s *SQLZoneSource) Close() error {
	return s.DB.Close()
}
