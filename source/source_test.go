package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"zone-router/model"

	"github.com/jmoiron/sqlx"
	"github.com/serjvanilla/go-overpass"
)

var fastRetry = RetryPolicy{Attempts: 3, InitialInterval: time.Millisecond}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), nil, "flaky", fastRetry, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection refused")
		}
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("got %v, %v", v, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustedIsUnavailable(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), nil, "down", fastRetry, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("timeout")
	})
	if !errors.Is(err, model.ErrDataSourceUnavailable) {
		t.Errorf("expected ErrDataSourceUnavailable, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryDoesNotRetryMalformedData(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), nil, "bad", fastRetry, func(ctx context.Context) (int, error) {
		calls++
		return 0, &model.ZoneDataError{ZoneID: "z", Reason: "open ring"}
	})
	var zoneErr *model.ZoneDataError
	if !errors.As(err, &zoneErr) {
		t.Errorf("expected ZoneDataError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

const sampleOSM = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6">
  <node id="1" lat="39.900" lon="116.300"/>
  <node id="2" lat="39.901" lon="116.300"/>
  <node id="3" lat="39.902" lon="116.300"/>
  <node id="4" lat="39.902" lon="116.301"/>
  <node id="5" lat="39.903" lon="116.301"/>
  <way id="20">
    <nd ref="3"/>
    <nd ref="4"/>
    <tag k="highway" v="secondary"/>
    <tag k="oneway" v="-1"/>
    <tag k="tunnel" v="yes"/>
  </way>
  <way id="10">
    <nd ref="1"/>
    <nd ref="2"/>
    <nd ref="3"/>
    <tag k="highway" v="residential"/>
    <tag k="maxspeed" v="36"/>
  </way>
  <way id="30">
    <nd ref="4"/>
    <nd ref="5"/>
    <tag k="highway" v="footway"/>
  </way>
</osm>`

func TestReadOSM(t *testing.T) {
	network, err := ReadOSM(context.Background(), "sample", strings.NewReader(sampleOSM))
	if err != nil {
		t.Fatal(err)
	}
	// 人行道被跳过, 节点 5 不被引用
	if len(network.Nodes) != 4 {
		t.Errorf("nodes = %d, want 4", len(network.Nodes))
	}
	if len(network.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(network.Segments))
	}

	// 按道路 ID 排序: way 10 的两段在前
	first := network.Segments[0]
	if first.ID != 1 || first.From != 1 || first.To != 2 || first.Class != model.ClassResidential {
		t.Errorf("first segment = %+v", first)
	}
	if first.BaseSpeed != 10 || first.OneWay {
		t.Errorf("maxspeed 36 km/h should be 10 m/s two-way, got %v oneway=%v", first.BaseSpeed, first.OneWay)
	}

	tunnel := network.Segments[2]
	if tunnel.From != 4 || tunnel.To != 3 || !tunnel.OneWay {
		t.Errorf("oneway=-1 should reverse the way: %+v", tunnel)
	}
	if tunnel.Environment != model.EnvTunnel || tunnel.BaseSpeed != model.SpeedSecondary {
		t.Errorf("tunnel segment = %+v", tunnel)
	}
}

func TestReadOSMDanglingNode(t *testing.T) {
	data := `<osm><node id="1" lat="0" lon="0"/>
<way id="1"><nd ref="1"/><nd ref="99"/><tag k="highway" v="primary"/></way></osm>`
	_, err := ReadOSM(context.Background(), "dangling", strings.NewReader(data))
	var malformedErr *MalformedError
	if !errors.As(err, &malformedErr) {
		t.Errorf("expected MalformedError, got %v", err)
	}
}

func TestOSMFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.osm")
	if err := os.WriteFile(path, []byte(sampleOSM), 0o600); err != nil {
		t.Fatal(err)
	}
	src := &OSMFileSource{Path: path}
	network, err := src.LoadNetwork(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(network.Segments) != 3 {
		t.Errorf("segments = %d", len(network.Segments))
	}

	missing := &OSMFileSource{Path: filepath.Join(t.TempDir(), "absent.osm")}
	if _, err := missing.LoadNetwork(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConvertOverpass(t *testing.T) {
	n1 := &overpass.Node{Meta: overpass.Meta{ID: 1}, Lat: 0, Lon: 0}
	n2 := &overpass.Node{Meta: overpass.Meta{ID: 2}, Lat: 0, Lon: 0.001}
	result := &overpass.Result{
		Nodes: map[int64]*overpass.Node{1: n1, 2: n2},
		Ways: map[int64]*overpass.Way{
			5: {Meta: overpass.Meta{ID: 5, Tags: map[string]string{"highway": "motorway"}}, Nodes: []*overpass.Node{n1, n2}},
		},
	}
	network, err := convertOverpass(result)
	if err != nil {
		t.Fatal(err)
	}
	if len(network.Segments) != 1 || !network.Segments[0].OneWay {
		t.Errorf("motorway should be one-way: %+v", network.Segments)
	}
}

func TestValidateBBox(t *testing.T) {
	if err := validateBBox("39.9,116.3,40.0,116.4"); err != nil {
		t.Errorf("valid bbox rejected: %v", err)
	}
	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "40,116,39,117"} {
		if err := validateBBox(bad); err == nil {
			t.Errorf("bbox %q should be rejected", bad)
		}
	}
}

func TestParseMaxSpeed(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"36", 10},
		{"30 mph", 30 * 0.44704},
		{"", 0},
		{"signals", 0},
		{"-5", 0},
	}
	for _, tt := range tests {
		if got := parseMaxSpeed(tt.in); got != tt.want {
			t.Errorf("parseMaxSpeed(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

const sampleZones = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"id": "zone_high_1", "level": 0.9, "name": "Factory"},
      "geometry": {"type": "Polygon", "coordinates": [[[116.30,39.90],[116.31,39.90],[116.31,39.91],[116.30,39.91],[116.30,39.90]]]}
    },
    {
      "type": "Feature",
      "id": "zone_low",
      "properties": {"level": 0.2},
      "geometry": {"type": "MultiPolygon", "coordinates": [
        [[[0,0],[1,0],[1,1],[0,0]]],
        [[[2,2],[3,2],[3,3],[2,2]]]
      ]}
    }
  ]
}`

func TestParseZones(t *testing.T) {
	zones, err := ParseZones("sample", []byte(sampleZones))
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != 3 {
		t.Fatalf("zones = %d, want 3", len(zones))
	}
	high := zones[0]
	if high.ID != "zone_high_1" || high.Name != "Factory" || high.Severity != 0.9 || len(high.Ring) != 5 {
		t.Errorf("high = %+v", high)
	}
	// GeoJSON 坐标顺序为 [lng, lat]
	if high.Ring[1] != (model.Coordinate{Lat: 39.90, Lng: 116.31}) {
		t.Errorf("ring[1] = %+v", high.Ring[1])
	}
	if zones[1].ID != "zone_low_1" || zones[2].ID != "zone_low_2" {
		t.Errorf("multipolygon ids = %q %q", zones[1].ID, zones[2].ID)
	}
}

func TestParseZonesErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing level", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"id":"a"},
			"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`},
		{"missing id", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"level":0.5},
			"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`},
		{"point geometry", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"id":"a","level":0.5},
			"geometry":{"type":"Point","coordinates":[0,0]}}]}`},
		{"polygon with hole", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"id":"a","level":0.5},
			"geometry":{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,4],[0,4],[0,0]],[[1,1],[2,1],[2,2],[1,1]]]}}]}`},
		{"multipolygon with hole", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"id":"a","level":0.5},
			"geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[4,0],[4,4],[0,0]]],[[[5,5],[9,5],[9,9],[5,5]],[[6,6],[7,6],[7,7],[6,6]]]]}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseZones("bad", []byte(tt.data))
			var zoneErr *model.ZoneDataError
			if !errors.As(err, &zoneErr) {
				t.Errorf("expected ZoneDataError, got %v", err)
			}
		})
	}

	if _, err := ParseZones("garbage", []byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestSQLZoneSourceSQLite(t *testing.T) {
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	db.MustExec(`CREATE TABLE zones (id TEXT PRIMARY KEY, name TEXT, severity REAL NOT NULL, geojson TEXT NOT NULL)`)
	db.MustExec(`INSERT INTO zones VALUES (?, ?, ?, ?)`, "zone_b", nil, 0.4,
		`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`)
	db.MustExec(`INSERT INTO zones VALUES (?, ?, ?, ?)`, "zone_a", "Plant", 0.95,
		`{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]],[[[5,5],[6,5],[6,6],[5,5]]]]}`)

	src := &SQLZoneSource{DB: db, Query: DefaultZoneQuery}
	zones, err := src.LoadZones(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, z := range zones {
		ids = append(ids, z.ID)
	}
	if strings.Join(ids, ",") != "zone_a_1,zone_a_2,zone_b" {
		t.Errorf("ids = %v", ids)
	}
	if zones[0].Name != "Plant" || zones[2].Name != "" || zones[2].Severity != 0.4 {
		t.Errorf("zones = %+v", zones)
	}

	db.MustExec(`INSERT INTO zones VALUES (?, ?, ?, ?)`, "zone_c", nil, 0.1, `{broken`)
	if _, err := src.LoadZones(context.Background()); err == nil {
		t.Error("expected error for invalid geometry")
	}
}
