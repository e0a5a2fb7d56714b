package profile

import (
	"errors"
	"testing"
	"zone-router/model"
	"zone-router/zone"
)

func testIndex(t *testing.T) *zone.Index {
	t.Helper()
	ring := func(lat, lng float64) []model.Coordinate {
		return []model.Coordinate{
			{Lat: lat, Lng: lng},
			{Lat: lat, Lng: lng + 0.01},
			{Lat: lat + 0.01, Lng: lng + 0.01},
			{Lat: lat + 0.01, Lng: lng},
			{Lat: lat, Lng: lng},
		}
	}
	idx, err := zone.NewIndex([]model.Zone{
		{ID: "zone_high_1", Severity: 0.9, Ring: ring(0, 0)},
		{ID: "zone_med_1", Severity: 0.5, Ring: ring(0, 0.02)},
	}, zone.DefaultCellSize)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return idx
}

func segment(class model.RoadClass, env model.RoadEnvironment) *model.Segment {
	return &model.Segment{
		ID:           1,
		Class:        class,
		Environment:  env,
		Length:       100,
		BaseSpeed:    10,
		BasePriority: 1,
	}
}

func TestEvaluateZoneRule(t *testing.T) {
	idx := testIndex(t)
	p, err := Compile("aggressive", Definition{
		DistanceInfluence: 100,
		Speed: []Rule{
			{If: "in_zone_high_1", MultiplyBy: 0.3},
			{If: "in_zone_med_1", MultiplyBy: 0.7},
		},
	}, idx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	// 路段中点严格位于 zone_high_1 内部
	membership := idx.Membership(model.Coordinate{Lat: 0.005, Lng: 0.005})
	speed, priority, err := p.Evaluate(segment(model.ClassPrimary, model.EnvRoad), membership)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if speed != 0.3 {
		t.Errorf("speed multiplier = %v, want exactly 0.3", speed)
	}
	if priority != 1.0 {
		t.Errorf("priority multiplier = %v, want 1.0", priority)
	}
}

func TestEvaluateComposesByProduct(t *testing.T) {
	idx := testIndex(t)
	p, err := Compile("tolerant", Definition{
		Speed: []Rule{
			{If: "road_class == PRIMARY", MultiplyBy: 0.5},
			{If: "road_environment == BRIDGE", MultiplyBy: 0.8},
			{If: "road_class == MOTORWAY", MultiplyBy: 0.1},
		},
	}, idx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	speed, _, err := p.Evaluate(segment(model.ClassPrimary, model.EnvBridge), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if speed != 0.4 {
		t.Errorf("composed speed multiplier = %v, want 0.4", speed)
	}
}

func TestEvaluateZoneMapAndRuleList(t *testing.T) {
	idx := testIndex(t)
	p, err := Compile("mixed", Definition{
		Priority:     []Rule{{If: "in_zone_high_1", MultiplyBy: 0.5}},
		ZonePriority: map[string]float64{"zone_high_1": 0.5, "zone_med_1": 0.25},
	}, idx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	_, priority, err := p.Evaluate(segment(model.ClassResidential, model.EnvRoad), zone.NewSet("zone_high_1"))
	if err != nil {
		t.Fatal(err)
	}
	if priority != 0.25 {
		t.Errorf("zone_high_1 priority = %v, want 0.25", priority)
	}

	_, priority, _ = p.Evaluate(segment(model.ClassResidential, model.EnvRoad), zone.NewSet("zone_med_1"))
	if priority != 0.25 {
		t.Errorf("zone_med_1 priority = %v, want 0.25", priority)
	}

	_, priority, _ = p.Evaluate(segment(model.ClassResidential, model.EnvRoad), nil)
	if priority != 1 {
		t.Errorf("outside zones priority = %v, want 1", priority)
	}
}

func TestEvaluateSeverityPredicate(t *testing.T) {
	idx := testIndex(t)
	p, err := Compile("severe", Definition{
		Speed: []Rule{{If: "severity >= 0.8", MultiplyBy: 0.2}},
	}, idx)
	if err != nil {
		t.Fatal(err)
	}
	seg := segment(model.ClassPrimary, model.EnvRoad)
	if s, _, _ := p.Evaluate(seg, zone.NewSet("zone_high_1")); s != 0.2 {
		t.Errorf("high zone speed = %v", s)
	}
	if s, _, _ := p.Evaluate(seg, zone.NewSet("zone_med_1")); s != 1 {
		t.Errorf("medium zone speed = %v", s)
	}
}

func TestEvaluateRejectsNonPositiveMultiplier(t *testing.T) {
	idx := testIndex(t)
	p, err := Compile("broken", Definition{
		Speed: []Rule{{If: "road_class == PRIMARY", MultiplyBy: 0}},
	}, idx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	// 规则未命中时不报错
	if _, _, err := p.Evaluate(segment(model.ClassTertiary, model.EnvRoad), nil); err != nil {
		t.Errorf("non-matching rule should not fail: %v", err)
	}

	_, _, err = p.Evaluate(segment(model.ClassPrimary, model.EnvRoad), nil)
	var multErr *model.InvalidMultiplierError
	if !errors.As(err, &multErr) {
		t.Fatalf("expected InvalidMultiplierError, got %v", err)
	}
	if multErr.Target != "speed" || multErr.Profile != "broken" {
		t.Errorf("unexpected error detail: %+v", multErr)
	}
}

// 同一区域的两个负系数乘积为正, 仍然必须报错
func TestEvaluateRejectsNegativeZonePair(t *testing.T) {
	idx := testIndex(t)
	p, err := Compile("paired", Definition{
		Speed:     []Rule{{If: "in_zone_high_1", MultiplyBy: -0.5}},
		ZoneSpeed: map[string]float64{"zone_high_1": -2},
	}, idx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	_, _, err = p.Evaluate(segment(model.ClassPrimary, model.EnvRoad), zone.NewSet("zone_high_1"))
	var multErr *model.InvalidMultiplierError
	if !errors.As(err, &multErr) {
		t.Fatalf("expected InvalidMultiplierError, got %v", err)
	}
	if multErr.Value >= 0 {
		t.Errorf("reported value = %v, want the negative multiplier", multErr.Value)
	}

	// 两个合法系数仍按乘积合并
	p, err = Compile("stacked", Definition{
		Speed:     []Rule{{If: "in_zone_high_1", MultiplyBy: 0.5}},
		ZoneSpeed: map[string]float64{"zone_high_1": 0.5},
	}, idx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	speed, _, err := p.Evaluate(segment(model.ClassPrimary, model.EnvRoad), zone.NewSet("zone_high_1"))
	if err != nil || speed != 0.25 {
		t.Errorf("speed = %v, err = %v, want 0.25", speed, err)
	}
}

func TestCompileRejectsBadRules(t *testing.T) {
	idx := testIndex(t)
	tests := []struct {
		name string
		def  Definition
	}{
		{"unknown zone", Definition{Speed: []Rule{{If: "in_zone_high_99", MultiplyBy: 0.1}}}},
		{"unknown zone in map", Definition{ZonePriority: map[string]float64{"random_zone_7": 0.5}}},
		{"unknown predicate", Definition{Speed: []Rule{{If: "max_speed > 50", MultiplyBy: 0.5}}}},
		{"unknown road class", Definition{Priority: []Rule{{If: "road_class == HIGHWAY", MultiplyBy: 0.5}}}},
		{"unknown environment", Definition{Priority: []Rule{{If: "road_environment == CAVE", MultiplyBy: 0.5}}}},
		{"bad severity", Definition{Speed: []Rule{{If: "severity >= high", MultiplyBy: 0.5}}}},
		{"negative distance influence", Definition{DistanceInfluence: -1}},
	}
	for _, tt := range tests {
		_, err := Compile("p", tt.def, idx)
		var cfgErr *model.ProfileConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: expected ProfileConfigError, got %v", tt.name, err)
		}
	}
}

const profileTable = `
[profiles.aggressive]
distance_influence = 100.0
speed = [
  { if = "road_environment == TUNNEL", multiply_by = 0.5 },
]
priority = [
  { if = "road_environment == TUNNEL", multiply_by = 0.2 },
]

[profiles.aggressive.zone_speed]
zone_high_1 = 0.01
zone_med_1 = 0.3

[profiles.tolerant]
distance_influence = 150.0
speed = [
  { if = "road_class == MOTORWAY", multiply_by = 0.9 },
  { if = "in_zone_high_1", multiply_by = 0.7 },
]
`

func TestParse(t *testing.T) {
	set, err := Parse([]byte(profileTable), testIndex(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	names := set.Names()
	want := []string{"aggressive", "baseline", "tolerant"}
	if len(names) != len(want) {
		t.Fatalf("Names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names = %v, want %v", names, want)
		}
	}

	agg, _ := set.Get("aggressive")
	sum := agg.Summary()
	if sum.DistanceInfluence != 100 || sum.SpeedRules != 3 || sum.PriorityRules != 1 {
		t.Errorf("aggressive summary = %+v", sum)
	}

	base, _ := set.Get(Baseline)
	if base.DistanceInfluence != DefaultDistanceInfluence || base.Summary().SpeedRules != 0 {
		t.Errorf("baseline = %+v", base.Summary())
	}
}

func TestParseUnknownZoneFailsAtLoad(t *testing.T) {
	table := `
[profiles.aggressive]
speed = [ { if = "in_zone_high_99", multiply_by = 0.01 } ]
`
	_, err := Parse([]byte(table), testIndex(t))
	var cfgErr *model.ProfileConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ProfileConfigError, got %v", err)
	}
	if cfgErr.Rule != "in_zone_high_99" {
		t.Errorf("error should name the rule, got %+v", cfgErr)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	table := `
[profiles.aggressive]
distance_influense = 100.0
`
	_, err := Parse([]byte(table), testIndex(t))
	var cfgErr *model.ProfileConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ProfileConfigError for misspelled key, got %v", err)
	}
}

func TestNewSetRejectsDuplicates(t *testing.T) {
	a, _ := Compile("a", Definition{}, nil)
	b, _ := Compile("a", Definition{}, nil)
	if _, err := NewSet(a, b); err == nil {
		t.Error("expected duplicate name error")
	}
}
