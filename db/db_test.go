package db

import (
	"reflect"
	"testing"
	"zone-router/model"
)

func TestSegmentRowRoundTripKeepsGeometry(t *testing.T) {
	seg := model.Segment{
		ID: 7, From: 1, To: 2,
		Class:        model.ClassTertiary,
		Environment:  model.EnvBridge,
		Length:       120.5,
		BaseSpeed:    11.1,
		BasePriority: 1,
		OneWay:       true,
		Geometry: []model.Coordinate{
			{Lat: 39.9, Lng: 116.3},
			{Lat: 39.901, Lng: 116.301},
			{Lat: 39.902, Lng: 116.303},
		},
	}
	row := toRow(seg)
	if row.TableName() != "road_segments" {
		t.Errorf("table = %q", row.TableName())
	}
	got, err := fromRow(row)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, seg) {
		t.Errorf("got %+v\nwant %+v", got, seg)
	}
}

func TestFromRowRejectsMismatchedGeometry(t *testing.T) {
	row := segmentRow{ID: 3, Lats: []float64{1, 2}, Lngs: []float64{1}}
	if _, err := fromRow(row); err == nil {
		t.Error("expected error for mismatched coordinate arrays")
	}
}

func TestFromRowUnknownEnumsFallBack(t *testing.T) {
	got, err := fromRow(segmentRow{ID: 1, Class: "HIGHWAY", Environment: "NORMAL"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Class != model.ClassOther || got.Environment != model.EnvRoad {
		t.Errorf("class=%v env=%v", got.Class, got.Environment)
	}
}
