package main

import (
	"testing"
	"zone-router/model"
)

func TestParseLatLng(t *testing.T) {
	got, err := parseLatLng("39.90, 116.30")
	if err != nil {
		t.Fatal(err)
	}
	if got != (model.Coordinate{Lat: 39.90, Lng: 116.30}) {
		t.Errorf("got %+v", got)
	}

	for _, bad := range []string{"", "39.9", "a,b", "91,0", "0,181", "1,2,3"} {
		if _, err := parseLatLng(bad); err == nil {
			t.Errorf("parseLatLng(%q) should fail", bad)
		}
	}
}
