package geo_test

import (
	"testing"

	"github.com/msomdec/virtual-tourist/internal/geo"
)

func TestBoundingBoxFor(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     geo.BoundingBox
		wantStr  string
	}{
		{
			name: "interior point",
			lat:  10, lon: 20,
			want:    geo.BoundingBox{MinLon: 19, MinLat: 9, MaxLon: 21, MaxLat: 11},
			wantStr: "19,9,21,11",
		},
		{
			name: "north pole edge",
			lat:  89.5, lon: 0,
			want:    geo.BoundingBox{MinLon: -1, MinLat: 88.5, MaxLon: 1, MaxLat: 90},
			wantStr: "-1,88.5,1,90",
		},
		{
			name: "antimeridian is clipped",
			lat:  0, lon: 179.8,
			want:    geo.BoundingBox{MinLon: 178.8, MinLat: -1, MaxLon: 180, MaxLat: 1},
			wantStr: "178.8,-1,180,1",
		},
		{
			name: "south west corner",
			lat:  -90, lon: -180,
			want:    geo.BoundingBox{MinLon: -180, MinLat: -90, MaxLon: -179, MaxLat: -89},
			wantStr: "-180,-90,-179,-89",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := geo.BoundingBoxFor(tt.lat, tt.lon)
			if got != tt.want {
				t.Fatalf("BoundingBoxFor(%v, %v) = %+v, want %+v", tt.lat, tt.lon, got, tt.want)
			}
			if s := got.String(); s != tt.wantStr {
				t.Fatalf("String() = %q, want %q", s, tt.wantStr)
			}
		})
	}
}

func TestBoundingBoxForStaysInRange(t *testing.T) {
	for lat := -90.0; lat <= 90; lat += 7.5 {
		for lon := -180.0; lon <= 180; lon += 12.5 {
			b := geo.BoundingBoxFor(lat, lon)
			if b.MinLon < -180 || b.MaxLon > 180 || b.MinLat < -90 || b.MaxLat > 90 {
				t.Fatalf("box for (%v, %v) out of range: %+v", lat, lon, b)
			}
			if b.MinLon > b.MaxLon || b.MinLat > b.MaxLat {
				t.Fatalf("box for (%v, %v) inverted: %+v", lat, lon, b)
			}
		}
	}
}

func TestValidCoordinate(t *testing.T) {
	if !geo.ValidCoordinate(37.783, -122.417) {
		t.Fatal("expected San Francisco to be valid")
	}
	if geo.ValidCoordinate(91, 0) {
		t.Fatal("expected latitude 91 to be invalid")
	}
	if geo.ValidCoordinate(0, -181) {
		t.Fatal("expected longitude -181 to be invalid")
	}
}
