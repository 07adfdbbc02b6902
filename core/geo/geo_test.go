package geo

import (
	"math"
	"testing"
)

func TestDistanceKmKnownPairs(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		wantKm                 float64
		tolKm                  float64
	}{
		{name: "paris to london", lat1: 48.8566, lng1: 2.3522, lat2: 51.5074, lng2: -0.1278, wantKm: 343.5, tolKm: 1},
		{name: "new york to los angeles", lat1: 40.7128, lng1: -74.0060, lat2: 34.0522, lng2: -118.2437, wantKm: 3935.7, tolKm: 5},
		{name: "equator quarter turn", lat1: 0, lng1: 0, lat2: 0, lng2: 90, wantKm: 10007.5, tolKm: 15},
		{name: "short hop", lat1: 45.0, lng1: 5.0, lat2: 45.0, lng2: 5.01, wantKm: 0.786, tolKm: 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolKm {
				t.Fatalf("DistanceKm = %v, want %v ± %v", got, tt.wantKm, tt.tolKm)
			}
		})
	}
}

func TestDistanceKmSymmetry(t *testing.T) {
	pairs := [][4]float64{
		{48.8566, 2.3522, 51.5074, -0.1278},
		{-33.8688, 151.2093, 35.6762, 139.6503},
		{0, 0, 0, 180},
		{89.9, 0, -89.9, 0},
	}
	for _, p := range pairs {
		ab := DistanceKm(p[0], p[1], p[2], p[3])
		ba := DistanceKm(p[2], p[3], p[0], p[1])
		if math.Abs(ab-ba) > 1e-9 {
			t.Fatalf("asymmetric distance: %v vs %v for %v", ab, ba, p)
		}
	}
}

func TestDistanceKmIdentity(t *testing.T) {
	for _, p := range [][2]float64{{0, 0}, {48.8566, 2.3522}, {-90, 0}, {12.34, -56.78}} {
		if d := DistanceKm(p[0], p[1], p[0], p[1]); d > 1e-9 {
			t.Fatalf("DistanceKm(a,a) = %v, want 0", d)
		}
	}
}

func TestDistanceKmNonNegative(t *testing.T) {
	if d := DistanceKm(10, 20, -30, -40); d < 0 {
		t.Fatalf("negative distance %v", d)
	}
}
