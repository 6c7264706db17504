package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKm(t *testing.T) {
	dhaka := Point{Lat: 23.8103, Lng: 90.4125}
	chittagong := Point{Lat: 22.3569, Lng: 91.7832}

	t.Run("point to itself is zero", func(t *testing.T) {
		for _, p := range []Point{dhaka, {}, {Lat: 89.9, Lng: -179.9}, {Lat: -45.123456, Lng: 12.987654}} {
			assert.InDelta(t, 0, DistanceKm(p, p), 1e-6, "point %+v", p)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.InDelta(t, DistanceKm(dhaka, chittagong), DistanceKm(chittagong, dhaka), 1e-9)
	})

	t.Run("one degree of longitude at the equator", func(t *testing.T) {
		d := DistanceKm(Point{Lat: 0, Lng: 0}, Point{Lat: 0, Lng: 1})
		assert.InDelta(t, 111.19, d, 0.01)
	})

	t.Run("known city pair", func(t *testing.T) {
		assert.InDelta(t, 213, DistanceKm(dhaka, chittagong), 5)
	})

	t.Run("antipodes", func(t *testing.T) {
		d := DistanceKm(Point{Lat: 0, Lng: 0}, Point{Lat: 0, Lng: 180})
		assert.InDelta(t, 20015.09, d, 0.1)
	})
}

func TestPointValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Point
		wantErr bool
	}{
		{"origin", Point{}, false},
		{"corners", Point{Lat: -90, Lng: 180}, false},
		{"lat too high", Point{Lat: 90.1}, true},
		{"lng too low", Point{Lng: -180.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCoordinates)
			} else {
				require.NoError(t, err)
			}
		})
	}

	_, err := NewPoint(100, 0)
	require.ErrorIs(t, err, ErrInvalidCoordinates)
}
