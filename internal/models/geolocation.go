package models

import (
	"encoding/json"
	"fmt"
)

// Coordinate validation constants
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// GeoPoint is the optional map location of a property.
// It is stored and served as {"lat": .., "lng": ..}.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the point lies within WGS84 bounds.
func (g GeoPoint) Validate() error {
	if g.Lat < MinLatitude || g.Lat > MaxLatitude {
		return fmt.Errorf("latitude must be between %.0f and %.0f, got %f", MinLatitude, MaxLatitude, g.Lat)
	}
	if g.Lng < MinLongitude || g.Lng > MaxLongitude {
		return fmt.Errorf("longitude must be between %.0f and %.0f, got %f", MinLongitude, MaxLongitude, g.Lng)
	}
	return nil
}

// IsZero reports whether the point is the unset (0, 0) location.
func (g GeoPoint) IsZero() bool {
	return g.Lat == 0 && g.Lng == 0
}

// Fields encodes the point for the document store.
func (g GeoPoint) Fields() map[string]interface{} {
	return map[string]interface{}{"lat": g.Lat, "lng": g.Lng}
}

// UnmarshalJSON accepts either {"lat","lng"} or a GeoJSON Point, whose
// coordinates are in [lng, lat] order.
func (g *GeoPoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
		Lat         *float64  `json:"lat"`
		Lng         *float64  `json:"lng"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal location: %w", err)
	}

	switch {
	case raw.Type != "":
		if raw.Type != "Point" {
			return fmt.Errorf("expected Point type, got %s", raw.Type)
		}
		if len(raw.Coordinates) != 2 {
			return fmt.Errorf("point needs 2 coordinates, got %d", len(raw.Coordinates))
		}
		g.Lng, g.Lat = raw.Coordinates[0], raw.Coordinates[1]
	case raw.Lat != nil && raw.Lng != nil:
		g.Lat, g.Lng = *raw.Lat, *raw.Lng
	default:
		return fmt.Errorf("location needs lat and lng")
	}
	return nil
}
