package sentinel

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ParseBBox reads "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox must have 4 comma separated values, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid bbox value %q: %w", p, err)
		}
		v[i] = f
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	if b.Left() >= b.Right() || b.Bottom() >= b.Top() {
		return orb.Bound{}, fmt.Errorf("bbox min must be lower than max, got %q", s)
	}
	if b.Left() < -180 || b.Right() > 180 || b.Bottom() < -90 || b.Top() > 90 {
		return orb.Bound{}, fmt.Errorf("bbox %q is outside WGS84 bounds", s)
	}
	return b, nil
}

// GetBoundsFromGeoJSON returns the bounds of every geometry in a GeoJSON
// FeatureCollection, Feature or bare Geometry file.
func GetBoundsFromGeoJSON(filePath string) (orb.Bound, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return orb.Bound{}, err
	}

	var geometries []orb.Geometry
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		for _, f := range fc.Features {
			geometries = append(geometries, f.Geometry)
		}
	} else if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		geometries = append(geometries, f.Geometry)
	} else if g, err := geojson.UnmarshalGeometry(data); err == nil && g.Coordinates != nil {
		geometries = append(geometries, g.Coordinates)
	}

	var bound orb.Bound
	found := false
	for _, g := range geometries {
		if g == nil {
			continue
		}
		if !found {
			bound, found = g.Bound(), true
			continue
		}
		bound = bound.Union(g.Bound())
	}
	if !found {
		return orb.Bound{}, fmt.Errorf("no geometry found in %s", filePath)
	}
	return bound, nil
}

// GetCentroidLatitudeLongitude returns the centroid of the bounds.
func GetCentroidLatitudeLongitude(b orb.Bound) (float64, float64, error) {
	centroid, area := planar.CentroidArea(b.ToPolygon())
	if area <= 0 {
		return 0, 0, errors.New("error getting centroid")
	}
	return centroid.Y(), centroid.X(), nil
}
