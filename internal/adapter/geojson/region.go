// Package geojson loads region boundaries and clips grids to them.
package geojson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Region is a named area bounded by one or more polygons.
type Region struct {
	Name     string
	polygons []orb.Polygon
	bound    orb.Bound
}

// Store resolves region names to <dir>/<name>.geojson.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the boundary file of name.
func (s *Store) Path(name string) string {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	return filepath.Join(s.dir, slug+".geojson")
}

// Region loads the boundary of name. A missing file is domain.ErrMissingInput.
func (s *Store) Region(name string) (*Region, error) {
	path := s.Path(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: region boundary %s", domain.ErrMissingInput, path)
	}
	if err != nil {
		return nil, err
	}
	r, err := Parse(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a FeatureCollection, Feature or bare geometry. Only polygon
// and multipolygon geometries contribute to the region.
func Parse(name string, data []byte) (*Region, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	var geoms []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("decode feature collection: %w", err)
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("decode feature: %w", err)
		}
		geoms = append(geoms, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("decode geometry: %w", err)
		}
		geoms = append(geoms, g.Geometry())
	}

	r := &Region{Name: name}
	for _, g := range geoms {
		switch g := g.(type) {
		case orb.Polygon:
			r.add(g)
		case orb.MultiPolygon:
			for _, p := range g {
				r.add(p)
			}
		}
	}
	if len(r.polygons) == 0 {
		return nil, fmt.Errorf("%w: region %s has no polygon", domain.ErrInvalidSeries, name)
	}
	return r, nil
}

func (r *Region) add(p orb.Polygon) {
	if len(r.polygons) == 0 {
		r.bound = p.Bound()
	} else {
		r.bound = r.bound.Union(p.Bound())
	}
	r.polygons = append(r.polygons, p)
}

// Contains reports whether the cell centre lies inside the region.
func (r *Region) Contains(c domain.Cell) bool {
	pt := orb.Point{c.Lon, c.Lat}
	if !r.bound.Contains(pt) {
		return false
	}
	return planar.MultiPolygonContains(orb.MultiPolygon(r.polygons), pt)
}

// Clip returns the sub-series of cells inside the region. A region that
// holds no cell of the grid is domain.ErrNoValidData.
func (r *Region) Clip(s domain.GridSeries) (domain.GridSeries, error) {
	var cells []domain.Cell
	var values [][]float64
	for i, c := range s.Cells {
		if r.Contains(c) {
			cells = append(cells, c)
			values = append(values, s.Values[i])
		}
	}
	if len(cells) == 0 {
		return domain.GridSeries{}, fmt.Errorf("%w: region %s contains no cell of %s", domain.ErrNoValidData, r.Name, s.Variable)
	}
	return domain.GridSeries{Variable: s.Variable, Cells: cells, Times: s.Times, Values: values}, nil
}
