package geojson

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A unit square around (lat 4..5, lon -75..-74) and a detached island.
const collection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "mainland"},
     "geometry": {"type": "Polygon", "coordinates": [[[-75,4],[-74,4],[-74,5],[-75,5],[-75,4]]]}},
    {"type": "Feature", "properties": {"name": "island"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[-81.8,12.4],[-81.6,12.4],[-81.6,12.7],[-81.8,12.7],[-81.8,12.4]]]]}},
    {"type": "Feature", "properties": {"name": "gauge"},
     "geometry": {"type": "Point", "coordinates": [-77, 3.9]}}
  ]
}`

func TestParse_FeatureCollection(t *testing.T) {
	r, err := Parse("colombia", []byte(collection))
	require.NoError(t, err)

	assert.True(t, r.Contains(domain.Cell{Lat: 4.5, Lon: -74.5}))
	assert.True(t, r.Contains(domain.Cell{Lat: 12.5, Lon: -81.7}))
	assert.False(t, r.Contains(domain.Cell{Lat: 3.9, Lon: -77}), "points do not add area")
	assert.False(t, r.Contains(domain.Cell{Lat: 8, Lon: -78}), "inside bound, outside polygons")
	assert.False(t, r.Contains(domain.Cell{Lat: 40, Lon: 0}))
}

func TestParse_FeatureAndGeometry(t *testing.T) {
	feature := `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}`
	r, err := Parse("f", []byte(feature))
	require.NoError(t, err)
	assert.True(t, r.Contains(domain.Cell{Lat: 0.5, Lon: 0.5}))

	geometry := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
	r, err = Parse("g", []byte(geometry))
	require.NoError(t, err)
	assert.True(t, r.Contains(domain.Cell{Lat: 0.5, Lon: 0.5}))
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("x", []byte(`not json`))
	assert.Error(t, err)

	_, err = Parse("x", []byte(`{"type":"Point","coordinates":[1,2]}`))
	assert.ErrorIs(t, err, domain.ErrInvalidSeries)
}

func TestClip(t *testing.T) {
	r, err := Parse("colombia", []byte(collection))
	require.NoError(t, err)

	times := []time.Time{time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}
	cells := []domain.Cell{{Lat: 4.5, Lon: -74.5}, {Lat: 10, Lon: 10}, {Lat: 4.25, Lon: -74.25}}
	s, err := domain.NewGridSeries("t2m", cells, times, [][]float64{{1}, {2}, {3}})
	require.NoError(t, err)

	got, err := r.Clip(s)
	require.NoError(t, err)
	assert.Equal(t, []domain.Cell{cells[0], cells[2]}, got.Cells)
	assert.Equal(t, [][]float64{{1}, {3}}, got.Values)
	assert.Equal(t, times, got.Times)

	far, err := domain.NewGridSeries("t2m", cells[1:2], times, [][]float64{{2}})
	require.NoError(t, err)
	_, err = r.Clip(far)
	assert.ErrorIs(t, err, domain.ErrNoValidData)
}

func TestStore_Region(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "la_guajira.geojson"), []byte(collection), 0o600))

	r, err := s.Region("La Guajira")
	require.NoError(t, err)
	assert.Equal(t, "La Guajira", r.Name)

	_, err = s.Region("amazonas")
	assert.ErrorIs(t, err, domain.ErrMissingInput)
}
