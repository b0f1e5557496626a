package standardize

import (
	"math"
	"sync"

	"github.com/couchcryptid/climate-index/internal/domain"
)

// DefaultTolerance is the largest distance, in degrees, between a cell and
// its matched reference cell. ERA5 single-level grids are spaced 0.25 deg.
const DefaultTolerance = 0.25

const defaultCacheSize = 4096

type match struct {
	index    int
	distance float64
}

// Aligner maps cells of one grid onto the cells of a reference grid.
// Identical grids map by index; otherwise each cell takes its nearest
// reference cell, which must lie within the tolerance.
type Aligner struct {
	ref       []domain.Cell
	tolerance float64
	cache     *lruCache[domain.Cell, match]
	onLookup  func(hit bool)
}

// NewAligner creates an aligner over the reference cells. A tolerance <= 0
// uses DefaultTolerance.
func NewAligner(ref []domain.Cell, tolerance float64) *Aligner {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Aligner{
		ref:       ref,
		tolerance: tolerance,
		cache:     newLRUCache[domain.Cell, match](defaultCacheSize),
	}
}

// Index returns the reference index matched to c.
func (a *Aligner) Index(c domain.Cell) (int, error) {
	m, ok := a.cache.get(c)
	if a.onLookup != nil {
		a.onLookup(ok)
	}
	if !ok {
		m.index, m.distance = NearestIndex(a.ref, c)
		a.cache.put(c, m)
	}
	if m.index < 0 || m.distance > a.tolerance {
		e := &domain.SpatialMismatchError{Cell: c, Distance: m.distance, Tolerance: a.tolerance}
		if m.index >= 0 {
			e.Nearest = a.ref[m.index]
		}
		return -1, e
	}
	return m.index, nil
}

// Map returns, for every cell, the index of its reference cell.
func (a *Aligner) Map(cells []domain.Cell) ([]int, error) {
	out := make([]int, len(cells))
	if sameGrid(cells, a.ref) {
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	for i, c := range cells {
		idx, err := a.Index(c)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// Aligners hands out one Aligner per reference grid, so the cell matches of
// one year are reused by the following years and by every component that
// shares the grid. The zero value is not usable; a nil *Aligners hands out
// fresh aligners with DefaultTolerance.
type Aligners struct {
	tolerance float64
	onLookup  func(hit bool)

	mu  sync.Mutex
	all []*Aligner
}

// NewAligners creates a registry. onLookup, when not nil, observes every
// cache lookup of the aligners it creates.
func NewAligners(tolerance float64, onLookup func(hit bool)) *Aligners {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Aligners{tolerance: tolerance, onLookup: onLookup}
}

// For returns the aligner over ref, creating it on first use.
func (s *Aligners) For(ref []domain.Cell) *Aligner {
	if s == nil {
		return NewAligner(ref, DefaultTolerance)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.all {
		if sameGrid(a.ref, ref) {
			return a
		}
	}
	a := NewAligner(ref, s.tolerance)
	a.onLookup = s.onLookup
	s.all = append(s.all, a)
	return a
}

// NearestIndex returns the index of the reference cell closest to c in
// planar degrees and its distance. It returns -1 and +Inf for an empty grid.
func NearestIndex(ref []domain.Cell, c domain.Cell) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i, r := range ref {
		d := math.Hypot(r.Lat-c.Lat, r.Lon-c.Lon)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func sameGrid(a, b []domain.Cell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
