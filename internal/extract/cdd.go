package extract

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/couchcryptid/climate-index/internal/standardize"
)

// DefaultDryThreshold is the daily precipitation (metres) below which a day
// counts as dry.
const DefaultDryThreshold = 0.001

// CDDMethod selects how a year's dry sequence is reduced to a run length.
type CDDMethod int

const (
	// CDDMethodModal takes the highest value frequency of the dry sequence,
	// minus one when the sequence never returns to zero.
	CDDMethodModal CDDMethod = iota
	// CDDMethodLongest takes the longest dry run.
	CDDMethodLongest
)

func (m CDDMethod) String() string {
	switch m {
	case CDDMethodModal:
		return "modal"
	case CDDMethodLongest:
		return "longest"
	default:
		return fmt.Sprintf("cdd(%d)", int(m))
	}
}

// ParseCDDMethod parses "modal" or "longest".
func ParseCDDMethod(s string) (CDDMethod, error) {
	switch s {
	case "", "modal":
		return CDDMethodModal, nil
	case "longest":
		return CDDMethodLongest, nil
	default:
		return 0, fmt.Errorf("unknown cdd method %q", s)
	}
}

// RunLength reduces a dry sequence with the method.
func (m CDDMethod) RunLength(seq []int) int {
	if m == CDDMethodLongest {
		return LongestRun(seq)
	}
	return ModalRunLength(seq)
}

// DrySequence returns, per day, the number of consecutive dry days ending on
// that day. A wet day, or a non-finite value, resets the count to zero.
func DrySequence(values []float64, threshold float64) []int {
	seq := make([]int, len(values))
	run := 0
	for i, v := range values {
		if v < threshold {
			run++
		} else {
			// NaN compares false and lands here.
			run = 0
		}
		seq[i] = run
	}
	return seq
}

// ModalRunLength returns the highest frequency of any value in seq, minus one
// when seq contains no zero. An empty sequence yields zero.
func ModalRunLength(seq []int) int {
	if len(seq) == 0 {
		return 0
	}
	counts := make(map[int]int)
	best := 0
	for _, v := range seq {
		counts[v]++
		if counts[v] > best {
			best = counts[v]
		}
	}
	if _, ok := counts[0]; !ok {
		return best - 1
	}
	return best
}

// LongestRun returns the maximum of seq.
func LongestRun(seq []int) int {
	longest := 0
	for _, v := range seq {
		longest = max(longest, v)
	}
	return longest
}

// AnnualCDD returns one run length per cell for the given calendar year.
// The dry count restarts on January 1. A cell with no finite sample in the
// year is NaN.
func AnnualCDD(daily domain.GridSeries, year int, method CDDMethod, threshold float64) ([]float64, error) {
	ys := daily.Year(year)
	if ys.Len() == 0 {
		return nil, fmt.Errorf("%w: %s has no samples in %d", domain.ErrMissingInput, daily.Variable, year)
	}
	out := make([]float64, len(ys.Cells))
	for c, row := range ys.Values {
		if !anyFinite(row) {
			out[c] = math.NaN()
			continue
		}
		out[c] = float64(method.RunLength(DrySequence(row, threshold)))
	}
	return out, nil
}

// BlendCDD spreads an annual CDD raster over the months of year. With a prior
// December carry, month m is ((12-m)/12)*carry + (m/12)*annual and December
// equals annual. Without one, month m is annual*m/12. It returns the monthly
// series and the carry for the next year.
func BlendCDD(annual []float64, cells []domain.Cell, year int, prior *domain.CDDCarry, al *standardize.Aligners) (domain.GridSeries, domain.CDDCarry, error) {
	if len(annual) != len(cells) {
		return domain.GridSeries{}, domain.CDDCarry{}, fmt.Errorf("%w: %d annual values for %d cells", domain.ErrInvalidSeries, len(annual), len(cells))
	}

	carry := make([]float64, len(cells))
	if prior != nil {
		if prior.Year >= year {
			return domain.GridSeries{}, domain.CDDCarry{}, fmt.Errorf("cdd carry from %d is not before %d", prior.Year, year)
		}
		if len(prior.Values) != len(prior.Cells) {
			return domain.GridSeries{}, domain.CDDCarry{}, fmt.Errorf("%w: cdd carry has %d values for %d cells", domain.ErrInvalidSeries, len(prior.Values), len(prior.Cells))
		}
		idx, err := al.For(prior.Cells).Map(cells)
		if err != nil {
			return domain.GridSeries{}, domain.CDDCarry{}, fmt.Errorf("align cdd carry: %w", err)
		}
		for c := range cells {
			carry[c] = prior.Values[idx[c]]
		}
	}

	times := make([]time.Time, 12)
	values := make([][]float64, len(cells))
	for m := 1; m <= 12; m++ {
		times[m-1] = time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	}
	for c, a := range annual {
		row := make([]float64, 12)
		for m := 1; m <= 12; m++ {
			w := float64(m) / 12
			switch {
			case m == 12:
				row[m-1] = a
			case prior == nil:
				row[m-1] = a * w
			default:
				row[m-1] = (1-w)*carry[c] + w*a
			}
		}
		values[c] = row
	}

	next := domain.CDDCarry{Year: year, Cells: cells, Values: append([]float64(nil), annual...)}
	return domain.GridSeries{Variable: "cdd", Cells: cells, Times: times, Values: values}, next, nil
}

// CDDOptions tunes a CDDAccumulator.
type CDDOptions struct {
	Method       CDDMethod
	DryThreshold float64
	// Aligners matches the carry grid to the current grid. Nil uses the
	// default tolerance.
	Aligners *standardize.Aligners
	// MinDays skips years with fewer daily samples. Zero disables the check.
	MinDays int
}

// CDDAccumulator threads the December carry through a year-ordered sequence
// of CDD computations. Years must be fed in increasing order; a gap between
// consecutive years restarts the chain from a bootstrap year.
type CDDAccumulator struct {
	opts  CDDOptions
	carry *domain.CDDCarry
	last  int
}

// NewCDDAccumulator creates an accumulator. prior may be nil.
func NewCDDAccumulator(opts CDDOptions, prior *domain.CDDCarry) *CDDAccumulator {
	if opts.DryThreshold == 0 {
		opts.DryThreshold = DefaultDryThreshold
	}
	a := &CDDAccumulator{opts: opts, carry: prior}
	if prior != nil {
		a.last = prior.Year
	}
	return a
}

// Next computes the monthly CDD series of year from its daily precipitation.
func (a *CDDAccumulator) Next(daily domain.GridSeries, year int) (domain.GridSeries, error) {
	if a.last != 0 && year <= a.last {
		return domain.GridSeries{}, fmt.Errorf("cdd year %d is not after %d", year, a.last)
	}
	a.last = year
	if a.carry != nil && a.carry.Year != year-1 {
		a.carry = nil
	}

	if a.opts.MinDays > 0 {
		if n := daily.Year(year).Len(); n < a.opts.MinDays {
			a.carry = nil
			return domain.GridSeries{}, fmt.Errorf("%w: %s %d has %d of %d days", domain.ErrMissingInput, daily.Variable, year, n, a.opts.MinDays)
		}
	}

	annual, err := AnnualCDD(daily, year, a.opts.Method, a.opts.DryThreshold)
	if err != nil {
		a.carry = nil
		return domain.GridSeries{}, err
	}
	monthly, next, err := BlendCDD(annual, daily.Cells, year, a.carry, a.opts.Aligners)
	if err != nil {
		return domain.GridSeries{}, err
	}
	a.carry = &next
	return monthly, nil
}

// Carry returns the December carry of the last processed year, or nil.
func (a *CDDAccumulator) Carry() *domain.CDDCarry {
	return a.carry
}

func anyFinite(row []float64) bool {
	for _, v := range row {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
