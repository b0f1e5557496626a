package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/google/uuid"
)

// Baseline keys of a reference set.
const (
	KeyTxAbove = "tx_above" // daily max above its high percentile
	KeyTxBelow = "tx_below" // daily max below its low percentile
	KeyTnAbove = "tn_above" // daily min above its high percentile
	KeyTnBelow = "tn_below" // daily min below its low percentile
	KeyWind    = "wind"     // fraction of days above the wind power threshold
	KeyRain    = "rain"     // Rx5day
	KeyDrought = "drought"  // CDD
)

// Threshold keys of a reference set.
const (
	ThresholdTx        = "tx"
	ThresholdTn        = "tn"
	ThresholdWindPower = "wind_power"
)

// ErrReferenceExists is returned when saving over an existing reference set
// without overwrite.
var ErrReferenceExists = errors.New("reference set already exists")

// Reference is the immutable climatology of one region: every baseline and
// threshold the anomaly computation reads. It is built once from the
// reference years and passed explicitly to later runs.
type Reference struct {
	Version     string                              `json:"version"`
	Region      string                              `json:"region"`
	Period      domain.RefPeriod                    `json:"period"`
	GeneratedAt time.Time                           `json:"generated_at"`
	Baselines   map[string]domain.MonthlyBaseline   `json:"baselines"`
	Thresholds  map[string]domain.MonthlyThresholds `json:"thresholds"`
}

// NewReference creates an empty reference set stamped with a fresh version.
func NewReference(region string, period domain.RefPeriod) *Reference {
	return &Reference{
		Version:     fmt.Sprintf("%d-%d-%s", period.Start, period.End, uuid.NewString()[:8]),
		Region:      region,
		Period:      period,
		GeneratedAt: domain.Now(),
		Baselines:   make(map[string]domain.MonthlyBaseline),
		Thresholds:  make(map[string]domain.MonthlyThresholds),
	}
}

// Baseline returns the named baseline or ErrMissingInput.
func (r *Reference) Baseline(key string) (domain.MonthlyBaseline, error) {
	b, ok := r.Baselines[key]
	if !ok {
		return domain.MonthlyBaseline{}, fmt.Errorf("%w: baseline %q not in reference %s", domain.ErrMissingInput, key, r.Version)
	}
	return b, nil
}

// Threshold returns the named threshold set or ErrMissingInput.
func (r *Reference) Threshold(key string) (domain.MonthlyThresholds, error) {
	t, ok := r.Thresholds[key]
	if !ok {
		return domain.MonthlyThresholds{}, fmt.Errorf("%w: threshold %q not in reference %s", domain.ErrMissingInput, key, r.Version)
	}
	return t, nil
}

// Encode writes the reference set as indented JSON.
func (r *Reference) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode reference %s: %w", r.Version, err)
	}
	return nil
}

// Save persists the reference set to path. Reference sets are write-once:
// an existing file is left untouched unless overwrite is set.
func (r *Reference) Save(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrReferenceExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create reference dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".reference-*.json")
	if err != nil {
		return fmt.Errorf("create temp reference: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := r.Encode(tmp); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp reference: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// LoadReference reads a reference set saved by Save.
func LoadReference(path string) (*Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: reference %s", domain.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("open reference: %w", err)
	}
	defer f.Close()
	return DecodeReference(f)
}

// DecodeReference reads a JSON reference set.
func DecodeReference(rd io.Reader) (*Reference, error) {
	var r Reference
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode reference: %w", err)
	}
	if r.Baselines == nil {
		r.Baselines = make(map[string]domain.MonthlyBaseline)
	}
	if r.Thresholds == nil {
		r.Thresholds = make(map[string]domain.MonthlyThresholds)
	}
	return &r, nil
}

// FileName returns the conventional file name of a region's reference set.
func FileName(region string) string {
	return fmt.Sprintf("reference_%s.json", region)
}
