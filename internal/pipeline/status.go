package pipeline

import (
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
)

// Region states reported by Status.
const (
	StatePending = "pending"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// RegionStatus is the progress of one region.
type RegionStatus struct {
	Region string `json:"region"`
	State  string `json:"state"`
	Items  int    `json:"items"`
	Error  string `json:"error,omitempty"`
}

// Status is a snapshot of the current or last batch.
type Status struct {
	RunID      string         `json:"run_id"`
	Mode       string         `json:"mode"`
	Running    bool           `json:"running"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Regions    []RegionStatus `json:"regions"`
}

// Status returns a copy of the batch progress.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.status
	s.Regions = append([]RegionStatus(nil), r.status.Regions...)
	return s
}

func (r *Runner) startStatus(mode string, jobs []Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	regions := make([]RegionStatus, len(jobs))
	for i, j := range jobs {
		regions[i] = RegionStatus{Region: j.Name, State: StatePending}
	}
	r.status = Status{RunID: r.opts.RunID, Mode: mode, Running: true, StartedAt: domain.Now(), Regions: regions}
}

func (r *Runner) setRegion(i int, state string, items int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs := &r.status.Regions[i]
	rs.State = state
	rs.Items = items
	if err != nil {
		rs.Error = err.Error()
	}
}

func (r *Runner) finishStatus() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := domain.Now()
	r.status.Running = false
	r.status.FinishedAt = &now
}
