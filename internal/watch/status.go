package watch

import (
	"sync"
	"time"

	"github.com/specialistvlad/rendergraph/internal/engine"
	"github.com/specialistvlad/rendergraph/internal/report"
)

// Status is the JSON view of the latest pass.
type Status struct {
	Passes    int              `json:"passes"`
	PassID    string           `json:"pass_id,omitempty"`
	Root      string           `json:"root,omitempty"`
	Task      string           `json:"task,omitempty"`
	Mode      string           `json:"mode,omitempty"`
	ElapsedMS float64          `json:"elapsed_ms"`
	Writes    int              `json:"writes"`
	Warnings  []report.Warning `json:"warnings"`
	Error     string           `json:"error,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Tracker keeps the status of the latest pass. It is safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	status Status
	now    func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now, status: Status{Warnings: []report.Warning{}}}
}

// Record stores the result of a pass. out may be nil when err is set.
func (t *Tracker) Record(out *engine.Outcome, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Status{Passes: t.status.Passes + 1, UpdatedAt: t.now(), Warnings: []report.Warning{}}
	if out != nil {
		s.PassID = out.PassID
		s.Root = out.Root
		s.Task = out.Task
		s.Mode = string(out.Mode)
		s.ElapsedMS = float64(out.Elapsed.Microseconds()) / 1000
		s.Writes = out.Stats.Writes
		s.Warnings = append(s.Warnings, out.Warnings...)
	}
	if err != nil {
		s.Error = err.Error()
	}
	t.status = s
}

// Status returns a copy of the latest status.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.status
	s.Warnings = append([]report.Warning{}, t.status.Warnings...)
	return s
}
