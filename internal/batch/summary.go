package batch

import "time"

type Status string

const (
	StatusIdle                Status = "idle"
	StatusRunning             Status = "running"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
)

// Summary is the outcome of one batch run across all candidate accounts.
type Summary struct {
	Job        string
	Status     Status
	Candidates int
	Processed  int
	Created    int
	Skipped    int
	Failed     int
	Errors     []string
	StartedAt  time.Time
	FinishedAt time.Time
}

func (s Summary) HasErrors() bool {
	return len(s.Errors) > 0
}

func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) finish(at time.Time) {
	s.FinishedAt = at
	if len(s.Errors) > 0 {
		s.Status = StatusCompletedWithErrors
		return
	}
	s.Status = StatusCompleted
}
