package domain

import "time"

type RunStatus string

const (
	RunIdle                RunStatus = "idle"
	RunRunning             RunStatus = "running"
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed_with_errors"
)

// RunReport summarizes one pass over all configured sources.
type RunReport struct {
	RunID      string         `json:"runId"`
	Status     RunStatus      `json:"status"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Sources    []SourceReport `json:"sources"`
}

type SourceReport struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Fetched  bool   `json:"fetched"`
	Items    int    `json:"items"`
	Upserted int    `json:"upserted"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

func (r RunReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Totals sums item counters across sources.
func (r RunReport) Totals() (items, upserted, failed int) {
	for _, s := range r.Sources {
		items += s.Items
		upserted += s.Upserted
		failed += s.Failed
	}
	return items, upserted, failed
}

// FailedSources counts sources whose fetch did not succeed.
func (r RunReport) FailedSources() int {
	n := 0
	for _, s := range r.Sources {
		if !s.Fetched {
			n++
		}
	}
	return n
}
