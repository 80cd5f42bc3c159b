package handlers

import (
	"encoding/json"
	"time"

	"reclaim/internal/runlog"
)

// RunDTO is a recorded job run with RFC 3339 timestamps.
type RunDTO struct {
	Job         string          `json:"job"`
	TriggeredBy string          `json:"triggered_by,omitempty"`
	StartedAt   string          `json:"started_at"`
	DurationMs  int64           `json:"duration_ms"`
	Success     bool            `json:"success"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func ToRunDTO(r runlog.Run) RunDTO {
	return RunDTO{
		Job:         r.Job,
		TriggeredBy: r.TriggeredBy,
		StartedAt:   r.StartedAt.UTC().Format(time.RFC3339),
		DurationMs:  r.DurationMs,
		Success:     r.Success,
		Summary:     r.Summary,
		Error:       r.Error,
	}
}

func ToRunDTOs(runs []runlog.Run) []RunDTO {
	out := make([]RunDTO, len(runs))
	for i, r := range runs {
		out[i] = ToRunDTO(r)
	}
	return out
}
