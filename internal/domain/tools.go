package domain

import (
	"time"

	"github.com/google/uuid"
)

// ToolStatus is the normalized lifecycle state of a tool run
type ToolStatus string

const (
	ToolStatusRunning ToolStatus = "running"
	ToolStatusSuccess ToolStatus = "success"
	ToolStatusError   ToolStatus = "error"
)

// NormalizeToolStatus maps the backend's raw status strings onto the
// three-state lifecycle.
func NormalizeToolStatus(raw string) ToolStatus {
	switch raw {
	case "start", "running", "":
		return ToolStatusRunning
	case "end", "success", "completed", "done", "complete", "finished", "ok":
		return ToolStatusSuccess
	default:
		return ToolStatusError
	}
}

// ToolRunRecord tracks one tool invocation's observable lifecycle within
// a single turn. Records do not outlive the turn; the committed message
// list is the durable record.
type ToolRunRecord struct {
	ID        string
	ToolName  string
	RunID     *int64
	Status    ToolStatus
	StartedAt time.Time
	LatencyMs *int64
	Error     string
}

// resolveToolRun returns the index of the record a tool event belongs
// to, or -1 when no record matches. Events carrying a run_id match only
// by run_id. Without one, the match falls back to the most recent
// unresolved running invocation of the same tool name.
//
// The name-based fallback can mis-merge two concurrently running
// invocations of the same tool when the server omits run_id for one of
// them; the rule is kept here in one place so it can be tightened
// without touching callers.
func resolveToolRun(records []ToolRunRecord, ev ToolEvent) int {
	if ev.RunID != nil {
		for i := len(records) - 1; i >= 0; i-- {
			if records[i].RunID != nil && *records[i].RunID == *ev.RunID {
				return i
			}
		}
		return -1
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].ToolName == ev.Tool && records[i].Status == ToolStatusRunning {
			return i
		}
	}
	return -1
}

// MergeToolRun folds one tool event into the record set and returns the
// updated set. At most one running record exists per (tool, run_id)
// identity: a repeated running event updates in place, a completion
// transitions the matched record and fills latency from the server value
// or the elapsed time since the run started.
func MergeToolRun(records []ToolRunRecord, ev ToolEvent, now time.Time) []ToolRunRecord {
	status := NormalizeToolStatus(ev.Status)
	idx := resolveToolRun(records, ev)

	if idx < 0 {
		rec := ToolRunRecord{
			ID:        uuid.NewString(),
			ToolName:  ev.Tool,
			RunID:     ev.RunID,
			Status:    status,
			StartedAt: now,
			LatencyMs: ev.LatencyMs,
			Error:     ev.Error,
		}
		return append(records, rec)
	}

	rec := records[idx]
	rec.Status = status
	if ev.RunID != nil {
		rec.RunID = ev.RunID
	}
	if ev.Error != "" {
		rec.Error = ev.Error
	}
	if status != ToolStatusRunning {
		if ev.LatencyMs != nil {
			rec.LatencyMs = ev.LatencyMs
		} else {
			elapsed := now.Sub(rec.StartedAt).Milliseconds()
			rec.LatencyMs = &elapsed
		}
	}
	records[idx] = rec
	return records
}
