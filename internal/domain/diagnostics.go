package domain

import "time"

// SourceStatus summarizes how a single source fetch went. Fetcher failures are
// never fatal to a run; this record is the pipeline's failure-observability
// mechanism.
type SourceStatus string

const (
	SourceSuccess SourceStatus = "success"
	SourceEmpty   SourceStatus = "empty"
	SourceError   SourceStatus = "error"
	SourceBlocked SourceStatus = "blocked"
)

// SourceDiagnostic records per-source status, item count, and duration for one
// fetch inside a run.
type SourceDiagnostic struct {
	Source    string        `json:"source"`
	Status    SourceStatus  `json:"status"`
	ItemCount int           `json:"itemCount"`
	Duration  time.Duration `json:"duration"`
	// Detail carries a short human-readable note, typically the downgraded
	// error message.
	Detail string `json:"detail,omitempty"`
}
