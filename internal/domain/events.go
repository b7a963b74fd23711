package domain

import "time"

// ProgressKind is the sub-kind of a progress event emitted while a run is in
// flight.
type ProgressKind string

const (
	ProgressStarted       ProgressKind = "started"
	ProgressToolCall      ProgressKind = "tool_call"
	ProgressToolResult    ProgressKind = "tool_result"
	ProgressQueued        ProgressKind = "queued"
	ProgressBudgetWarning ProgressKind = "budget_warning"
	ProgressCallingClaude ProgressKind = "calling_claude"
)

// ProgressEvent is one named step in a run's lifecycle, streamed to clients
// and broadcast on the signal bus.
type ProgressEvent struct {
	RunID     string       `json:"runId"`
	AgentType AgentType    `json:"agentType"`
	Kind      ProgressKind `json:"kind"`
	Message   string       `json:"message"`
	At        time.Time    `json:"at"`
}

// Bus channel names for run lifecycle broadcasts.
const (
	ChannelRunProgress = "runs:progress"
	ChannelRunResult   = "runs:result"
)
