package domain

import "time"

// TokenUsage accumulates LLM token and tool-call consumption for one run.
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	ToolCalls    int   `json:"toolCalls"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Add merges another usage sample into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.ToolCalls += other.ToolCalls
}

// RunRecord is one entry in the per-day usage ledger.
type RunRecord struct {
	AgentType    AgentType `json:"agentType"`
	StartedAt    time.Time `json:"startedAt"`
	InputTokens  int64     `json:"inputTokens"`
	OutputTokens int64     `json:"outputTokens"`
	TotalTokens  int64     `json:"totalTokens"`
	ToolCalls    int       `json:"toolCalls"`
}

// RunResult is the terminal outcome of one pipeline run. Zero opportunities
// with Success=true is a normal outcome, explained by Reasoning.
type RunResult struct {
	RunID         string              `json:"runId"`
	AgentType     AgentType           `json:"agentType"`
	Success       bool                `json:"success"`
	Opportunities []ParsedOpportunity `json:"opportunities"`
	Reasoning     string              `json:"reasoning"`
	// AbortReason is set when the run was rejected before doing real work,
	// e.g. "daily_budget_exceeded". Distinct from Error.
	AbortReason string             `json:"abortReason,omitempty"`
	Error       string             `json:"error,omitempty"`
	Diagnostics []SourceDiagnostic `json:"diagnostics"`
	LeadsFound  int                `json:"leadsFound"`
	Qualified   int                `json:"qualified"`
	Usage       TokenUsage         `json:"usage"`
	StartedAt   time.Time          `json:"startedAt"`
	FinishedAt  time.Time          `json:"finishedAt"`
}
