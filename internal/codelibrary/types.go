// Package codelibrary implements the per-session structured container of
// read results, write scripts, and approvals that the agent loop
// accumulates over a query's lifetime and persists across an
// approval-paused session.
package codelibrary

import "time"

// ReadResult is a materialized read operation: the exact source text that
// produced it (a graph query or a probe program), the entity ids it
// observed, and the full row set for display. ReadResults carry their own
// age so a client can request re-execution to produce a diff without
// invalidating earlier state.
type ReadResult struct {
	StepID      string         `bson:"step_id" json:"step_id"`
	SourceText  string         `bson:"source_text" json:"source_text"`
	EntityIDs   []string       `bson:"entity_ids" json:"entity_ids"`
	Rows        []map[string]any `bson:"rows" json:"rows"`
	FetchedAt   time.Time      `bson:"fetched_at" json:"fetched_at"`
}

// WriteScript is reserved for future write workflows; read-only
// deployments never populate one, but the type is retained so a future
// write-capable build has a place to land without reshaping the library.
type WriteScript struct {
	StepID     string   `bson:"step_id" json:"step_id"`
	SourceText string   `bson:"source_text" json:"source_text"`
	TargetIDs  []string `bson:"target_ids" json:"target_ids"`
	Action     string   `bson:"action" json:"action"`
	DependsOn  string   `bson:"depends_on" json:"depends_on"`
}

// Approval records a human decision over a WriteScript's target entities.
type Approval struct {
	Outcome     bool      `bson:"outcome" json:"outcome"`
	ApprovedIDs []string  `bson:"approved_ids" json:"approved_ids"`
	RejectedIDs []string  `bson:"rejected_ids" json:"rejected_ids"`
	DecidedAt   time.Time `bson:"decided_at" json:"decided_at"`
	UserID      string    `bson:"user_id" json:"user_id"`
	Note        string    `bson:"note" json:"note"`
}

// RefreshDiff describes what changed when a ReadResult was re-executed:
// which entity ids newly appeared, which disappeared, and which were
// observed in both runs.
type RefreshDiff struct {
	Added     []string
	Removed   []string
	Unchanged []string
}

// Library is the in-memory container for a single session. It is
// serializable as-is for persistence when a session suspends for
// approval.
type Library struct {
	SessionID    string                 `bson:"session_id" json:"session_id"`
	ReadResults  map[string]ReadResult  `bson:"read_results" json:"read_results"`
	WriteScripts map[string]WriteScript `bson:"write_scripts" json:"write_scripts"`
	Approvals    map[string]Approval    `bson:"approvals" json:"approvals"`
}

// New builds an empty Library for sessionID.
func New(sessionID string) *Library {
	return &Library{
		SessionID:    sessionID,
		ReadResults:  make(map[string]ReadResult),
		WriteScripts: make(map[string]WriteScript),
		Approvals:    make(map[string]Approval),
	}
}
