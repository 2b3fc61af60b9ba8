// Package graphsnapshot implements the embedded, versioned, zero-downtime
// property-graph snapshot engine. Each version is an independent bbolt
// database file under a `snap_v<N>` directory; bbolt's single-writer,
// many-reader transaction model is exactly the concurrency contract this
// engine needs to expose, so it is used directly rather than building a
// bespoke MVCC layer on top of raw files.
package graphsnapshot

import "time"

// NodeLabel enumerates the graph's node kinds.
type NodeLabel string

const (
	LabelPerson      NodeLabel = "Person"
	LabelTeam        NodeLabel = "Team"
	LabelApplication NodeLabel = "Application"
	LabelFactor      NodeLabel = "Factor"
)

// AllLabels lists every node label the writer maintains counts for.
var AllLabels = []NodeLabel{LabelPerson, LabelTeam, LabelApplication, LabelFactor}

// RelType enumerates the graph's relationship kinds. Names are globally
// unique across the graph, a constraint the bbolt bucket layout enforces
// by keying relationship buckets on the type name alone.
type RelType string

const (
	RelMemberOf        RelType = "MEMBER_OF"
	RelHasAccess       RelType = "HAS_ACCESS"
	RelGroupHasAccess  RelType = "GROUP_HAS_ACCESS"
	RelEnrolled        RelType = "ENROLLED"
)

// PersonStatus enumerates the invariant Person status values.
type PersonStatus string

const (
	PersonActive           PersonStatus = "active"
	PersonSuspended        PersonStatus = "suspended"
	PersonLocked           PersonStatus = "locked"
	PersonDeprovisioned    PersonStatus = "deprovisioned"
	PersonStaged           PersonStatus = "staged"
	PersonRecovery         PersonStatus = "recovery"
	PersonPasswordExpired  PersonStatus = "password-expired"
)

// Node is a property-graph node. Attrs carries both the invariant
// identity/status/timestamp subset and any tenant-defined dynamic
// attributes added by schema extension at sync time.
type Node struct {
	Label      NodeLabel      `json:"label"`
	ExternalID string         `json:"external_id"`
	Attrs      map[string]any `json:"attrs"`
}

// Relationship is a directed edge between two nodes identified by their
// external ids. Both endpoints must reference nodes present in the same
// snapshot version.
type Relationship struct {
	Type RelType `json:"type"`
	From string  `json:"from"`
	To   string  `json:"to"`
}

// State is a snapshot version's position in its lifecycle.
type State string

const (
	StateStaging   State = "staging"
	StatePromoting State = "promoting"
	StateCurrent   State = "current"
	StatePrevious  State = "previous"
)

// SyncMetadata is the record a writer produces on completion and the
// promotion routine validates before incrementing the version counter.
// It deliberately lives in the operational metadata store, not the graph
// itself, so the graph stays free of operational nodes.
type SyncMetadata struct {
	Version      int                  `json:"version"`
	Success      bool                 `json:"success"`
	LabelCounts  map[NodeLabel]int    `json:"label_counts"`
	StartedAt    time.Time            `json:"started_at"`
	EndedAt      time.Time            `json:"ended_at"`
}

// Valid reports whether meta satisfies the promotion routine's
// requirements: success=true, every label count > 0, and an end time set.
func (m SyncMetadata) Valid() bool {
	if !m.Success || m.EndedAt.IsZero() {
		return false
	}
	for _, label := range AllLabels {
		if m.LabelCounts[label] <= 0 {
			return false
		}
	}
	return true
}
