// Package opsmeta persists sync history and authenticates local users. It
// is deliberately separate from the graph snapshot to prevent write
// contention between the sync writer and operational bookkeeping.
package opsmeta

import (
	"context"
	"time"

	"goa.design/clue/health"
)

// Client is the operational metadata store's interface, consumed by the
// Agent Runtime (session rows, local users) and the Snapshot Engine's
// sync driver (sync rows). Kept separate from the graph snapshot per
// §4.7 to avoid write contention with the sync writer.
type Client interface {
	health.Pinger

	CreateSync(ctx context.Context, tenantID string, kind SyncKind) (string, error)
	UpdateSync(ctx context.Context, id string, patch SyncPatch) error
	GetActiveSync(ctx context.Context, tenantID string) (SyncRow, bool, error)
	GetLastCompletedSync(ctx context.Context, tenantID string) (SyncRow, bool, error)
	GetSyncHistory(ctx context.Context, tenantID string, limit int) ([]SyncRow, error)

	UpsertLocalUser(ctx context.Context, u LocalUser) error
	GetLocalUserByUsername(ctx context.Context, username string) (LocalUser, bool, error)

	CreateSession(ctx context.Context, s SessionRow) error
	GetSession(ctx context.Context, id string) (SessionRow, bool, error)
	DeleteSession(ctx context.Context, id string) error
}

// SyncKind enumerates the two kinds of sync invocation.
type SyncKind string

const (
	SyncKindSnapshot SyncKind = "snapshot"
	SyncKindLegacy   SyncKind = "legacy"
)

// SyncStatus enumerates a sync row's lifecycle status.
type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
	SyncStatusCanceled  SyncStatus = "canceled"
)

// SyncRow captures one sync invocation end to end.
type SyncRow struct {
	ID               string         `bson:"_id" json:"id"`
	TenantID         string         `bson:"tenant_id" json:"tenant_id"`
	Kind             SyncKind       `bson:"kind" json:"kind"`
	Status           SyncStatus     `bson:"status" json:"status"`
	StartedAt        time.Time      `bson:"started_at" json:"started_at"`
	EndedAt           time.Time      `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
	EntityCounts     map[string]int `bson:"entity_counts" json:"entity_counts"`
	PercentComplete  int            `bson:"percent_complete" json:"percent_complete"`
	ProcessID        string         `bson:"process_id,omitempty" json:"process_id,omitempty"`
	SnapshotVersion  int            `bson:"snapshot_version" json:"snapshot_version"`
	Promoted         bool           `bson:"promoted" json:"promoted"`
}

// SyncPatch is a partial update applied to a SyncRow at a checkpoint.
type SyncPatch struct {
	Status          *SyncStatus
	EndedAt         *time.Time
	EntityCounts    map[string]int
	PercentComplete *int
	SnapshotVersion *int
	Promoted        *bool
}

// LocalUser is a locally authenticated operator account.
type LocalUser struct {
	ID           string    `bson:"_id" json:"id"`
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	Active       bool      `bson:"active" json:"active"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// SessionRow is an opaque browser session keyed by a random id.
type SessionRow struct {
	ID        string         `bson:"_id" json:"id"`
	UserID    string         `bson:"user_id" json:"user_id"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time      `bson:"expires_at" json:"expires_at"`
	Data      map[string]any `bson:"data,omitempty" json:"data,omitempty"`
}
