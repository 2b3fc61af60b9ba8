package codelibrary

import (
	"fmt"
	"time"
)

// AppendRead records a newly materialized ReadResult under stepID,
// overwriting any prior entry with the same id.
func (l *Library) AppendRead(stepID, sourceText string, entityIDs []string, rows []map[string]any) ReadResult {
	rr := ReadResult{
		StepID:     stepID,
		SourceText: sourceText,
		EntityIDs:  entityIDs,
		Rows:       rows,
		FetchedAt:  time.Now().UTC(),
	}
	l.ReadResults[stepID] = rr
	return rr
}

// GetRead returns the ReadResult stored under stepID.
func (l *Library) GetRead(stepID string) (ReadResult, bool) {
	rr, ok := l.ReadResults[stepID]
	return rr, ok
}

// RefreshRead diffs newEntityIDs, the ids a caller-side re-run of a stored
// ReadResult's source text observed, against the stored id set without
// invalidating the stored state; newRows is not stored or compared. The
// caller decides whether to replace the stored entry with AppendRead once
// it has shown the diff to the client.
func (l *Library) RefreshRead(stepID string, newEntityIDs []string, newRows []map[string]any) (RefreshDiff, error) {
	prior, ok := l.GetRead(stepID)
	if !ok {
		return RefreshDiff{}, fmt.Errorf("codelibrary: no read result for step %q", stepID)
	}
	priorSet := make(map[string]bool, len(prior.EntityIDs))
	for _, id := range prior.EntityIDs {
		priorSet[id] = true
	}
	newSet := make(map[string]bool, len(newEntityIDs))
	var diff RefreshDiff
	for _, id := range newEntityIDs {
		newSet[id] = true
		if priorSet[id] {
			diff.Unchanged = append(diff.Unchanged, id)
		} else {
			diff.Added = append(diff.Added, id)
		}
	}
	for _, id := range prior.EntityIDs {
		if !newSet[id] {
			diff.Removed = append(diff.Removed, id)
		}
	}
	_ = newRows
	return diff, nil
}

// PutWrite stores a WriteScript. DependsOn must name an existing
// ReadResult; the write path never re-queries, it only uses the stored
// id list.
func (l *Library) PutWrite(ws WriteScript) error {
	if ws.DependsOn == "" {
		return fmt.Errorf("codelibrary: write script %q must name a depends_on read result", ws.StepID)
	}
	if _, ok := l.GetRead(ws.DependsOn); !ok {
		return fmt.Errorf("codelibrary: write script %q depends on unknown read result %q", ws.StepID, ws.DependsOn)
	}
	l.WriteScripts[ws.StepID] = ws
	return nil
}

// PutApproval records an approval decision for a WriteScript's entity ids.
func (l *Library) PutApproval(stepID string, a Approval) {
	a.DecidedAt = time.Now().UTC()
	l.Approvals[stepID] = a
}
