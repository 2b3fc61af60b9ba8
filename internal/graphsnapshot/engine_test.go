package graphsnapshot

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seedValidStaging(t *testing.T, w *Writer) {
	t.Helper()
	require.NoError(t, w.UpsertNode(Node{Label: LabelPerson, ExternalID: "p1", Attrs: map[string]any{"status": "active"}}))
	require.NoError(t, w.UpsertNode(Node{Label: LabelTeam, ExternalID: "t1", Attrs: map[string]any{}}))
	require.NoError(t, w.UpsertNode(Node{Label: LabelApplication, ExternalID: "a1", Attrs: map[string]any{}}))
	require.NoError(t, w.UpsertNode(Node{Label: LabelFactor, ExternalID: "f1", Attrs: map[string]any{}}))
	require.NoError(t, w.AddEdge(Relationship{Type: RelMemberOf, From: "p1", To: "t1"}))
	require.NoError(t, w.AddEdge(Relationship{Type: RelHasAccess, From: "p1", To: "a1"}))
	require.NoError(t, w.AddEdge(Relationship{Type: RelGroupHasAccess, From: "t1", To: "a1"}))
	require.NoError(t, w.AddEdge(Relationship{Type: RelEnrolled, From: "p1", To: "f1"}))
}

func validMeta(t *testing.T, w *Writer) SyncMetadata {
	t.Helper()
	counts, err := w.Counts()
	require.NoError(t, err)
	return SyncMetadata{
		Success:     true,
		LabelCounts: counts,
		StartedAt:   time.Now().Add(-time.Minute),
		EndedAt:     time.Now(),
	}
}

func TestEnginePromoteAtomicity(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	require.Equal(t, 0, e.CurrentVersion())

	w, err := e.BeginStaging()
	require.NoError(t, err)
	seedValidStaging(t, w)
	meta := validMeta(t, w)

	require.NoError(t, e.Promote(meta))
	require.Equal(t, 1, e.CurrentVersion())

	r, err := e.CurrentReader()
	require.NoError(t, err)
	access, err := r.ApplicationAccess("p1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a1"}, access)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "snap_v1", entries[0].Name())
}

func TestEnginePromoteRejectsInvalidMetadata(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	w, err := e.BeginStaging()
	require.NoError(t, err)
	seedValidStaging(t, w)

	badMeta := SyncMetadata{Success: false, EndedAt: time.Now()}
	err = e.Promote(badMeta)
	require.Error(t, err)
	require.Equal(t, 0, e.CurrentVersion())

	require.NoError(t, e.AbandonStaging())
	_, err = os.Stat(filepath.Join(dir, "snap_v1"))
	require.True(t, os.IsNotExist(err))
}

func TestEngineRetainsOnlyTwoNewestVersions(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	for i := 0; i < 3; i++ {
		w, err := e.BeginStaging()
		require.NoError(t, err)
		seedValidStaging(t, w)
		require.NoError(t, e.Promote(validMeta(t, w)))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 3, e.CurrentVersion())
}

// TestEngineConcurrentReadsDuringSync verifies that readers holding the
// current version keep working while a staging version is being built
// and validated concurrently, and that the new version is current once
// Promote returns.
func TestEngineConcurrentReadsDuringSync(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	w, err := e.BeginStaging()
	require.NoError(t, err)
	seedValidStaging(t, w)
	require.NoError(t, e.Promote(validMeta(t, w)))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var readErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			r, err := e.CurrentReader()
			if err != nil {
				readErr = err
				return
			}
			if _, err := r.ApplicationAccess("p1"); err != nil {
				readErr = err
				return
			}
		}
	}()

	w2, err := e.BeginStaging()
	require.NoError(t, err)
	seedValidStaging(t, w2)
	require.NoError(t, w2.UpsertNode(Node{Label: LabelPerson, ExternalID: "p2", Attrs: map[string]any{}}))
	require.NoError(t, e.Promote(validMeta(t, w2)))

	close(stop)
	wg.Wait()
	require.NoError(t, readErr)
	require.Equal(t, 2, e.CurrentVersion())
}
