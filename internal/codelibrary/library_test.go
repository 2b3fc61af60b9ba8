package codelibrary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndGetRead(t *testing.T) {
	lib := New("sess-1")
	rr := lib.AppendRead("step-1", "MATCH (p:Person) RETURN p.external_id", []string{"p1", "p2"}, nil)
	require.False(t, rr.FetchedAt.IsZero())

	got, ok := lib.GetRead("step-1")
	require.True(t, ok)
	require.Equal(t, []string{"p1", "p2"}, got.EntityIDs)
}

func TestRefreshReadDiffsAgainstStoredState(t *testing.T) {
	lib := New("sess-1")
	lib.AppendRead("step-1", "MATCH (p:Person) RETURN p.external_id", []string{"p1", "p2"}, nil)

	diff, err := lib.RefreshRead("step-1", []string{"p2", "p3"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"p3"}, diff.Added)
	require.Equal(t, []string{"p1"}, diff.Removed)
	require.Equal(t, []string{"p2"}, diff.Unchanged)

	// The stored read result is untouched by a refresh diff.
	stored, ok := lib.GetRead("step-1")
	require.True(t, ok)
	require.Equal(t, []string{"p1", "p2"}, stored.EntityIDs)
}

func TestRefreshReadUnknownStep(t *testing.T) {
	lib := New("sess-1")
	_, err := lib.RefreshRead("missing", nil, nil)
	require.Error(t, err)
}

func TestPutWriteRequiresExistingDependency(t *testing.T) {
	lib := New("sess-1")
	err := lib.PutWrite(WriteScript{StepID: "w1", DependsOn: "step-1"})
	require.Error(t, err)

	lib.AppendRead("step-1", "MATCH (p:Person) RETURN p.external_id", []string{"p1"}, nil)
	err = lib.PutWrite(WriteScript{StepID: "w1", DependsOn: "step-1"})
	require.NoError(t, err)
}

func TestPutApprovalStampsDecidedAt(t *testing.T) {
	lib := New("sess-1")
	lib.PutApproval("w1", Approval{Outcome: true, ApprovedIDs: []string{"p1"}})
	a, ok := lib.Approvals["w1"]
	require.True(t, ok)
	require.False(t, a.DecidedAt.IsZero())
}
