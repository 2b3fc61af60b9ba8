package graphquery

import (
	"testing"
	"time"

	"github.com/fctr-id/okta-ai-agent/internal/graphsnapshot"
	"github.com/fctr-id/okta-ai-agent/internal/toolerrors"
	"github.com/stretchr/testify/require"
)

func openTestSnapshot(t *testing.T) *graphsnapshot.Reader {
	t.Helper()
	dir := t.TempDir()
	engine, err := graphsnapshot.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	w, err := engine.BeginStaging()
	require.NoError(t, err)
	require.NoError(t, w.UpsertNode(graphsnapshot.Node{
		Label: graphsnapshot.LabelPerson, ExternalID: "p1",
		Attrs: map[string]any{"status": "active", "email": "p1@example.com"},
	}))
	require.NoError(t, w.UpsertNode(graphsnapshot.Node{
		Label: graphsnapshot.LabelPerson, ExternalID: "p2",
		Attrs: map[string]any{"status": "suspended", "email": "p2@example.com"},
	}))
	require.NoError(t, w.UpsertNode(graphsnapshot.Node{
		Label: graphsnapshot.LabelTeam, ExternalID: "t1",
		Attrs: map[string]any{"name": "engineering"},
	}))
	require.NoError(t, w.UpsertNode(graphsnapshot.Node{
		Label: graphsnapshot.LabelApplication, ExternalID: "a1",
		Attrs: map[string]any{"name": "direct-app", "status": "active"},
	}))
	require.NoError(t, w.UpsertNode(graphsnapshot.Node{
		Label: graphsnapshot.LabelApplication, ExternalID: "a2",
		Attrs: map[string]any{"name": "team-app", "status": "active"},
	}))
	require.NoError(t, w.UpsertNode(graphsnapshot.Node{Label: graphsnapshot.LabelFactor, ExternalID: "f1", Attrs: map[string]any{}}))

	require.NoError(t, w.AddEdge(graphsnapshot.Relationship{Type: graphsnapshot.RelMemberOf, From: "p1", To: "t1"}))
	require.NoError(t, w.AddEdge(graphsnapshot.Relationship{Type: graphsnapshot.RelHasAccess, From: "p1", To: "a1"}))
	require.NoError(t, w.AddEdge(graphsnapshot.Relationship{Type: graphsnapshot.RelGroupHasAccess, From: "t1", To: "a2"}))
	require.NoError(t, w.AddEdge(graphsnapshot.Relationship{Type: graphsnapshot.RelEnrolled, From: "p1", To: "f1"}))

	counts, err := w.Counts()
	require.NoError(t, err)
	require.NoError(t, engine.Promote(graphsnapshot.SyncMetadata{
		Success: true, LabelCounts: counts, EndedAt: time.Now(),
	}))

	reader, err := engine.CurrentReader()
	require.NoError(t, err)
	return reader
}

func TestRunRejectsMutatingKeyword(t *testing.T) {
	reader := openTestSnapshot(t)
	_, terr := Run(reader, "MATCH (p:Person) SET p.status = 'active' RETURN p.external_id", TenantPolicy{})
	require.NotNil(t, terr)
	require.Equal(t, toolerrors.KindUnsafeQuery, terr.Kind)
}

func TestRunSingleHopFilterAndReturn(t *testing.T) {
	reader := openTestSnapshot(t)
	result, terr := Run(reader, "MATCH (p:Person) WHERE p.status = 'active' RETURN p.external_id AS id", TenantPolicy{})
	require.Nil(t, terr)
	require.Equal(t, []string{"id"}, result.Columns)
	require.Len(t, result.Rows, 1)
	require.Equal(t, "p1", result.Rows[0]["id"])
}

func TestRunInvalidAttribute(t *testing.T) {
	reader := openTestSnapshot(t)
	_, terr := Run(reader, "MATCH (p:Person) RETURN p.does_not_exist", TenantPolicy{})
	require.NotNil(t, terr)
	require.Equal(t, toolerrors.KindInvalidAttribute, terr.Kind)
}

func TestRunTwoHopTeamMediatedAccess(t *testing.T) {
	reader := openTestSnapshot(t)
	result, terr := Run(reader,
		"MATCH (p:Person)-[:MEMBER_OF]->(t:Team)-[:GROUP_HAS_ACCESS]->(a:Application) RETURN p.external_id AS person, a.external_id AS app",
		TenantPolicy{})
	require.Nil(t, terr)
	require.Len(t, result.Rows, 1)
	require.Equal(t, "p1", result.Rows[0]["person"])
	require.Equal(t, "a2", result.Rows[0]["app"])
}

func TestRunMultiTenantRequiresBinding(t *testing.T) {
	reader := openTestSnapshot(t)
	policy := TenantPolicy{MultiTenant: true, RequiredBinding: "$tenant_id"}
	_, terr := Run(reader, "MATCH (p:Person) RETURN p.external_id", policy)
	require.NotNil(t, terr)
	require.Equal(t, toolerrors.KindUnsafeQuery, terr.Kind)
}
