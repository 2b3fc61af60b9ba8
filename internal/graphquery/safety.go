// Package graphquery implements the agent-facing query surface over a
// promoted graph snapshot: a safety filter, a hand-rolled parser for a
// MATCH/WHERE/RETURN subset, and an executor that walks a
// graphsnapshot.Reader. There is no ecosystem Cypher parser in the
// corpus to reach for, so this layer is intentionally stdlib-only.
package graphquery

import (
	"regexp"
	"strings"

	"github.com/fctr-id/okta-ai-agent/internal/toolerrors"
)

// mutationKeywords reject any query text that attempts to create,
// delete, alter, merge, or set data. Matching is case-insensitive and
// word-bounded so a property named e.g. "merged_at" is not rejected.
var mutationKeywords = regexp.MustCompile(`(?i)\b(CREATE|DELETE|DETACH|MERGE|SET|REMOVE|DROP|ALTER)\b`)

// secondConnectionKeywords reject any attempt to open a second
// connection to the database from within the query text itself.
var secondConnectionKeywords = regexp.MustCompile(`(?i)\b(ATTACH|CONNECT|USE\s+DATABASE)\b`)

// TenantPolicy configures whether queries must bind a tenant identifier
// parameter before execution. Single-tenant deployments leave this at
// its zero value, which disables the check.
type TenantPolicy struct {
	MultiTenant     bool
	RequiredBinding string
}

// CheckSafety rejects query text that matches the mutation or
// second-connection keyword filters, or that omits the required
// tenant-identifier binding when multi-tenant isolation is configured.
// It returns a *toolerrors.ToolError of kind unsafe_query on rejection.
func CheckSafety(query string, policy TenantPolicy) *toolerrors.ToolError {
	if m := mutationKeywords.FindString(query); m != "" {
		return toolerrors.Errorf(toolerrors.KindUnsafeQuery, "query contains a mutating keyword %q; only read queries are permitted", m)
	}
	if m := secondConnectionKeywords.FindString(query); m != "" {
		return toolerrors.Errorf(toolerrors.KindUnsafeQuery, "query attempts to open a second connection (%q)", m)
	}
	if policy.MultiTenant {
		binding := policy.RequiredBinding
		if binding == "" {
			binding = "$tenant_id"
		}
		if !strings.Contains(query, binding) {
			return toolerrors.Errorf(toolerrors.KindUnsafeQuery, "query is missing the required tenant identifier binding %q", binding)
		}
	}
	return nil
}
