package okta

import "context"

// staticCatalog is a fixed, in-process documentation set covering the
// REST operations a probe program may name. A real deployment would
// generate this from the upstream API's own schema; this minimal set
// covers the operations the graph sync and agent prompt reference by
// name (users, groups, applications, factors).
type staticCatalog struct {
	ops map[string]Operation
}

// NewStaticCatalog returns a Catalog covering the identity management
// operations the agent is expected to probe.
func NewStaticCatalog() Catalog {
	ops := []Operation{
		{
			Name:    "listUsers",
			Method:  "GET",
			Path:    "/api/v1/users",
			Summary: "List users, optionally filtered by status or search expression.",
			Parameters: []Parameter{
				{Name: "q", In: "query", Description: "search across name/email fields"},
				{Name: "filter", In: "query", Description: "SCIM-style filter expression, e.g. status eq \"ACTIVE\""},
				{Name: "limit", In: "query", Required: true, Description: "page size, must be 100"},
			},
			Examples:   []string{`GET /api/v1/users?filter=status eq "ACTIVE"&limit=100`},
			Caveats:    []string{"paginate via the Link header; never assume a single page"},
			RelatedOps: []string{"getUser", "listUserGroups"},
		},
		{
			Name:       "getUser",
			Method:     "GET",
			Path:       "/api/v1/users/{userId}",
			Summary:    "Fetch a single user's full profile.",
			Parameters: []Parameter{{Name: "userId", In: "path", Required: true}},
			RelatedOps: []string{"listUsers"},
		},
		{
			Name:       "listUserGroups",
			Method:     "GET",
			Path:       "/api/v1/users/{userId}/groups",
			Summary:    "List the teams (groups) a user directly belongs to.",
			Parameters: []Parameter{{Name: "userId", In: "path", Required: true}},
			RelatedOps: []string{"listGroups", "listAssignedApplicationsForGroup"},
		},
		{
			Name:    "listGroups",
			Method:  "GET",
			Path:    "/api/v1/groups",
			Summary: "List teams (groups).",
			Parameters: []Parameter{
				{Name: "q", In: "query"},
				{Name: "limit", In: "query", Required: true, Description: "page size, must be 100"},
			},
			RelatedOps: []string{"listGroupUsers", "listAssignedApplicationsForGroup"},
		},
		{
			Name:       "listGroupUsers",
			Method:     "GET",
			Path:       "/api/v1/groups/{groupId}/users",
			Summary:    "List the members of a team.",
			Parameters: []Parameter{{Name: "groupId", In: "path", Required: true}},
			RelatedOps: []string{"listGroups"},
		},
		{
			Name:    "listApplications",
			Method:  "GET",
			Path:    "/api/v1/apps",
			Summary: "List applications provisioned in the tenant.",
			Parameters: []Parameter{
				{Name: "filter", In: "query"},
				{Name: "limit", In: "query", Required: true, Description: "page size, must be 100"},
			},
			RelatedOps: []string{"listApplicationUsers", "listApplicationGroupAssignments"},
		},
		{
			Name:       "listApplicationUsers",
			Method:     "GET",
			Path:       "/api/v1/apps/{appId}/users",
			Summary:    "List users directly assigned to an application.",
			Parameters: []Parameter{{Name: "appId", In: "path", Required: true}},
			Caveats:    []string{"direct assignment only; combine with listApplicationGroupAssignments and listGroupUsers for the full access set"},
			RelatedOps: []string{"listApplications", "listApplicationGroupAssignments"},
		},
		{
			Name:       "listApplicationGroupAssignments",
			Method:     "GET",
			Path:       "/api/v1/apps/{appId}/groups",
			Summary:    "List teams assigned to an application.",
			Parameters: []Parameter{{Name: "appId", In: "path", Required: true}},
			RelatedOps: []string{"listApplications", "listGroupUsers"},
		},
		{
			Name:       "listFactors",
			Method:     "GET",
			Path:       "/api/v1/users/{userId}/factors",
			Summary:    "List a user's enrolled authentication factors.",
			Parameters: []Parameter{{Name: "userId", In: "path", Required: true}},
			RelatedOps: []string{"getUser"},
		},
	}
	m := make(map[string]Operation, len(ops))
	for _, op := range ops {
		m[op.Name] = op
	}
	return &staticCatalog{ops: m}
}

func (c *staticCatalog) Index(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(c.ops))
	for name := range c.ops {
		names = append(names, name)
	}
	return names, nil
}

func (c *staticCatalog) Describe(ctx context.Context, names []string) ([]Operation, error) {
	out := make([]Operation, 0, len(names))
	for _, name := range names {
		if op, ok := c.ops[name]; ok {
			out = append(out, op)
		}
	}
	return out, nil
}
