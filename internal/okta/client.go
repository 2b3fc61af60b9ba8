// Package okta specifies, at the interface level only, the shared client
// wrapper probe programs use to reach the upstream identity API. The
// concrete HTTP implementation (Retry-After backoff, Link-header
// pagination aggregation, the mandatory limit=100 page size) is an
// external, out-of-scope integration; this package only fixes the shape
// every probe program and the reference catalog depend on.
package okta

import "context"

// Operation describes one upstream REST operation the reference catalog
// can name and the agent prompt can request documentation for.
type Operation struct {
	Name        string
	Method      string
	Path        string
	Summary     string
	Parameters  []Parameter
	Examples    []string
	Caveats     []string
	RelatedOps  []string
}

// Parameter documents one request parameter of an Operation.
type Parameter struct {
	Name        string
	In          string // "path", "query"
	Required    bool
	Description string
}

// Catalog exposes the compact index (load_reference) and full
// documentation blobs (describe_operations) for upstream operations.
type Catalog interface {
	// Index returns every operation's name as a flat list for the compact
	// load_reference summary; it never returns full documentation.
	Index(ctx context.Context) ([]string, error)
	// Describe returns full documentation for up to the requested
	// operation names. Unknown names are silently omitted rather than
	// erroring, since the agent may guess a name that doesn't exist.
	Describe(ctx context.Context, names []string) ([]Operation, error)
}

// Client is the shared wrapper a validated probe program links against.
// It transparently honors Retry-After headers, aggregates multi-valued
// Link headers for pagination, and caps page size at limit=100.
type Client interface {
	// Get issues a single GET against path (relative to the tenant base
	// URL) with the given query parameters, returning the decoded JSON
	// body. Implementations page internally when the response carries a
	// Link header and return the fully aggregated result.
	Get(ctx context.Context, path string, query map[string]string) (any, error)
}
