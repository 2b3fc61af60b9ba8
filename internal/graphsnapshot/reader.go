package graphsnapshot

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// Reader is a read-only attachment to a promoted version. Many Readers
// may be constructed against the same *bbolt.DB concurrently; bbolt
// multiplexes read-only transactions over a single open file handle
// without contending with any writer attached elsewhere.
type Reader struct {
	db      *bbolt.DB
	version int
}

// Version returns the snapshot version number this reader targets.
func (r *Reader) Version() int { return r.version }

// GetNode fetches a single node by label and external id.
func (r *Reader) GetNode(label NodeLabel, id string) (Node, bool, error) {
	var node Node
	found := false
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket(label))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &node)
	})
	return node, found, err
}

// ListNodes returns every node stored under label. Used by the graph
// query executor to scan a label when no index narrows the search.
func (r *Reader) ListNodes(label NodeLabel) ([]Node, error) {
	var nodes []Node
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket(label))
		if b == nil {
			return fmt.Errorf("unknown label %q", label)
		}
		return b.ForEach(func(_, v []byte) error {
			var n Node
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			nodes = append(nodes, n)
			return nil
		})
	})
	return nodes, err
}

// OutEdges returns the set of external ids reachable from fromID via a
// single hop of the given relationship type.
func (r *Reader) OutEdges(rel RelType, fromID string) ([]string, error) {
	var tos []string
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(outBucket(rel))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(fromID))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &tos)
	})
	return tos, err
}

// ApplicationAccess computes the union-access set for a person: direct
// HAS_ACCESS edges plus applications reachable via one MEMBER_OF hop
// followed by GROUP_HAS_ACCESS. Queries that need application access
// must combine both paths; this helper exists so every caller gets the
// union for free instead of re-deriving it.
func (r *Reader) ApplicationAccess(personID string) ([]string, error) {
	direct, err := r.OutEdges(RelHasAccess, personID)
	if err != nil {
		return nil, err
	}
	teams, err := r.OutEdges(RelMemberOf, personID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(direct))
	union := make([]string, 0, len(direct))
	for _, app := range direct {
		if _, ok := seen[app]; !ok {
			seen[app] = struct{}{}
			union = append(union, app)
		}
	}
	for _, team := range teams {
		apps, err := r.OutEdges(RelGroupHasAccess, team)
		if err != nil {
			return nil, err
		}
		for _, app := range apps {
			if _, ok := seen[app]; !ok {
				seen[app] = struct{}{}
				union = append(union, app)
			}
		}
	}
	return union, nil
}

// SchemaColumns returns the tenant-defined dynamic Person attribute
// names discovered across syncs via additive DDL.
func (r *Reader) SchemaColumns() ([]string, error) {
	var cols []string
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if b == nil {
			return nil
		}
		v := b.Get(schemaColumnsKey)
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &cols)
	})
	return cols, err
}
