package graphsnapshot

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	nodesBucketPrefix = []byte("nodes:")
	outBucketPrefix   = []byte("out:")
	metaBucket        = []byte("meta")
	schemaColumnsKey  = []byte("schema_columns_person")
)

func nodesBucket(label NodeLabel) []byte {
	return append(append([]byte{}, nodesBucketPrefix...), label...)
}

func outBucket(rel RelType) []byte {
	return append(append([]byte{}, outBucketPrefix...), rel...)
}

// Writer is the single exclusive attachment to a staging version. The
// embedded engine enforces (via file locking) that only one *bbolt.DB
// handle with read-write transactions exists for a given version file at
// a time, which is exactly the "exactly one writer may attach" contract.
type Writer struct {
	db      *bbolt.DB
	version int
}

func openWriter(path string, version int) (*Writer, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open staging version %d: %w", version, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, label := range AllLabels {
			if _, err := tx.CreateBucketIfNotExists(nodesBucket(label)); err != nil {
				return err
			}
		}
		for _, rel := range []RelType{RelMemberOf, RelHasAccess, RelGroupHasAccess, RelEnrolled} {
			if _, err := tx.CreateBucketIfNotExists(outBucket(rel)); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize staging version %d: %w", version, err)
	}
	return &Writer{db: db, version: version}, nil
}

// UpsertNode writes or overwrites a node. External ids are unique per
// label within a version; upserting the same id replaces its attributes.
func (w *Writer) UpsertNode(n Node) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal node %s/%s: %w", n.Label, n.ExternalID, err)
	}
	return w.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nodesBucket(n.Label))
		if b == nil {
			return fmt.Errorf("unknown label %q", n.Label)
		}
		return b.Put([]byte(n.ExternalID), payload)
	})
}

// AddEdge records a directed relationship. Both endpoints must already
// exist in this version; the writer does not enforce that eagerly (doing
// so would require an extra read per edge during bulk load) but the
// validator used before promotion checks it.
func (w *Writer) AddEdge(rel Relationship) error {
	return w.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(outBucket(rel.Type))
		if b == nil {
			return fmt.Errorf("unknown relationship type %q", rel.Type)
		}
		existing := b.Get([]byte(rel.From))
		var tos []string
		if existing != nil {
			if err := json.Unmarshal(existing, &tos); err != nil {
				return fmt.Errorf("decode adjacency for %s: %w", rel.From, err)
			}
		}
		for _, to := range tos {
			if to == rel.To {
				return nil // already recorded
			}
		}
		tos = append(tos, rel.To)
		payload, err := json.Marshal(tos)
		if err != nil {
			return err
		}
		return b.Put([]byte(rel.From), payload)
	})
}

// AddDynamicColumn records a tenant-defined Person attribute name
// discovered during this sync, via additive DDL. Removals are not
// supported: a later sync that stops seeing a column leaves it in place
// with null values on the rows that carry it.
func (w *Writer) AddDynamicColumn(column string) error {
	return w.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		existing := b.Get(schemaColumnsKey)
		var cols []string
		if existing != nil {
			if err := json.Unmarshal(existing, &cols); err != nil {
				return err
			}
		}
		for _, c := range cols {
			if c == column {
				return nil
			}
		}
		cols = append(cols, column)
		payload, err := json.Marshal(cols)
		if err != nil {
			return err
		}
		return b.Put(schemaColumnsKey, payload)
	})
}

// Counts returns the number of nodes stored per label, used to populate
// SyncMetadata.LabelCounts before promotion.
func (w *Writer) Counts() (map[NodeLabel]int, error) {
	counts := make(map[NodeLabel]int, len(AllLabels))
	err := w.db.View(func(tx *bbolt.Tx) error {
		for _, label := range AllLabels {
			b := tx.Bucket(nodesBucket(label))
			if b == nil {
				continue
			}
			n := 0
			if err := b.ForEach(func(_, _ []byte) error { n++; return nil }); err != nil {
				return err
			}
			counts[label] = n
		}
		return nil
	})
	return counts, err
}

// Validate checks every relationship endpoint references a node present
// in this version, failing the staging version before it can promote.
func (w *Writer) Validate() error {
	return w.db.View(func(tx *bbolt.Tx) error {
		exists := func(label NodeLabel, id string) bool {
			b := tx.Bucket(nodesBucket(label))
			return b != nil && b.Get([]byte(id)) != nil
		}
		check := func(rel RelType, fromLabel, toLabel NodeLabel) error {
			b := tx.Bucket(outBucket(rel))
			if b == nil {
				return nil
			}
			return b.ForEach(func(from, v []byte) error {
				if !exists(fromLabel, string(from)) {
					return fmt.Errorf("%s: dangling source %s", rel, from)
				}
				var tos []string
				if err := json.Unmarshal(v, &tos); err != nil {
					return err
				}
				for _, to := range tos {
					if !exists(toLabel, to) {
						return fmt.Errorf("%s: dangling target %s", rel, to)
					}
				}
				return nil
			})
		}
		if err := check(RelMemberOf, LabelPerson, LabelTeam); err != nil {
			return err
		}
		if err := check(RelHasAccess, LabelPerson, LabelApplication); err != nil {
			return err
		}
		if err := check(RelGroupHasAccess, LabelTeam, LabelApplication); err != nil {
			return err
		}
		return check(RelEnrolled, LabelPerson, LabelFactor)
	})
}

// Close releases the writer's exclusive attachment to the staging file.
func (w *Writer) Close() error {
	return w.db.Close()
}
