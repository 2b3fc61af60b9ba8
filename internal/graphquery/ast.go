package graphquery

import "github.com/fctr-id/okta-ai-agent/internal/graphsnapshot"

// NodePattern is a single `(var:Label)` match element.
type NodePattern struct {
	Var   string
	Label graphsnapshot.NodeLabel
}

// RelPattern is a single `-[:TYPE]->` hop following a NodePattern.
type RelPattern struct {
	Type graphsnapshot.RelType
	To   NodePattern
}

// MatchClause is a chain of nodes connected by directed relationship hops.
type MatchClause struct {
	Start NodePattern
	Hops  []RelPattern
}

// CompareOp enumerates the comparison operators a WHERE predicate supports.
type CompareOp string

const (
	OpEq       CompareOp = "="
	OpNeq      CompareOp = "<>"
	OpLt       CompareOp = "<"
	OpGt       CompareOp = ">"
	OpLte      CompareOp = "<="
	OpGte      CompareOp = ">="
	OpContains CompareOp = "CONTAINS"
)

// Value is a literal WHERE-clause operand: exactly one of its fields is set.
type Value struct {
	Str     *string
	Num     *float64
	Bool    *bool
	IsNull  bool
}

// Predicate is a leaf comparison: `var.attr OP value`.
type Predicate struct {
	Var   string
	Attr  string
	Op    CompareOp
	Value Value
}

// ExistsPredicate is the existential-quantifier form used for substring
// search against list-valued attributes: `ANY(x IN var.attr WHERE x
// CONTAINS value)`.
type ExistsPredicate struct {
	Var   string
	Attr  string
	Value Value
}

// BoolOp enumerates WHERE-clause boolean combinators.
type BoolOp string

const (
	BoolAnd BoolOp = "AND"
	BoolOr  BoolOp = "OR"
)

// Expr is a boolean expression tree over Predicate/ExistsPredicate leaves.
// Exactly one of Leaf, Exists, or (Left/Op/Right) is set; Not negates
// whichever is set.
type Expr struct {
	Leaf   *Predicate
	Exists *ExistsPredicate
	Op     BoolOp
	Left   *Expr
	Right  *Expr
	Not    bool
}

// ReturnItem is one `var.attr [AS alias]` projection.
type ReturnItem struct {
	Var   string
	Attr  string
	Alias string
}

// Query is the fully parsed MATCH/WHERE/RETURN statement.
type Query struct {
	Match  MatchClause
	Where  *Expr
	Return []ReturnItem
}
