package graphquery

import (
	"strings"

	"github.com/fctr-id/okta-ai-agent/internal/graphsnapshot"
	"github.com/fctr-id/okta-ai-agent/internal/toolerrors"
)

// Result is the tabular output of a query: column names in projection
// order, plus one row dictionary per matched binding.
type Result struct {
	Columns []string
	Rows    []map[string]any
}

type binding map[string]graphsnapshot.Node

// Run parses, validates, and executes query text against reader, honoring
// the safety policy first. It is the single entry point the run_graph_query
// tool calls.
func Run(reader *graphsnapshot.Reader, query string, policy TenantPolicy) (Result, *toolerrors.ToolError) {
	if terr := CheckSafety(query, policy); terr != nil {
		return Result{}, terr
	}
	q, err := Parse(query)
	if err != nil {
		return Result{}, toolerrors.Errorf(toolerrors.KindUnsafeQuery, "query could not be parsed: %v", err)
	}
	return execute(reader, q)
}

func execute(reader *graphsnapshot.Reader, q *Query) (Result, *toolerrors.ToolError) {
	dynamicCols, err := reader.SchemaColumns()
	if err != nil {
		return Result{}, toolerrors.Errorf(toolerrors.KindUnrecoverable, "read dynamic schema: %v", err)
	}

	if terr := checkAttrsKnown(q, dynamicCols); terr != nil {
		return Result{}, terr
	}

	startNodes, err := reader.ListNodes(q.Match.Start.Label)
	if err != nil {
		return Result{}, toolerrors.Errorf(toolerrors.KindUnrecoverable, "scan label %s: %v", q.Match.Start.Label, err)
	}

	bindings := make([]binding, 0, len(startNodes))
	for _, n := range startNodes {
		bindings = append(bindings, binding{q.Match.Start.Var: n})
	}

	for _, hop := range q.Match.Hops {
		var expanded []binding
		fromVar := currentFrontierVar(q.Match, hop)
		for _, b := range bindings {
			fromNode := b[fromVar]
			toIDs, err := reader.OutEdges(hop.Type, fromNode.ExternalID)
			if err != nil {
				return Result{}, toolerrors.Errorf(toolerrors.KindUnrecoverable, "expand %s from %s: %v", hop.Type, fromNode.ExternalID, err)
			}
			for _, id := range toIDs {
				toNode, found, err := reader.GetNode(hop.To.Label, id)
				if err != nil {
					return Result{}, toolerrors.Errorf(toolerrors.KindUnrecoverable, "fetch %s/%s: %v", hop.To.Label, id, err)
				}
				if !found {
					continue // dangling edge past a retired version; skip rather than fail the query
				}
				next := make(binding, len(b)+1)
				for k, v := range b {
					next[k] = v
				}
				next[hop.To.Var] = toNode
				expanded = append(expanded, next)
			}
		}
		bindings = expanded
	}

	var rows []map[string]any
	for _, b := range bindings {
		if q.Where != nil {
			ok, terr := evalExpr(q.Where, b)
			if terr != nil {
				return Result{}, terr
			}
			if !ok {
				continue
			}
		}
		row := make(map[string]any, len(q.Return))
		for _, item := range q.Return {
			name := item.Alias
			if name == "" {
				name = item.Var + "_" + item.Attr
			}
			node, ok := b[item.Var]
			if !ok {
				return Result{}, toolerrors.Errorf(toolerrors.KindUnsafeQuery, "RETURN references variable %q not bound by MATCH", item.Var)
			}
			row[name] = attrValue(node, item.Attr)
		}
		rows = append(rows, row)
	}

	columns := make([]string, 0, len(q.Return))
	for _, item := range q.Return {
		if item.Alias != "" {
			columns = append(columns, item.Alias)
		} else {
			columns = append(columns, item.Var+"_"+item.Attr)
		}
	}
	return Result{Columns: columns, Rows: rows}, nil
}

// currentFrontierVar determines which already-bound variable a hop
// extends from: the MATCH start for the first hop, otherwise the
// preceding hop's target.
func currentFrontierVar(m MatchClause, hop RelPattern) string {
	for i := range m.Hops {
		if m.Hops[i].Type == hop.Type && m.Hops[i].To.Var == hop.To.Var {
			if i == 0 {
				return m.Start.Var
			}
			return m.Hops[i-1].To.Var
		}
	}
	return m.Start.Var
}

func attrValue(n graphsnapshot.Node, attr string) any {
	if attr == "external_id" {
		return n.ExternalID
	}
	return n.Attrs[attr]
}

func checkAttrsKnown(q *Query, dynamicPersonCols []string) *toolerrors.ToolError {
	labelOf := func(v string) (graphsnapshot.NodeLabel, bool) {
		if v == q.Match.Start.Var {
			return q.Match.Start.Label, true
		}
		for _, hop := range q.Match.Hops {
			if hop.To.Var == v {
				return hop.To.Label, true
			}
		}
		return "", false
	}
	checkOne := func(v, attr string) *toolerrors.ToolError {
		label, ok := labelOf(v)
		if !ok {
			return toolerrors.Errorf(toolerrors.KindUnsafeQuery, "reference to unbound variable %q", v)
		}
		if !knownAttribute(label, attr, dynamicPersonCols) {
			return toolerrors.Errorf(toolerrors.KindInvalidAttribute, "%s has no attribute %q", label, attr)
		}
		return nil
	}
	for _, item := range q.Return {
		if terr := checkOne(item.Var, item.Attr); terr != nil {
			return terr
		}
	}
	if q.Where != nil {
		return checkExprAttrs(q.Where, checkOne)
	}
	return nil
}

func checkExprAttrs(e *Expr, checkOne func(v, attr string) *toolerrors.ToolError) *toolerrors.ToolError {
	if e.Leaf != nil {
		return checkOne(e.Leaf.Var, e.Leaf.Attr)
	}
	if e.Exists != nil {
		return checkOne(e.Exists.Var, e.Exists.Attr)
	}
	if terr := checkExprAttrs(e.Left, checkOne); terr != nil {
		return terr
	}
	return checkExprAttrs(e.Right, checkOne)
}

func evalExpr(e *Expr, b binding) (bool, *toolerrors.ToolError) {
	var result bool
	var terr *toolerrors.ToolError
	switch {
	case e.Leaf != nil:
		result, terr = evalPredicate(e.Leaf, b)
	case e.Exists != nil:
		result, terr = evalExists(e.Exists, b)
	default:
		left, err := evalExpr(e.Left, b)
		if err != nil {
			return false, err
		}
		right, err := evalExpr(e.Right, b)
		if err != nil {
			return false, err
		}
		if e.Op == BoolAnd {
			result = left && right
		} else {
			result = left || right
		}
	}
	if terr != nil {
		return false, terr
	}
	if e.Not {
		result = !result
	}
	return result, nil
}

func evalPredicate(p *Predicate, b binding) (bool, *toolerrors.ToolError) {
	node, ok := b[p.Var]
	if !ok {
		return false, toolerrors.Errorf(toolerrors.KindUnsafeQuery, "WHERE references unbound variable %q", p.Var)
	}
	actual := attrValue(node, p.Attr)

	if p.Op == OpContains {
		return containsValue(actual, p.Value), nil
	}

	if p.Value.IsNull {
		isNil := actual == nil
		if p.Op == OpEq {
			return isNil, nil
		}
		if p.Op == OpNeq {
			return !isNil, nil
		}
		return false, toolerrors.Errorf(toolerrors.KindUnsafeQuery, "operator %s not valid against NULL", p.Op)
	}

	switch v := actual.(type) {
	case string:
		if p.Value.Str == nil {
			return false, nil
		}
		return compareOrdered(v, *p.Value.Str, p.Op), nil
	case float64:
		if p.Value.Num == nil {
			return false, nil
		}
		return compareNumeric(v, *p.Value.Num, p.Op), nil
	case bool:
		if p.Value.Bool == nil {
			return false, nil
		}
		return compareBool(v, *p.Value.Bool, p.Op), nil
	default:
		return false, nil
	}
}

func evalExists(p *ExistsPredicate, b binding) (bool, *toolerrors.ToolError) {
	node, ok := b[p.Var]
	if !ok {
		return false, toolerrors.Errorf(toolerrors.KindUnsafeQuery, "WHERE references unbound variable %q", p.Var)
	}
	actual := attrValue(node, p.Attr)
	return containsValue(actual, p.Value), nil
}

// containsValue implements the engine's existential quantifier: if actual
// is a list, true when any element's string form contains the needle;
// if actual is a scalar string, true on a plain substring match.
func containsValue(actual any, needle Value) bool {
	if needle.Str == nil {
		return false
	}
	n := *needle.Str
	switch v := actual.(type) {
	case []any:
		for _, el := range v {
			if s, ok := el.(string); ok && strings.Contains(s, n) {
				return true
			}
		}
		return false
	case []string:
		for _, s := range v {
			if strings.Contains(s, n) {
				return true
			}
		}
		return false
	case string:
		return strings.Contains(v, n)
	default:
		return false
	}
}

func compareOrdered(actual, want string, op CompareOp) bool {
	switch op {
	case OpEq:
		return actual == want
	case OpNeq:
		return actual != want
	case OpLt:
		return actual < want
	case OpGt:
		return actual > want
	case OpLte:
		return actual <= want
	case OpGte:
		return actual >= want
	}
	return false
}

func compareNumeric(actual, want float64, op CompareOp) bool {
	switch op {
	case OpEq:
		return actual == want
	case OpNeq:
		return actual != want
	case OpLt:
		return actual < want
	case OpGt:
		return actual > want
	case OpLte:
		return actual <= want
	case OpGte:
		return actual >= want
	}
	return false
}

func compareBool(actual, want bool, op CompareOp) bool {
	switch op {
	case OpEq:
		return actual == want
	case OpNeq:
		return actual != want
	}
	return false
}
