package query

import (
	"context"
	"sort"

	"github.com/nervusdb/nervusdb/pkg/types"
)

// NodePattern binds a pattern variable to a node, optionally restricted
// by label.
type NodePattern struct {
	Var    string
	Labels []string
	Mode   types.LabelMatchMode
}

// EdgePattern connects two node variables via a predicate, optionally
// variable-length.
type EdgePattern struct {
	Var       string // empty if the edge itself is not bound to a variable
	From, To  string // node pattern variables this edge connects
	Predicate types.AtomID
	Reverse   bool // source pattern was written right-to-left; From/To already name subject/object and the join ignores this
	MinHops   int  // 0 or 1 means a single hop; >1 triggers variable-length expansion
	MaxHops   int
}

// Pattern is a sequence of node and edge patterns plus a WHERE
// predicate and return projection, the programmatic equivalent of a
// MATCH ... WHERE ... RETURN clause.
type Pattern struct {
	Nodes   []NodePattern
	Edges   []EdgePattern
	Where   Expr
	Return  []string
	OrderBy []string
	Limit   int
}

// PatternBuilder composes a Pattern incrementally.
type PatternBuilder struct {
	engine  *Engine
	pattern Pattern
}

// NewPattern starts a pattern over engine.
func (e *Engine) NewPattern() *PatternBuilder {
	return &PatternBuilder{engine: e}
}

func (pb *PatternBuilder) Node(np NodePattern) *PatternBuilder {
	pb.pattern.Nodes = append(pb.pattern.Nodes, np)
	return pb
}

func (pb *PatternBuilder) Edge(ep EdgePattern) *PatternBuilder {
	pb.pattern.Edges = append(pb.pattern.Edges, ep)
	return pb
}

func (pb *PatternBuilder) Where(e Expr) *PatternBuilder {
	pb.pattern.Where = e
	return pb
}

func (pb *PatternBuilder) Return(vars ...string) *PatternBuilder {
	pb.pattern.Return = vars
	return pb
}

func (pb *PatternBuilder) OrderBy(vars ...string) *PatternBuilder {
	pb.pattern.OrderBy = vars
	return pb
}

func (pb *PatternBuilder) Limit(n int) *PatternBuilder {
	pb.pattern.Limit = n
	return pb
}

// Compile produces a planned scan-and-join sequence ordered by
// estimated selectivity: node patterns carrying a label filter go
// first (labels are usually the most selective predicate available),
// then edges are applied in the order given, joining on shared
// variables.
func (pb *PatternBuilder) Compile() *CompiledPattern {
	nodes := append([]NodePattern(nil), pb.pattern.Nodes...)
	sortBySelectivity(nodes)
	return &CompiledPattern{engine: pb.engine, pattern: pb.pattern, startOrder: nodes}
}

func sortBySelectivity(nodes []NodePattern) {
	// Labeled patterns are estimated more selective than unlabeled
	// ones; a stable partition keeps ties in declaration order.
	labeled := nodes[:0:0]
	unlabeled := make([]NodePattern, 0, len(nodes))
	for _, n := range nodes {
		if len(n.Labels) > 0 {
			labeled = append(labeled, n)
		} else {
			unlabeled = append(unlabeled, n)
		}
	}
	copy(nodes, append(labeled, unlabeled...))
}

// CompiledPattern is a Pattern reduced to a concrete scan/join plan,
// ready to execute.
type CompiledPattern struct {
	engine     *Engine
	pattern    Pattern
	startOrder []NodePattern
}

// Execute streams result rows, each a binding of every pattern
// variable to its AtomID, filtered by Where and truncated by Limit.
// Ordering and the Limit truncation both require the full result set,
// so Execute collects via ExecuteStreaming rather than avoiding
// materialization itself; callers that need to avoid materializing
// (an unordered Aggregate, a bounded top-K) should call
// ExecuteStreaming directly instead.
func (c *CompiledPattern) Execute(ctx context.Context) ([]Row, error) {
	var out []Row
	err := c.ExecuteStreaming(ctx, func(row Row) (bool, error) {
		out = append(out, row)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if len(c.pattern.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, col := range c.pattern.OrderBy {
				less, ok := out[i][col].Less(out[j][col])
				if !ok {
					continue
				}
				if less {
					return true
				}
				if !out[i][col].Equal(out[j][col]) {
					return false
				}
			}
			return false
		})
	}

	if c.pattern.Limit > 0 && len(out) > c.pattern.Limit {
		out = out[:c.pattern.Limit]
	}
	return out, nil
}

// ExecuteStreaming walks the pattern's seeds and joins depth-first,
// calling visit once per row that passes Where — without ever holding
// more than one in-flight join chain in memory. visit returning
// (false, nil) stops the walk early (the mechanism a bounded top-K or
// a short-circuiting accumulator relies on); it does not materialize
// OrderBy or Limit, since both require seeing every row first.
func (c *CompiledPattern) ExecuteStreaming(ctx context.Context, visit func(Row) (bool, error)) error {
	seeds, err := c.seedRows()
	if err != nil {
		return err
	}
	for _, seed := range seeds {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		cont, err := c.joinFrom(seed, 0, visit)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// joinFrom recursively joins row through pattern.Edges[depth:]; once
// every edge has been applied it evaluates Where and calls visit. It
// returns false the instant visit (or a nested recursive call) asks to
// stop, unwinding without visiting any further candidate row.
func (c *CompiledPattern) joinFrom(row Row, depth int, visit func(Row) (bool, error)) (bool, error) {
	if depth == len(c.pattern.Edges) {
		if c.pattern.Where != nil {
			v, err := c.pattern.Where.Eval(row)
			if err != nil {
				return false, err
			}
			if v.IsNull() || v.Kind != types.KindBool || !v.Bool {
				return true, nil
			}
		}
		return visit(row)
	}
	edge := c.pattern.Edges[depth]
	return c.joinEdgeStep(row, edge, func(next Row) (bool, error) {
		return c.joinFrom(next, depth+1, visit)
	})
}

func (c *CompiledPattern) seedRows() ([]Row, error) {
	if len(c.startOrder) == 0 {
		return []Row{{}}, nil
	}
	first := c.startOrder[0]
	var ids []types.AtomID
	if len(first.Labels) > 0 {
		ids = c.engine.Labels.FindByLabel(first.Mode, first.Labels...)
	} else {
		it, err := c.engine.Triples.Scan(types.Criteria{})
		if err != nil {
			return nil, err
		}
		seen := make(map[types.AtomID]struct{})
		for {
			t, ok := it.Next()
			if !ok {
				break
			}
			if _, dup := seen[t.S]; !dup {
				seen[t.S] = struct{}{}
				ids = append(ids, t.S)
			}
		}
		it.Cancel()
	}
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, Row{first.Var: types.NewInt(int64(id))})
	}
	return rows, nil
}

// joinEdgeStep scans row's single-hop matches for edge (or, when edge
// declares a hop range, performs variable-length expansion) and calls
// visit once per joined row produced. It is the per-row primitive both
// the materializing Execute and the row-at-a-time ExecuteStreaming
// build on, so neither path duplicates join logic.
func (c *CompiledPattern) joinEdgeStep(row Row, edge EdgePattern, visit func(Row) (bool, error)) (bool, error) {
	if edge.MaxHops > 1 {
		return c.joinVarLengthStep(row, edge, visit)
	}

	fromVal, fromBound := row[edge.From]
	toVal, toBound := row[edge.To]

	var criteria types.Criteria
	pred := edge.Predicate
	switch {
	case fromBound && !toBound:
		s := types.AtomID(fromVal.Int)
		criteria = types.Criteria{Subject: &s, Predicate: &pred}
	case !fromBound && toBound:
		o := types.AtomID(toVal.Int)
		criteria = types.Criteria{Predicate: &pred, Object: &o}
	case fromBound && toBound:
		s, o := types.AtomID(fromVal.Int), types.AtomID(toVal.Int)
		criteria = types.Criteria{Subject: &s, Predicate: &pred, Object: &o}
	default:
		criteria = types.Criteria{Predicate: &pred}
	}

	it, err := c.engine.Triples.Scan(criteria)
	if err != nil {
		return false, err
	}
	defer it.Cancel()
	for {
		t, ok := it.Next()
		if !ok {
			break
		}
		next := cloneRow(row)
		next[edge.From] = types.NewInt(int64(t.S))
		next[edge.To] = types.NewInt(int64(t.O))
		if edge.Var != "" {
			next[edge.Var+".s"] = types.NewInt(int64(t.S))
			next[edge.Var+".o"] = types.NewInt(int64(t.O))
		}
		cont, err := visit(next)
		if err != nil || !cont {
			return cont, err
		}
	}
	return true, nil
}

// joinVarLengthStep handles a -[:TYPE*Min..Max]-> edge by running the
// same BFS hop-expansion VariablePath uses for a Follow chain, rather
// than silently falling back to a single scan: edge.From must already
// be bound (a variable-length pattern cannot seed from an unbound
// node), and edge.To is either bound (filtering the reached frontier)
// or newly bound to every node reached within [MinHops, MaxHops].
func (c *CompiledPattern) joinVarLengthStep(row Row, edge EdgePattern, visit func(Row) (bool, error)) (bool, error) {
	fromVal, fromBound := row[edge.From]
	if !fromBound {
		return false, NewRuntimeType("pattern", "variable-length edge "+edge.Var+" requires a bound start node")
	}
	minHops := edge.MinHops
	if minHops < 1 {
		minHops = 1
	}
	maxHops := edge.MaxHops
	if maxHops < minHops {
		maxHops = minHops
	}

	toVal, toBound := row[edge.To]
	b := &Builder{engine: c.engine}
	traces, err := b.VariablePath(edge.Predicate, VariablePathOptions{
		Min:        minHops,
		Max:        maxHops,
		Uniqueness: UniquenessNodeGlobal,
	}, []types.AtomID{types.AtomID(fromVal.Int)})
	if err != nil {
		return false, err
	}

	for _, tr := range traces {
		if toBound && types.AtomID(toVal.Int) != tr.Node {
			continue
		}
		next := cloneRow(row)
		next[edge.To] = types.NewInt(int64(tr.Node))
		if edge.Var != "" {
			next[edge.Var+".hops"] = types.NewInt(int64(len(tr.Edges)))
		}
		cont, err := visit(next)
		if err != nil || !cont {
			return cont, err
		}
	}
	return true, nil
}

func cloneRow(r Row) Row {
	out := make(Row, len(r)+2)
	for k, v := range r {
		out[k] = v
	}
	return out
}
