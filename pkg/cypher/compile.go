package cypher

import (
	"context"
	"fmt"

	"github.com/nervusdb/nervusdb/pkg/query"
	"github.com/nervusdb/nervusdb/pkg/types"
)

// Resolver looks up the dictionary atoms a compiled plan needs:
// relationship-type and label names resolve to AtomIDs, and parameters
// resolve to bound values supplied by the caller.
type Resolver interface {
	// ResolveAtom interns or looks up atom, used for relationship types
	// and property keys that must exist as AtomIDs before a Pattern can
	// reference them.
	ResolveAtom(atom string) (types.AtomID, error)
}

// Mutator applies the write clauses (CREATE, SET, REMOVE, DELETE,
// MERGE) a compiled statement produces. The root database handle
// implements this over its batch API; Compile never touches storage
// itself.
type Mutator interface {
	CreateNode(labels []string) (types.AtomID, error)
	CreateEdge(s types.AtomID, predicate string, o types.AtomID) error
	MergeNode(labels []string) (types.AtomID, bool, error)
	MergeEdge(s types.AtomID, predicate string, o types.AtomID) (bool, error)
	SetNodeProperty(id types.AtomID, key string, v types.Value) error
	SetEdgeProperty(s types.AtomID, predicate string, o types.AtomID, key string, v types.Value) error
	SetNodeLabel(id types.AtomID, label string) error
	RemoveNodeProperty(id types.AtomID, key string) error
	RemoveNodeLabel(id types.AtomID, label string) error
	DeleteNode(id types.AtomID, detach bool) error
	DeleteEdge(s types.AtomID, predicate string, o types.AtomID) error
}

// Compiled is a parsed statement lowered to an executable form: a read
// plan (CompiledRead), a write plan (CompiledWrite), or both when a
// statement both matches and mutates (e.g. MATCH ... SET).
type Compiled struct {
	Read  *CompiledRead
	Write *CompiledWrite
}

// CompiledRead is a MATCH/WHERE/RETURN/ORDER BY/SKIP/LIMIT statement
// lowered to a query.CompiledPattern, ready to run against an Engine.
type CompiledRead struct {
	pattern      *query.CompiledPattern
	returnNames  []string
	returnAlias  []string
	orderDesc    []bool
	skip         int
	limit        int
	hasSkip      bool
	hasLimit     bool
}

// Run executes the compiled read plan and projects each row down to
// its RETURN columns, in RETURN order, honoring SKIP/LIMIT.
func (r *CompiledRead) Run(ctx context.Context) ([]query.Row, error) {
	rows, err := r.pattern.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if r.hasSkip {
		if r.skip >= len(rows) {
			rows = nil
		} else {
			rows = rows[r.skip:]
		}
	}
	if r.hasLimit && len(rows) > r.limit {
		rows = rows[:r.limit]
	}
	if len(r.returnNames) == 0 {
		return rows, nil
	}
	out := make([]query.Row, 0, len(rows))
	for _, row := range rows {
		proj := make(query.Row, len(r.returnNames))
		for i, name := range r.returnNames {
			alias := r.returnAlias[i]
			if alias == "" {
				alias = name
			}
			proj[alias] = row[name]
		}
		out = append(out, proj)
	}
	return out, nil
}

// CompiledWrite is a sequence of applied write clauses, executed in
// source order against a Mutator. A clause that references a variable
// bound by a preceding MATCH (SET, REMOVE, DELETE) reads that
// variable's AtomID out of the row it is given; CREATE and MERGE bind
// their own pattern variables and ignore the row.
type CompiledWrite struct {
	ops []func(Mutator, query.Row) error
}

// RunOnce applies every compiled write operation against an empty row,
// for a statement with no preceding MATCH (a bare CREATE/MERGE).
func (w *CompiledWrite) RunOnce(m Mutator) error {
	return w.Run(m, query.Row{})
}

// Run applies every compiled write operation in order against one
// matched row, stopping at the first error. Call once per row a
// preceding MATCH produced.
func (w *CompiledWrite) Run(m Mutator, row query.Row) error {
	for _, op := range w.ops {
		if err := op(m, row); err != nil {
			return err
		}
	}
	return nil
}

// RunAll applies the compiled write against every row a preceding
// CompiledRead produced, or once against an empty row when there was
// no MATCH to drive it.
func (w *CompiledWrite) RunAll(m Mutator, rows []query.Row) error {
	if len(rows) == 0 {
		return w.RunOnce(m)
	}
	for _, row := range rows {
		if err := w.Run(m, row); err != nil {
			return err
		}
	}
	return nil
}

// atomFromRow resolves a MATCH-bound variable to the AtomID a prior
// read plan assigned it.
func atomFromRow(row query.Row, varName string) (types.AtomID, error) {
	v, ok := row[varName]
	if !ok || v.Kind != types.KindInt {
		return 0, &SyntaxError{Clause: varName, Message: "variable is not bound by a preceding MATCH"}
	}
	return types.AtomID(v.Int), nil
}

type compiler struct {
	engine   *query.Engine
	resolver Resolver
}

// Compile lowers a parsed Query into a Compiled plan. engine is nil for
// a statement with no MATCH/RETURN clause (a bare write statement).
func Compile(q *Query, engine *query.Engine, resolver Resolver) (*Compiled, error) {
	c := &compiler{engine: engine, resolver: resolver}
	out := &Compiled{}

	if len(q.With) > 0 {
		return nil, &SyntaxError{Clause: "with", Message: "WITH is parsed but not supported by the compiler"}
	}
	if q.Unwind != nil {
		return nil, &SyntaxError{Clause: "unwind", Message: "UNWIND is parsed but not supported by the compiler"}
	}

	if len(q.Match) > 0 || len(q.Return) > 0 {
		read, err := c.compileRead(q)
		if err != nil {
			return nil, err
		}
		out.Read = read
	}

	if len(q.Updates) > 0 {
		write, err := c.compileWrite(q)
		if err != nil {
			return nil, err
		}
		out.Write = write
	}

	return out, nil
}

func (c *compiler) compileRead(q *Query) (*CompiledRead, error) {
	pb := c.engine.NewPattern()
	for _, elem := range q.Match {
		if err := c.addPatternElement(pb, elem); err != nil {
			return nil, err
		}
	}
	if q.Where != nil {
		expr, err := c.lowerExpr(q.Where)
		if err != nil {
			return nil, err
		}
		pb.Where(expr)
	}
	if len(q.OrderBy) > 0 {
		names, err := orderByNames(q.OrderBy)
		if err != nil {
			return nil, err
		}
		pb.OrderBy(names...)
	}

	read := &CompiledRead{pattern: pb.Compile(), skip: q.Skip, hasSkip: q.HasSkip, limit: q.Limit, hasLimit: q.HasLimit}
	for _, item := range q.Return {
		name, ok := item.Expr.(VarExpr)
		if !ok {
			return nil, &SyntaxError{Clause: "return", Message: "only bare variables are projectable in this pass"}
		}
		read.returnNames = append(read.returnNames, name.Name)
		read.returnAlias = append(read.returnAlias, item.Alias)
	}
	return read, nil
}

func (c *compiler) addPatternElement(pb *query.PatternBuilder, elem PatternElementAST) error {
	for _, n := range elem.Nodes {
		pb.Node(query.NodePattern{Var: n.Var, Labels: n.Labels, Mode: types.LabelMatchAny})
	}
	for i, rel := range elem.Rels {
		from, to := elem.Nodes[i].Var, elem.Nodes[i+1].Var
		reverse := rel.Backward && !rel.Forward
		if reverse {
			from, to = to, from
		}
		if len(rel.Types) == 0 {
			return &SyntaxError{Clause: "match", Message: "a relationship pattern needs exactly one type in this pass"}
		}
		pred, err := c.resolver.ResolveAtom(rel.Types[0])
		if err != nil {
			return err
		}
		ep := query.EdgePattern{Var: rel.Var, From: from, To: to, Predicate: pred, Reverse: reverse}
		if rel.VarLength {
			ep.MinHops, ep.MaxHops = rel.MinHops, rel.MaxHops
		}
		pb.Edge(ep)
	}
	return nil
}

// orderByNames reduces ORDER BY items to bare variable names; a
// pattern's OrderBy sorts ascending column by column, so a DESC item
// is rejected rather than silently sorted the wrong way.
func orderByNames(items []OrderItem) ([]string, error) {
	names := make([]string, 0, len(items))
	for _, item := range items {
		if item.Desc {
			return nil, &SyntaxError{Clause: "order by", Message: "descending order is not supported in this pass"}
		}
		v, ok := item.Expr.(VarExpr)
		if !ok {
			return nil, &SyntaxError{Clause: "order by", Message: "only bare variables are orderable in this pass"}
		}
		names = append(names, v.Name)
	}
	return names, nil
}

func (c *compiler) lowerExpr(e Expr) (query.Expr, error) {
	switch v := e.(type) {
	case LitExpr:
		switch v.Kind {
		case "int":
			return query.Lit{Value: types.NewInt(v.Int)}, nil
		case "float":
			return query.Lit{Value: types.NewFloat(v.Float)}, nil
		case "string":
			return query.Lit{Value: types.NewString(v.Str)}, nil
		case "bool":
			return query.Lit{Value: types.NewBool(v.Bool)}, nil
		default:
			return query.Lit{Value: types.Null()}, nil
		}
	case VarExpr:
		return query.Var{Name: v.Name}, nil
	case PropertyExpr:
		return nil, &SyntaxError{Clause: "where", Message: fmt.Sprintf("property access %s.%s is not lowered in this pass; bind it through a pattern edge instead", v.Var, v.Key)}
	case NotExpr:
		operand, err := c.lowerExpr(v.Operand)
		if err != nil {
			return nil, err
		}
		return query.BinOp{Op: "=", Left: operand, Right: query.Lit{Value: types.NewBool(false)}}, nil
	case BinOpExpr:
		left, err := c.lowerExpr(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.lowerExpr(v.Right)
		if err != nil {
			return nil, err
		}
		return query.BinOp{Op: v.Op, Left: left, Right: right}, nil
	case CallExpr:
		return nil, &SyntaxError{Clause: "where", Message: "function " + v.Func + " is not supported in this pass"}
	case ParamExpr:
		return nil, &SyntaxError{Clause: "where", Message: "parameters are not bound in this pass"}
	default:
		return nil, &SyntaxError{Clause: "where", Message: "unsupported expression"}
	}
}

func (c *compiler) compileWrite(q *Query) (*CompiledWrite, error) {
	write := &CompiledWrite{}
	for _, clause := range q.Updates {
		clause := clause
		switch clause.Kind {
		case UpdateCreate:
			op, err := c.compileCreate(clause)
			if err != nil {
				return nil, err
			}
			write.ops = append(write.ops, op)
		case UpdateMerge:
			op, err := c.compileMerge(clause)
			if err != nil {
				return nil, err
			}
			write.ops = append(write.ops, op)
		case UpdateSet:
			write.ops = append(write.ops, c.compileSet(clause))
		case UpdateRemove:
			write.ops = append(write.ops, c.compileRemove(clause))
		case UpdateDelete:
			write.ops = append(write.ops, c.compileDelete(clause))
		}
	}
	return write, nil
}

func (c *compiler) compileCreate(clause UpdateClause) (func(Mutator, query.Row) error, error) {
	pattern := clause.Pattern
	if pattern == nil {
		return nil, &SyntaxError{Clause: "create", Message: "missing pattern"}
	}
	return func(m Mutator, _ query.Row) error {
		bound := make(map[string]types.AtomID, len(pattern.Nodes))
		for _, n := range pattern.Nodes {
			id, err := m.CreateNode(n.Labels)
			if err != nil {
				return err
			}
			if n.Var != "" {
				bound[n.Var] = id
			}
		}
		for i, rel := range pattern.Rels {
			if len(rel.Types) == 0 {
				return &SyntaxError{Clause: "create", Message: "a created relationship needs exactly one type"}
			}
			from, to := bound[pattern.Nodes[i].Var], bound[pattern.Nodes[i+1].Var]
			if rel.Backward && !rel.Forward {
				from, to = to, from
			}
			if err := m.CreateEdge(from, rel.Types[0], to); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (c *compiler) compileMerge(clause UpdateClause) (func(Mutator, query.Row) error, error) {
	pattern := clause.Pattern
	if pattern == nil {
		return nil, &SyntaxError{Clause: "merge", Message: "missing pattern"}
	}
	return func(m Mutator, _ query.Row) error {
		bound := make(map[string]types.AtomID, len(pattern.Nodes))
		for _, n := range pattern.Nodes {
			id, _, err := m.MergeNode(n.Labels)
			if err != nil {
				return err
			}
			if n.Var != "" {
				bound[n.Var] = id
			}
		}
		for i, rel := range pattern.Rels {
			if len(rel.Types) == 0 {
				return &SyntaxError{Clause: "merge", Message: "a merged relationship needs exactly one type"}
			}
			from, to := bound[pattern.Nodes[i].Var], bound[pattern.Nodes[i+1].Var]
			if rel.Backward && !rel.Forward {
				from, to = to, from
			}
			if _, err := m.MergeEdge(from, rel.Types[0], to); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (c *compiler) compileSet(clause UpdateClause) func(Mutator, query.Row) error {
	items := clause.SetProps
	return func(m Mutator, row query.Row) error {
		for _, item := range items {
			id, err := atomFromRow(row, item.Var)
			if err != nil {
				return err
			}
			if item.Label != "" {
				if err := m.SetNodeLabel(id, item.Label); err != nil {
					return err
				}
				continue
			}
			v, err := c.lowerLiteral(item.Value)
			if err != nil {
				return err
			}
			if err := m.SetNodeProperty(id, item.Key, v); err != nil {
				return err
			}
		}
		return nil
	}
}

func (c *compiler) compileRemove(clause UpdateClause) func(Mutator, query.Row) error {
	items := clause.Removals
	return func(m Mutator, row query.Row) error {
		for _, item := range items {
			id, err := atomFromRow(row, item.Var)
			if err != nil {
				return err
			}
			if item.Label != "" {
				if err := m.RemoveNodeLabel(id, item.Label); err != nil {
					return err
				}
				continue
			}
			if err := m.RemoveNodeProperty(id, item.Key); err != nil {
				return err
			}
		}
		return nil
	}
}

func (c *compiler) compileDelete(clause UpdateClause) func(Mutator, query.Row) error {
	detach := clause.Detach
	targets := clause.Targets
	return func(m Mutator, row query.Row) error {
		for _, target := range targets {
			id, err := atomFromRow(row, target)
			if err != nil {
				return err
			}
			if err := m.DeleteNode(id, detach); err != nil {
				return err
			}
		}
		return nil
	}
}

// lowerLiteral evaluates a constant SET value; non-literal expressions
// (property-to-property copies, arithmetic) are future work for this
// pass.
func (c *compiler) lowerLiteral(e Expr) (types.Value, error) {
	lit, ok := e.(LitExpr)
	if !ok {
		return types.Value{}, &SyntaxError{Clause: "set", Message: "only literal values are supported as a SET right-hand side in this pass"}
	}
	switch lit.Kind {
	case "int":
		return types.NewInt(lit.Int), nil
	case "float":
		return types.NewFloat(lit.Float), nil
	case "string":
		return types.NewString(lit.Str), nil
	case "bool":
		return types.NewBool(lit.Bool), nil
	default:
		return types.Null(), nil
	}
}
