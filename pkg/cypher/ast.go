package cypher

import "fmt"

// SyntaxError is raised for anything outside the supported whitelist,
// or a malformed statement, naming the offending clause/token.
type SyntaxError struct {
	Clause  string
	Message string
	Pos     int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("cypher: syntax error near %q at position %d: %s", e.Clause, e.Pos, e.Message)
}

// Expr is a parsed expression node, lowered to a query.Expr by the
// compiler once variable names resolve to row bindings.
type Expr interface{ exprNode() }

type LitExpr struct {
	Kind  string // "int", "float", "string", "bool", "null"
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

func (LitExpr) exprNode() {}

type ParamExpr struct{ Name string }

func (ParamExpr) exprNode() {}

type VarExpr struct{ Name string }

func (VarExpr) exprNode() {}

type PropertyExpr struct {
	Var string
	Key string
}

func (PropertyExpr) exprNode() {}

type BinOpExpr struct {
	Op          string
	Left, Right Expr
}

func (BinOpExpr) exprNode() {}

type NotExpr struct{ Operand Expr }

func (NotExpr) exprNode() {}

type CallExpr struct {
	Func string
	Args []Expr
}

func (CallExpr) exprNode() {}

// NodePatternAST is one (var:Label {props}) pattern.
type NodePatternAST struct {
	Var    string
	Labels []string
}

// RelPatternAST is one relationship pattern between two node patterns.
type RelPatternAST struct {
	Var       string
	Types     []string
	Forward   bool // -> (left-to-right)
	Backward  bool // <-
	MinHops   int
	MaxHops   int
	VarLength bool
}

// PatternElementAST chains node and relationship patterns:
// (a)-[r]->(b)-[r2]->(c) becomes Nodes=[a,b,c], Rels=[r,r2].
type PatternElementAST struct {
	Nodes []NodePatternAST
	Rels  []RelPatternAST
}

// ReturnItem is one RETURN projection: an expression plus optional
// alias.
type ReturnItem struct {
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr descExpr
	Desc bool
}

type descExpr = Expr

// UpdateClauseKind discriminates a write clause.
type UpdateClauseKind uint8

const (
	UpdateCreate UpdateClauseKind = iota
	UpdateSet
	UpdateRemove
	UpdateDelete
	UpdateMerge
)

// UpdateClause is one CREATE/SET/REMOVE/DELETE/MERGE clause.
type UpdateClause struct {
	Kind     UpdateClauseKind
	Pattern  *PatternElementAST // CREATE, MERGE
	Detach   bool               // DETACH DELETE
	Targets  []string           // DELETE targets (variable names)
	SetProps []SetItem          // SET
	Removals []RemoveItem       // REMOVE
}

// SetItem is one `var.key = expr` or `var:Label` assignment.
type SetItem struct {
	Var   string
	Key   string // empty for a label assignment
	Label string // non-empty for `var:Label`
	Value Expr
}

// RemoveItem is one `var.key` or `var:Label` removal.
type RemoveItem struct {
	Var   string
	Key   string
	Label string
}

// Query is a fully parsed statement: an ordered clause list, built in
// source order so WITH-chained multi-part queries compile left to
// right.
type Query struct {
	Match    []PatternElementAST
	Where    Expr
	Updates  []UpdateClause
	Unwind   *UnwindClause
	With     []ReturnItem
	Return   []ReturnItem
	OrderBy  []OrderItem
	Skip     int
	HasSkip  bool
	Limit    int
	HasLimit bool
	Distinct bool
}

// UnwindClause expands a list-valued expression into one row per
// element, bound to Var.
type UnwindClause struct {
	Source Expr
	Var    string
}
