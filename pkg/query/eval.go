package query

import (
	"github.com/nervusdb/nervusdb/pkg/types"
)

// Row is one partial result: a binding of variable names to values,
// threaded through WHERE, projection, ORDER BY, and aggregation
// argument evaluation.
type Row map[string]types.Value

// Expr is the evaluation interface every WHERE/projection/ORDER
// BY/UNWIND/SET/aggregation-argument node implements. Eval must type
// check its operands before computing and return a *RuntimeType error
// (never a bare "null") on an illegal combination.
type Expr interface {
	Eval(row Row) (types.Value, error)
}

// Lit is a constant expression.
type Lit struct{ Value types.Value }

func (l Lit) Eval(Row) (types.Value, error) { return l.Value, nil }

// Var reads a bound variable; an unbound variable evaluates to Null
// (three-valued logic), not an error.
type Var struct{ Name string }

func (v Var) Eval(row Row) (types.Value, error) {
	if val, ok := row[v.Name]; ok {
		return val, nil
	}
	return types.Null(), nil
}

// BinOp is a binary comparison or arithmetic operator. Every Eval call
// type-checks both operands before computing.
type BinOp struct {
	Op    string // "=", "<>", "<", "<=", ">", ">=", "+", "-", "*", "/", "and", "or"
	Left  Expr
	Right Expr
}

func (b BinOp) Eval(row Row) (types.Value, error) {
	l, err := b.Left.Eval(row)
	if err != nil {
		return types.Value{}, err
	}
	r, err := b.Right.Eval(row)
	if err != nil {
		return types.Value{}, err
	}

	switch b.Op {
	case "and", "or":
		return evalLogic(b.Op, l, r)
	case "=", "<>":
		if l.IsNull() || r.IsNull() {
			return types.Null(), nil
		}
		eq := l.Equal(r)
		if b.Op == "<>" {
			eq = !eq
		}
		return types.NewBool(eq), nil
	case "<", "<=", ">", ">=":
		return evalOrder(b.Op, l, r)
	case "+", "-", "*", "/":
		return evalArith(b.Op, l, r)
	default:
		return types.Value{}, NewRuntimeType("binop", "unknown operator "+b.Op)
	}
}

func evalLogic(op string, l, r types.Value) (types.Value, error) {
	if !isBoolOrNull(l) || !isBoolOrNull(r) {
		return types.Value{}, NewRuntimeType(op, "operands must be boolean")
	}
	if l.IsNull() && r.IsNull() {
		return types.Null(), nil
	}
	if op == "and" {
		if (!l.IsNull() && !l.Bool) || (!r.IsNull() && !r.Bool) {
			return types.NewBool(false), nil
		}
		if l.IsNull() || r.IsNull() {
			return types.Null(), nil
		}
		return types.NewBool(l.Bool && r.Bool), nil
	}
	if (!l.IsNull() && l.Bool) || (!r.IsNull() && r.Bool) {
		return types.NewBool(true), nil
	}
	if l.IsNull() || r.IsNull() {
		return types.Null(), nil
	}
	return types.NewBool(l.Bool || r.Bool), nil
}

func isBoolOrNull(v types.Value) bool {
	return v.IsNull() || v.Kind == types.KindBool
}

func evalOrder(op string, l, r types.Value) (types.Value, error) {
	if l.IsNull() || r.IsNull() {
		return types.Null(), nil
	}
	less, ok := l.Less(r)
	if !ok {
		return types.Value{}, NewRuntimeType(op, "operands are not orderable or differ in kind")
	}
	switch op {
	case "<":
		return types.NewBool(less), nil
	case "<=":
		return types.NewBool(less || l.Equal(r)), nil
	case ">":
		return types.NewBool(!less && !l.Equal(r)), nil
	default: // ">="
		return types.NewBool(!less), nil
	}
}

func evalArith(op string, l, r types.Value) (types.Value, error) {
	if l.IsNull() || r.IsNull() {
		return types.Null(), nil
	}
	if op == "+" && l.Kind == types.KindString && r.Kind == types.KindString {
		return types.NewString(l.Str + r.Str), nil
	}
	lf, lok := l.AsFloat64()
	rf, rok := r.AsFloat64()
	if !lok || !rok {
		return types.Value{}, NewRuntimeType(op, "arithmetic requires numeric operands")
	}
	var out float64
	switch op {
	case "+":
		out = lf + rf
	case "-":
		out = lf - rf
	case "*":
		out = lf * rf
	case "/":
		if rf == 0 {
			return types.Value{}, NewRuntimeType(op, "division by zero")
		}
		out = lf / rf
	}
	if l.Kind == types.KindInt && r.Kind == types.KindInt && op != "/" {
		return types.NewInt(int64(out)), nil
	}
	return types.NewFloat(out), nil
}

// ToBoolean coerces v to a boolean, as Cypher's toBoolean(). Only Bool
// and Null coerce; any other kind (e.g. toBoolean(1)) is a type error,
// never a silent null, matching the runtime-safety invariant.
func ToBoolean(v types.Value) (types.Value, error) {
	switch v.Kind {
	case types.KindBool, types.KindNull:
		return v, nil
	default:
		return types.Value{}, NewRuntimeType("toBoolean", "operand is not boolean or null")
	}
}

// Index evaluates list/map subscript access, type-checking the
// container/key combination before indexing.
type Index struct {
	Container Expr
	Key       Expr
}

func (ix Index) Eval(row Row) (types.Value, error) {
	c, err := ix.Container.Eval(row)
	if err != nil {
		return types.Value{}, err
	}
	k, err := ix.Key.Eval(row)
	if err != nil {
		return types.Value{}, err
	}
	if c.IsNull() || k.IsNull() {
		return types.Null(), nil
	}
	switch c.Kind {
	case types.KindList:
		if k.Kind != types.KindInt {
			return types.Value{}, NewRuntimeType("index", "a list can only be indexed by an integer")
		}
		i := int(k.Int)
		if i < 0 || i >= len(c.List) {
			return types.Null(), nil
		}
		return c.List[i], nil
	case types.KindMap:
		if k.Kind != types.KindString {
			return types.Value{}, NewRuntimeType("index", "a map can only be indexed by a string")
		}
		v, ok := c.Map[k.Str]
		if !ok {
			return types.Null(), nil
		}
		return v, nil
	default:
		return types.Value{}, NewRuntimeType("index", "value is not a list or map")
	}
}
