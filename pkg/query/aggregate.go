package query

import (
	"context"
	"sort"
	"strconv"

	"github.com/nervusdb/nervusdb/pkg/types"
)

// AggFunc names a supported accumulator.
type AggFunc uint8

const (
	AggCount AggFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggCollect
)

// AggSpec names one output column: apply Func to Arg's evaluation of
// each row in the group (Arg may be nil for AggCount, counting rows).
type AggSpec struct {
	Name string
	Func AggFunc
	Arg  Expr
}

// Aggregate runs a streaming group-by over rows produced by a Pattern
// or Builder: maintains one accumulator set per distinct GroupBy key
// tuple as rows arrive, never materializing more than one row per
// group.
type Aggregate struct {
	engine  *Engine
	pattern *CompiledPattern
	groupBy []string
	specs   []AggSpec
	orderBy []string
	limit   int
}

// NewAggregate builds a streaming aggregation over a compiled pattern's
// rows.
func (e *Engine) NewAggregate(pattern *CompiledPattern) *Aggregate {
	return &Aggregate{engine: e, pattern: pattern}
}

func (a *Aggregate) GroupBy(keys ...string) *Aggregate {
	a.groupBy = keys
	return a
}

func (a *Aggregate) Agg(specs ...AggSpec) *Aggregate {
	a.specs = append(a.specs, specs...)
	return a
}

func (a *Aggregate) OrderBy(cols ...string) *Aggregate {
	a.orderBy = cols
	return a
}

func (a *Aggregate) Limit(n int) *Aggregate {
	a.limit = n
	return a
}

type accumulator struct {
	count int64
	sum   float64
	min   *types.Value
	max   *types.Value
	items []types.Value
	seenF bool
}

func newAccumulator() *accumulator { return &accumulator{} }

func (acc *accumulator) observe(fn AggFunc, v types.Value) error {
	switch fn {
	case AggCount:
		acc.count++
	case AggSum, AggAvg:
		if v.IsNull() {
			return nil
		}
		f, ok := v.AsFloat64()
		if !ok {
			return NewRuntimeType("aggregate", "sum/avg requires a numeric argument")
		}
		acc.sum += f
		acc.count++
	case AggMin, AggMax:
		if v.IsNull() {
			return nil
		}
		if acc.min == nil {
			mv, Mv := v, v
			acc.min, acc.max = &mv, &Mv
			return nil
		}
		if less, ok := v.Less(*acc.min); ok && less {
			acc.min = &v
		}
		if less, ok := acc.max.Less(v); ok && less {
			acc.max = &v
		}
	case AggCollect:
		acc.items = append(acc.items, v)
	}
	return nil
}

func (acc *accumulator) result(fn AggFunc) types.Value {
	switch fn {
	case AggCount:
		return types.NewInt(acc.count)
	case AggSum:
		return types.NewFloat(acc.sum)
	case AggAvg:
		if acc.count == 0 {
			return types.Null()
		}
		return types.NewFloat(acc.sum / float64(acc.count))
	case AggMin:
		if acc.min == nil {
			return types.Null()
		}
		return *acc.min
	case AggMax:
		if acc.max == nil {
			return types.Null()
		}
		return *acc.max
	case AggCollect:
		return types.NewList(acc.items)
	default:
		return types.Null()
	}
}

// aggState is the live per-group accumulator set an Execute or
// ExecuteStreaming pass builds up one row at a time.
type aggState struct {
	order  []string
	groups map[string]*aggGroup
}

type aggGroup struct {
	key  Row
	accs map[string]*accumulator
}

func newAggState() *aggState {
	return &aggState{groups: make(map[string]*aggGroup)}
}

// observe folds one pattern row into its group's accumulators,
// creating the group on first sight. It is the single row-at-a-time
// entry point both Execute and ExecuteStreaming drive from
// CompiledPattern.ExecuteStreaming, so neither ever holds the full
// pattern result set in memory — only one accumulator set per
// distinct group-by key seen so far.
func (a *Aggregate) observe(st *aggState, row Row) error {
	key := make(Row, len(a.groupBy))
	keyStr := ""
	for _, k := range a.groupBy {
		key[k] = row[k]
		keyStr += k + "=" + valueKeyString(row[k]) + ";"
	}
	g, ok := st.groups[keyStr]
	if !ok {
		g = &aggGroup{key: key, accs: make(map[string]*accumulator, len(a.specs))}
		for _, spec := range a.specs {
			g.accs[spec.Name] = newAccumulator()
		}
		st.groups[keyStr] = g
		st.order = append(st.order, keyStr)
	}
	for _, spec := range a.specs {
		var v types.Value
		var err error
		if spec.Arg != nil {
			v, err = spec.Arg.Eval(row)
			if err != nil {
				return err
			}
		}
		if err := g.accs[spec.Name].observe(spec.Func, v); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregate) row(st *aggState, keyStr string) Row {
	g := st.groups[keyStr]
	result := make(Row, len(g.key)+len(a.specs))
	for gk, gv := range g.key {
		result[gk] = gv
	}
	for _, spec := range a.specs {
		result[spec.Name] = g.accs[spec.Name].result(spec.Func)
	}
	return result
}

func (a *Aggregate) less(x, y Row) bool {
	for _, col := range a.orderBy {
		lt, ok := x[col].Less(y[col])
		if !ok {
			continue
		}
		if lt {
			return true
		}
		if !x[col].Equal(y[col]) {
			return false
		}
	}
	return false
}

// Execute streams the pattern row by row, folding each into its
// group's accumulators as it arrives rather than collecting the
// pattern's full result set first, and returns one row per group
// once every row has been observed.
func (a *Aggregate) Execute(ctx context.Context) ([]Row, error) {
	st := newAggState()
	err := a.pattern.ExecuteStreaming(ctx, func(row Row) (bool, error) {
		return true, a.observe(st, row)
	})
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(st.order))
	for _, k := range st.order {
		out = append(out, a.row(st, k))
	}

	if len(a.orderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool { return a.less(out[i], out[j]) })
	}
	if a.limit > 0 && len(out) > a.limit {
		out = out[:a.limit]
	}
	return out, nil
}

// topKGroupFactor bounds how many live groups ExecuteStreaming keeps
// relative to Limit before it starts evicting the worst-ranked one.
const topKGroupFactor = 4

// ExecuteStreaming is Execute's bounded-memory counterpart for a
// GroupBy key whose cardinality is expected to dwarf the requested
// top-K: once the number of live groups exceeds Limit*topKGroupFactor,
// the worst-ranked group under OrderBy is dropped, so memory tracks
// the requested result size rather than total distinct key count.
// Dropping a group this way can occasionally discard one that would
// have re-entered the top-K after more rows arrived; callers that need
// an exact answer over a key space small enough to hold in memory
// should call Execute instead. Without both OrderBy and a positive
// Limit there is no ordering to evict by, and ExecuteStreaming returns
// exactly what Execute returns.
func (a *Aggregate) ExecuteStreaming(ctx context.Context) ([]Row, error) {
	if len(a.orderBy) == 0 || a.limit <= 0 {
		return a.Execute(ctx)
	}
	groupCap := a.limit * topKGroupFactor

	st := newAggState()
	err := a.pattern.ExecuteStreaming(ctx, func(row Row) (bool, error) {
		if err := a.observe(st, row); err != nil {
			return false, err
		}
		if len(st.order) > groupCap {
			a.evictWorst(st)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(st.order))
	for _, k := range st.order {
		out = append(out, a.row(st, k))
	}
	sort.SliceStable(out, func(i, j int) bool { return a.less(out[i], out[j]) })
	if len(out) > a.limit {
		out = out[:a.limit]
	}
	return out, nil
}

// evictWorst drops the group currently ranked last under OrderBy — a
// linear scan over the live group set, trading eviction speed for not
// needing a heap on top of the group map.
func (a *Aggregate) evictWorst(st *aggState) {
	worstIdx := -1
	var worst Row
	for i, k := range st.order {
		r := a.row(st, k)
		if worst == nil || a.less(worst, r) {
			worst, worstIdx = r, i
		}
	}
	if worstIdx < 0 {
		return
	}
	delete(st.groups, st.order[worstIdx])
	st.order = append(st.order[:worstIdx], st.order[worstIdx+1:]...)
}

// valueKeyString renders a Value as a group-by key component; it need
// only distinguish values, not round-trip them.
func valueKeyString(v types.Value) string {
	switch v.Kind {
	case types.KindNull:
		return "null"
	case types.KindBool:
		if v.Bool {
			return "b:1"
		}
		return "b:0"
	case types.KindInt:
		return "i:" + strconv.FormatInt(v.Int, 10)
	case types.KindFloat:
		return "f:" + strconv.FormatFloat(v.Float, 'g', -1, 64)
	case types.KindString:
		return "s:" + v.Str
	default:
		return "x"
	}
}
