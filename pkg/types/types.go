package types

import "fmt"

// AtomID is a stable, positive, gap-free integer identifier assigned to
// an atom the first time it is interned. Zero means "absent" and is
// never assigned to a real atom.
type AtomID uint64

// NoAtom is the reserved "absent" identifier.
const NoAtom AtomID = 0

// Valid reports whether id refers to a real atom.
func (id AtomID) Valid() bool { return id != NoAtom }

// EncodedTriple is a (subject, predicate, object) tuple of AtomIDs. It
// also serves as the key identifying an edge's attached property map
// ("triple key" in the spec).
type EncodedTriple struct {
	S, P, O AtomID
}

func (t EncodedTriple) String() string {
	return fmt.Sprintf("(%d,%d,%d)", t.S, t.P, t.O)
}

// Ordering names one of the six sort orders a paged triple index can be
// built in. The component first in the name is the primary key.
type Ordering uint8

const (
	SPO Ordering = iota
	SOP
	PSO
	POS
	OSP
	OPS
)

var orderingNames = [...]string{"SPO", "SOP", "PSO", "POS", "OSP", "OPS"}

func (o Ordering) String() string {
	if int(o) < len(orderingNames) {
		return orderingNames[o]
	}
	return "UNKNOWN"
}

// AllOrderings enumerates the six index orders in canonical order.
func AllOrderings() []Ordering { return []Ordering{SPO, SOP, PSO, POS, OSP, OPS} }

// Components returns the triple's three AtomIDs ordered the way this
// Ordering sorts them, primary key first.
func (o Ordering) Components(t EncodedTriple) [3]AtomID {
	switch o {
	case SPO:
		return [3]AtomID{t.S, t.P, t.O}
	case SOP:
		return [3]AtomID{t.S, t.O, t.P}
	case PSO:
		return [3]AtomID{t.P, t.S, t.O}
	case POS:
		return [3]AtomID{t.P, t.O, t.S}
	case OSP:
		return [3]AtomID{t.O, t.S, t.P}
	case OPS:
		return [3]AtomID{t.O, t.P, t.S}
	default:
		return [3]AtomID{t.S, t.P, t.O}
	}
}

// FromComponents is the inverse of Components: it reconstitutes the
// canonical (S,P,O) triple from this ordering's sorted tuple.
func (o Ordering) FromComponents(c [3]AtomID) EncodedTriple {
	switch o {
	case SPO:
		return EncodedTriple{c[0], c[1], c[2]}
	case SOP:
		return EncodedTriple{c[0], c[2], c[1]}
	case PSO:
		return EncodedTriple{c[1], c[0], c[2]}
	case POS:
		return EncodedTriple{c[2], c[0], c[1]}
	case OSP:
		return EncodedTriple{c[1], c[2], c[0]}
	case OPS:
		return EncodedTriple{c[2], c[1], c[0]}
	default:
		return EncodedTriple{c[0], c[1], c[2]}
	}
}

// Less orders two triples by this ordering's component sequence.
func (o Ordering) Less(a, b EncodedTriple) bool {
	ca, cb := o.Components(a), o.Components(b)
	for i := 0; i < 3; i++ {
		if ca[i] != cb[i] {
			return ca[i] < cb[i]
		}
	}
	return false
}

// Criteria names any subset of {subject, predicate, object} bound to
// concrete AtomIDs; nil fields are unbound. BestOrdering implements the
// fixed planner rule from the spec's ordering-choice table.
type Criteria struct {
	Subject   *AtomID
	Predicate *AtomID
	Object    *AtomID
}

// BestOrdering selects the index order to scan for these criteria,
// following the spec's fixed table:
//
//	s+p, s only, s+p+o -> SPO
//	s+o                -> SOP
//	p only             -> PSO
//	p+o                -> POS
//	o only             -> OSP
//	none               -> SPO (full scan)
func (c Criteria) BestOrdering() Ordering {
	s, p, o := c.Subject != nil, c.Predicate != nil, c.Object != nil
	switch {
	case s && p:
		return SPO
	case s && o:
		return SOP
	case s:
		return SPO
	case p && o:
		return POS
	case p:
		return PSO
	case o:
		return OSP
	default:
		return SPO
	}
}

// Prefix returns the leading components of t, in this ordering, that
// Criteria binds — used to seek the page directory.
func (c Criteria) Prefix(o Ordering) []AtomID {
	var full [3]AtomID
	var bound [3]bool
	if c.Subject != nil {
		full[0], bound[0] = *c.Subject, true
	}
	if c.Predicate != nil {
		full[1], bound[1] = *c.Predicate, true
	}
	if c.Object != nil {
		full[2], bound[2] = *c.Object, true
	}
	// Re-derive which of (s,p,o) occupy this ordering's leading slots.
	tmp := EncodedTriple{S: full[0], P: full[1], O: full[2]}
	comps := o.Components(tmp)
	boundComps := o.Components(EncodedTriple{
		S: boolToID(bound[0]),
		P: boolToID(bound[1]),
		O: boolToID(bound[2]),
	})
	var prefix []AtomID
	for i := 0; i < 3; i++ {
		if boundComps[i] == 0 {
			break
		}
		prefix = append(prefix, comps[i])
	}
	return prefix
}

func boolToID(b bool) AtomID {
	if b {
		return 1
	}
	return 0
}

// Matches reports whether t satisfies every bound component of c.
func (c Criteria) Matches(t EncodedTriple) bool {
	if c.Subject != nil && *c.Subject != t.S {
		return false
	}
	if c.Predicate != nil && *c.Predicate != t.P {
		return false
	}
	if c.Object != nil && *c.Object != t.O {
		return false
	}
	return true
}

// Anchor names which endpoint of a yielded triple becomes the frontier
// for the next chained .follow()/.followReverse() step.
type Anchor uint8

const (
	AnchorSubject Anchor = iota
	AnchorObject
	AnchorBoth
)

// ValueKind discriminates the tagged Value variant.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
)

// Value is the self-describing, tagged variant used for every property
// value. Never rely on Go's dynamic typing (interface{}) to decide what
// a stored value is — always dispatch on Kind.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
	List  []Value
	Map   map[string]Value
}

// Null, NewBool, ... are constructors that keep call sites from having
// to spell out the struct literal and Kind tag together.
func Null() Value                { return Value{Kind: KindNull} }
func NewBool(b bool) Value        { return Value{Kind: KindBool, Bool: b} }
func NewInt(i int64) Value        { return Value{Kind: KindInt, Int: i} }
func NewFloat(f float64) Value    { return Value{Kind: KindFloat, Float: f} }
func NewString(s string) Value    { return Value{Kind: KindString, Str: s} }
func NewBytes(b []byte) Value     { return Value{Kind: KindBytes, Bytes: b} }
func NewList(l []Value) Value     { return Value{Kind: KindList, List: l} }
func NewMap(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// IsNull reports whether v is the Null variant.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// AsFloat64 coerces numeric kinds (Int, Float) to float64 for use in
// weighted-path and range-scan comparisons. ok is false for any other
// kind, including Null.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// Equal performs a deep, kind-aware comparison.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.Str == o.Str
	case KindBytes:
		if len(v.Bytes) != len(o.Bytes) {
			return false
		}
		for i := range v.Bytes {
			if v.Bytes[i] != o.Bytes[i] {
				return false
			}
		}
		return true
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, mv := range v.Map {
			ov, ok := o.Map[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Less provides a total order over primitive-typed values of the same
// Kind, used by the property inverted index's ordered range scans.
// Only Int, Float, and String are orderable; other kinds report ok=false.
func (v Value) Less(o Value) (less bool, ok bool) {
	if v.Kind != o.Kind {
		return false, false
	}
	switch v.Kind {
	case KindInt:
		return v.Int < o.Int, true
	case KindFloat:
		return v.Float < o.Float, true
	case KindString:
		return v.Str < o.Str, true
	default:
		return false, false
	}
}

// PropertyMap is a property key to Value mapping attached to a node (by
// AtomID) or an edge (by EncodedTriple, the "triple key").
type PropertyMap map[string]Value

// Clone returns a shallow copy safe to mutate independently.
func (m PropertyMap) Clone() PropertyMap {
	if m == nil {
		return nil
	}
	out := make(PropertyMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LabelSet is an unordered set of short string labels attached to a node.
type LabelSet map[string]struct{}

// NewLabelSet builds a LabelSet from a slice, deduplicating.
func NewLabelSet(labels ...string) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Has reports whether label is a member.
func (s LabelSet) Has(label string) bool {
	_, ok := s[label]
	return ok
}

// Slice returns the labels as an unordered slice.
func (s LabelSet) Slice() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	return out
}

// LabelMatchMode selects how multiple labels combine in a label-index lookup.
type LabelMatchMode uint8

const (
	LabelMatchAny LabelMatchMode = iota // OR
	LabelMatchAll                       // AND
)
