/*
Package labelstore maps nodes to label sets and maintains the
label->node inverted index find_by_label queries resolve through.

Unlike propstore's per-key posting lists, there is exactly one
namespace here (labels), so the index is a flat map[string]set<AtomID>
rather than a keyed Index[K]. AND/OR combination (LabelMatchMode) is
plain set intersection/union over the per-label posting sets.
*/
package labelstore
