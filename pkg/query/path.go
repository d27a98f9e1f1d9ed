package query

import (
	"container/heap"
	"errors"

	"github.com/nervusdb/nervusdb/pkg/types"
)

// ErrNoPath is returned when no path exists between the requested
// endpoints within the configured hop limit.
var ErrNoPath = errors.New("query: no path found")

// PathOptions configures a path search. Predicate, when non-nil,
// restricts which predicate edges the search may traverse; nil allows
// any predicate. Forward follows subject -> object edges and Reverse
// object -> subject; setting both searches both directions, and setting
// neither means Forward.
type PathOptions struct {
	Predicate  *types.AtomID
	MaxHops    int
	Forward    bool
	Reverse    bool
	WeightKey  string // edge property read as the Dijkstra/A* weight; default "weight"
	Heuristic  func(node types.AtomID) float64
	Bidirectional bool
}

func (o *PathOptions) setDefaults() {
	if o.MaxHops <= 0 {
		o.MaxHops = 64
	}
	if o.WeightKey == "" {
		o.WeightKey = "weight"
	}
	if !o.Forward && !o.Reverse {
		o.Forward = true
	}
}

func (e *Engine) neighbors(id types.AtomID, predicate *types.AtomID, forward bool) ([]types.EncodedTriple, error) {
	var criteria types.Criteria
	if forward {
		criteria = types.Criteria{Subject: &id, Predicate: predicate}
	} else {
		criteria = types.Criteria{Object: &id, Predicate: predicate}
	}
	it, err := e.Triples.Scan(criteria)
	if err != nil {
		return nil, err
	}
	defer it.Cancel()
	var out []types.EncodedTriple
	for {
		t, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

// ShortestPath finds an unweighted shortest path from src to dst using
// single-sided BFS (bidirectional BFS when opts.Bidirectional is set),
// hop-limited and predicate-restricted, returning the
// edge sequence traversed.
func (e *Engine) ShortestPath(src, dst types.AtomID, opts PathOptions) ([]types.EncodedTriple, error) {
	opts.setDefaults()
	if opts.Bidirectional {
		return e.bidirectionalBFS(src, dst, opts)
	}
	return e.bfs(src, dst, opts)
}

type bfsNode struct {
	id   types.AtomID
	prev types.EncodedTriple
	from types.AtomID
	has  bool
}

func (e *Engine) bfs(src, dst types.AtomID, opts PathOptions) ([]types.EncodedTriple, error) {
	if src == dst {
		return nil, nil
	}
	visited := map[types.AtomID]bfsNode{src: {id: src}}
	queue := []types.AtomID{src}
	for hop := 0; len(queue) > 0 && hop < opts.MaxHops; hop++ {
		var next []types.AtomID
		for _, cur := range queue {
			edges, err := e.expandDirection(cur, opts)
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				nbr := neighborOf(edge, cur)
				if _, ok := visited[nbr]; ok {
					continue
				}
				visited[nbr] = bfsNode{id: nbr, prev: edge, from: cur, has: true}
				if nbr == dst {
					return reconstructBFS(visited, dst), nil
				}
				next = append(next, nbr)
			}
		}
		queue = next
	}
	return nil, ErrNoPath
}

// expandDirection returns edges adjacent to cur honoring both Forward
// and Reverse when both are requested (undirected traversal).
func (e *Engine) expandDirection(cur types.AtomID, opts PathOptions) ([]types.EncodedTriple, error) {
	var out []types.EncodedTriple
	if opts.Forward {
		edges, err := e.neighbors(cur, opts.Predicate, true)
		if err != nil {
			return nil, err
		}
		out = append(out, edges...)
	}
	if opts.Reverse {
		edges, err := e.neighbors(cur, opts.Predicate, false)
		if err != nil {
			return nil, err
		}
		out = append(out, edges...)
	}
	return out, nil
}

func neighborOf(t types.EncodedTriple, from types.AtomID) types.AtomID {
	if t.S == from {
		return t.O
	}
	return t.S
}

func reconstructBFS(visited map[types.AtomID]bfsNode, dst types.AtomID) []types.EncodedTriple {
	var edges []types.EncodedTriple
	cur := dst
	for {
		n := visited[cur]
		if !n.has {
			break
		}
		edges = append([]types.EncodedTriple{n.prev}, edges...)
		cur = n.from
	}
	return edges
}

// bidirectionalBFS alternates expansion from src and dst, meeting in
// the middle; it halves the effective branching depth versus a
// single-sided search for long paths.
func (e *Engine) bidirectionalBFS(src, dst types.AtomID, opts PathOptions) ([]types.EncodedTriple, error) {
	if src == dst {
		return nil, nil
	}
	fwdVisited := map[types.AtomID]bfsNode{src: {id: src}}
	bwdVisited := map[types.AtomID]bfsNode{dst: {id: dst}}
	fwdQueue := []types.AtomID{src}
	bwdQueue := []types.AtomID{dst}

	revOpts := opts
	revOpts.Forward, revOpts.Reverse = opts.Reverse, opts.Forward
	if !opts.Reverse && !opts.Forward {
		revOpts.Forward, revOpts.Reverse = true, true
	}

	for hop := 0; hop < opts.MaxHops; hop++ {
		if len(fwdQueue) == 0 || len(bwdQueue) == 0 {
			break
		}
		if len(fwdQueue) <= len(bwdQueue) {
			meet, err := expandFrontier(e, fwdQueue, fwdVisited, bwdVisited, opts, false)
			if err != nil {
				return nil, err
			}
			if meet != nil {
				return stitchBidirectional(fwdVisited, bwdVisited, *meet), nil
			}
			fwdQueue = newFrontierIDs(fwdVisited, fwdQueue, opts, e, false)
		} else {
			meet, err := expandFrontier(e, bwdQueue, bwdVisited, fwdVisited, revOpts, true)
			if err != nil {
				return nil, err
			}
			if meet != nil {
				return stitchBidirectional(fwdVisited, bwdVisited, *meet), nil
			}
			bwdQueue = newFrontierIDs(bwdVisited, bwdQueue, revOpts, e, true)
		}
	}
	return nil, ErrNoPath
}

func expandFrontier(e *Engine, queue []types.AtomID, visited, other map[types.AtomID]bfsNode, opts PathOptions, reversed bool) (*types.AtomID, error) {
	for _, cur := range queue {
		edges, err := e.expandDirection(cur, opts)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			nbr := neighborOf(edge, cur)
			if _, ok := visited[nbr]; ok {
				continue
			}
			visited[nbr] = bfsNode{id: nbr, prev: edge, from: cur, has: true}
			if _, ok := other[nbr]; ok {
				meet := nbr
				return &meet, nil
			}
		}
	}
	return nil, nil
}

func newFrontierIDs(visited map[types.AtomID]bfsNode, prevQueue []types.AtomID, opts PathOptions, e *Engine, reversed bool) []types.AtomID {
	seen := make(map[types.AtomID]struct{}, len(prevQueue))
	for _, id := range prevQueue {
		seen[id] = struct{}{}
	}
	var next []types.AtomID
	for id, n := range visited {
		if n.has {
			if _, wasPrev := seen[n.from]; wasPrev {
				next = append(next, id)
			}
		}
	}
	return next
}

func stitchBidirectional(fwd, bwd map[types.AtomID]bfsNode, meet types.AtomID) []types.EncodedTriple {
	var forwardHalf []types.EncodedTriple
	cur := meet
	for {
		n := fwd[cur]
		if !n.has {
			break
		}
		forwardHalf = append([]types.EncodedTriple{n.prev}, forwardHalf...)
		cur = n.from
	}
	var backwardHalf []types.EncodedTriple
	cur = meet
	for {
		n := bwd[cur]
		if !n.has {
			break
		}
		backwardHalf = append(backwardHalf, n.prev)
		cur = n.from
	}
	return append(forwardHalf, backwardHalf...)
}

// dijkstraItem is a priority-queue entry: node id with its best known
// distance, plus (for A*) the heuristic-augmented priority.
type dijkstraItem struct {
	id       types.AtomID
	dist     float64
	priority float64
	edge     types.EncodedTriple
	from     types.AtomID
	has      bool
	index    int
}

type dijkstraQueue []*dijkstraItem

func (q dijkstraQueue) Len() int            { return len(q) }
func (q dijkstraQueue) Less(i, j int) bool  { return q[i].priority < q[j].priority }
func (q dijkstraQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index, q[j].index = i, j }
func (q *dijkstraQueue) Push(x interface{}) { it := x.(*dijkstraItem); it.index = len(*q); *q = append(*q, it) }
func (q *dijkstraQueue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// WeightedShortestPath runs Dijkstra's algorithm, reading each edge's
// weight from opts.WeightKey (default "weight"; missing = 1), rejecting
// negative weights. If opts.Heuristic is non-nil, it runs A* instead;
// a zero heuristic on every node degenerates to plain Dijkstra.
func (e *Engine) WeightedShortestPath(src, dst types.AtomID, opts PathOptions) ([]types.EncodedTriple, float64, error) {
	opts.setDefaults()
	if src == dst {
		return nil, 0, nil
	}

	dist := map[types.AtomID]*dijkstraItem{src: {id: src, dist: 0}}
	pq := &dijkstraQueue{dist[src]}
	heap.Init(pq)
	visited := make(map[types.AtomID]struct{})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*dijkstraItem)
		if _, done := visited[cur.id]; done {
			continue
		}
		visited[cur.id] = struct{}{}
		if cur.id == dst {
			return reconstructDijkstra(dist, dst), cur.dist, nil
		}

		edges, err := e.expandDirection(cur.id, opts)
		if err != nil {
			return nil, 0, err
		}
		for _, edge := range edges {
			nbr := neighborOf(edge, cur.id)
			if _, done := visited[nbr]; done {
				continue
			}
			w, err := e.edgeWeight(edge, opts.WeightKey)
			if err != nil {
				return nil, 0, err
			}
			if w < 0 {
				return nil, 0, NewRuntimeType("weighted_path", "negative edge weight not supported")
			}
			newDist := cur.dist + w
			existing, seen := dist[nbr]
			if seen && existing.dist <= newDist {
				continue
			}
			h := 0.0
			if opts.Heuristic != nil {
				h = opts.Heuristic(nbr)
			}
			item := &dijkstraItem{id: nbr, dist: newDist, priority: newDist + h, edge: edge, from: cur.id, has: true}
			dist[nbr] = item
			heap.Push(pq, item)
		}
	}
	return nil, 0, ErrNoPath
}

func (e *Engine) edgeWeight(t types.EncodedTriple, key string) (float64, error) {
	m, ok := e.EdgeProps.Get(t)
	if !ok {
		return 1, nil
	}
	v, ok := m[key]
	if !ok {
		return 1, nil
	}
	f, ok := v.AsFloat64()
	if !ok {
		return 0, NewRuntimeType("weighted_path", "edge weight property is not numeric")
	}
	return f, nil
}

func reconstructDijkstra(dist map[types.AtomID]*dijkstraItem, dst types.AtomID) []types.EncodedTriple {
	var edges []types.EncodedTriple
	cur := dst
	for {
		n := dist[cur]
		if n == nil || !n.has {
			break
		}
		edges = append([]types.EncodedTriple{n.edge}, edges...)
		cur = n.from
	}
	return edges
}
