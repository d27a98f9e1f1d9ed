package nervusdb

import (
	"context"
	"fmt"

	"github.com/nervusdb/nervusdb/pkg/cypher"
	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/propstore"
	"github.com/nervusdb/nervusdb/pkg/query"
	"github.com/nervusdb/nervusdb/pkg/types"
)

// Find starts a streaming plan over criteria, anchoring chained
// .Follow/.FollowReverse steps on the endpoint anchor names.
func (db *DB) Find(criteria types.Criteria, anchor types.Anchor) *query.Builder {
	return db.engine.Find(criteria, anchor)
}

// FindByNodeProperty starts a plan from the node property inverted
// index.
func (db *DB) FindByNodeProperty(key string, op propstore.Op, values ...types.Value) *query.Builder {
	return db.engine.FindByNodeProperty(key, op, values...)
}

// FindByEdgeProperty starts a plan from the edge property inverted
// index.
func (db *DB) FindByEdgeProperty(key string, op propstore.Op, values ...types.Value) *query.Builder {
	return db.engine.FindByEdgeProperty(key, op, values...)
}

// FindByLabel starts a plan from the label inverted index.
func (db *DB) FindByLabel(mode types.LabelMatchMode, labels ...string) *query.Builder {
	return db.engine.FindByLabel(mode, labels...)
}

// Pattern starts a multi-node/multi-edge pattern builder, the
// programmatic equivalent of a MATCH clause.
func (db *DB) Pattern() *query.PatternBuilder {
	return db.engine.NewPattern()
}

// Aggregate starts a streaming group-by over a compiled pattern's rows.
func (db *DB) Aggregate(pattern *query.CompiledPattern) *query.Aggregate {
	return db.engine.NewAggregate(pattern)
}

// ShortestPath finds an unweighted shortest path, dispatching to a
// single-sided or bidirectional BFS depending on opts.Bidirectional —
// the two named entries in the public API surface
// (shortestPath/shortestPathBidirectional) are one underlying search.
func (db *DB) ShortestPath(src, dst types.AtomID, opts query.PathOptions) ([]types.EncodedTriple, error) {
	return db.engine.ShortestPath(src, dst, opts)
}

// ShortestPathBidirectional is ShortestPath with opts.Bidirectional
// forced true, meeting in the middle from both endpoints.
func (db *DB) ShortestPathBidirectional(src, dst types.AtomID, opts query.PathOptions) ([]types.EncodedTriple, error) {
	opts.Bidirectional = true
	return db.engine.ShortestPath(src, dst, opts)
}

// ShortestPathWeighted runs Dijkstra (or A*, when opts.Heuristic is set)
// over edge weights read from opts.WeightKey.
func (db *DB) ShortestPathWeighted(src, dst types.AtomID, opts query.PathOptions) ([]types.EncodedTriple, float64, error) {
	return db.engine.WeightedShortestPath(src, dst, opts)
}

// cypherGate refuses every Cypher entry point unless opts.Experimental.Cypher
// was set at Open, the same opt-in gate spec §6 names for every
// experimental front end.
func (db *DB) cypherGate() error {
	if !db.opts.Experimental.Cypher {
		return fmt.Errorf("%w: cypher is an experimental front end; open with Experimental.Cypher to enable it", nverrors.ErrInvalidInput)
	}
	return nil
}

// ValidateCypher parses and compiles src without executing it, surfacing
// a syntax or resolution error the caller can show before running
// anything.
func (db *DB) ValidateCypher(src string) error {
	if err := db.cypherGate(); err != nil {
		return err
	}
	_, err := db.compileCypher(src)
	return err
}

func (db *DB) compileCypher(src string) (*cypher.Compiled, error) {
	q, err := cypher.Parse(src)
	if err != nil {
		return nil, err
	}
	return cypher.Compile(q, db.engine, db)
}

// CypherRead runs a read-only Cypher statement (MATCH/RETURN, no write
// clauses) and returns its projected rows. It refuses a statement that
// also carries a write clause (CREATE/MERGE/SET/REMOVE/DELETE) rather
// than silently executing only half of it.
func (db *DB) CypherRead(ctx context.Context, src string) ([]query.Row, error) {
	if err := db.cypherGate(); err != nil {
		return nil, err
	}
	compiled, err := db.compileCypher(src)
	if err != nil {
		return nil, err
	}
	if compiled.Write != nil {
		return nil, fmt.Errorf("%w: cypherRead given a statement with a write clause; use cypherQuery instead", nverrors.ErrInvalidInput)
	}
	if compiled.Read == nil {
		return nil, nil
	}
	return compiled.Read.Run(ctx)
}

// CypherQuery runs a Cypher statement that may read, write, or both,
// applying any write clause inside its own batch once per row a
// preceding MATCH produced (or once against an empty row for a bare
// CREATE/MERGE).
func (db *DB) CypherQuery(ctx context.Context, src string) ([]query.Row, error) {
	if err := db.cypherGate(); err != nil {
		return nil, err
	}
	compiled, err := db.compileCypher(src)
	if err != nil {
		return nil, err
	}

	var rows []query.Row
	if compiled.Read != nil {
		rows, err = compiled.Read.Run(ctx)
		if err != nil {
			return nil, err
		}
	}
	if compiled.Write != nil {
		if err := compiled.Write.RunAll(db, rows); err != nil {
			return nil, err
		}
	}
	return rows, nil
}
