package sencillo

import (
	"os"

	"github.com/AlexMercedCoder/sencillo-go/internal/layout"
	"github.com/AlexMercedCoder/sencillo-go/internal/query"
)

// CollectionNames returns the names of every collection the engine has
// loaded or created so far. In folder/sharded mode this only reflects
// collections touched this run; DiscoverCollections lists the collections
// that exist on disk, loaded or not, and does not change this result.
func (tx *Tx) CollectionNames() []string {
	names := make([]string, 0, len(tx.e.db.Collections))
	for name := range tx.e.db.Collections {
		names = append(names, name)
	}
	return names
}

// DiscoverCollections lists collection names present on disk in
// folder/sharded mode without loading them into memory. It returns the
// in-memory names unchanged in single-file mode, since there is nothing
// else to discover.
func (tx *Tx) DiscoverCollections() ([]string, error) {
	e := tx.e
	if e.mode == modeSingleFile {
		return tx.CollectionNames(), nil
	}
	if e.mode == modeSharded {
		entries, err := os.ReadDir(e.layout.Root)
		if err != nil && !os.IsNotExist(err) {
			return nil, ioError("listing collections", err)
		}
		var names []string
		for _, ent := range entries {
			if ent.IsDir() && layout.Exists(e.layout.MetaFilePath(ent.Name())) {
				names = append(names, ent.Name())
			}
		}
		return names, nil
	}
	names, err := e.layout.ListCollections()
	if err != nil {
		return nil, ioError("listing collections", err)
	}
	return names, nil
}

// Stats returns a clone of collection's bookkeeping counters.
func (tx *Tx) Stats(collection string) (Stats, error) {
	c, err := tx.e.ensureCollection(collection)
	if err != nil {
		return Stats{}, err
	}
	return c.Stats, nil
}

// PartitionNames returns every partition name collection currently has,
// including partitions emptied by Update or Destroy; partitions removed by
// DropIndex or replaced by RewriteCollection are not listed.
func (tx *Tx) PartitionNames(collection string) ([]string, error) {
	c, err := tx.e.ensureCollection(collection)
	if err != nil {
		return nil, err
	}
	return tx.e.allPartitionNames(collection, c)
}

// IndexedFields returns the field names collection currently has a
// secondary index on.
func (tx *Tx) IndexedFields(collection string) ([]string, error) {
	c, err := tx.e.ensureCollection(collection)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(c.Indexes))
	for field := range c.Indexes {
		out = append(out, field)
	}
	return out, nil
}

// Explain compiles filter and returns its operator tree without running
// it against any document, for callers that want to confirm what a
// filter will match (or whether it will hit a secondary index) before
// spending a transaction on it.
func Explain(filter Document) (query.Node, error) {
	_, node, err := query.Compile(filterMap(filter), nil)
	if err != nil {
		return query.Node{}, validationError("compiling filter: %v", err)
	}
	return node, nil
}

// ExplainIndexUsable reports whether filter reduces to a single equality
// clause on field, the shape FindMany's secondary-index optimizer can use
// for a point lookup instead of a full partition scan.
func ExplainIndexUsable(filter Document, field string) bool {
	eq := query.SimpleEqClauses(filterMap(filter))
	if len(eq) != 1 {
		return false
	}
	_, ok := eq[field]
	return ok
}
