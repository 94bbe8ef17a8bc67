package sencillo

import (
	"sort"

	"github.com/AlexMercedCoder/sencillo-go/internal/query"
)

// FindOptions configures Find and FindMany. Partition restricts the scan
// to one named partition instead of every partition in the collection;
// it is ignored by the secondary-index point-lookup path, which already
// knows exactly which partition(s) to visit. Callback is an extra
// predicate ANDed with Filter's own field clauses. Sort overrides
// FindMany's default ascending-_id ordering; Find never sorts, since it
// only ever needs the first match it encounters.
type FindOptions struct {
	Partition string
	Callback  func(Document) bool
	Sort      func(a, b Document) bool
}

// compileFilter wraps query.Compile so callback, a Document predicate,
// can be threaded in as the compiler's extra Predicate without this
// package depending on query's Document alias.
func compileFilter(filter Document, callback func(Document) bool) (query.Predicate, map[string]interface{}, error) {
	raw := filterMap(filter)
	var extra query.Predicate
	if callback != nil {
		extra = func(d query.Document) bool { return callback(Document(d)) }
	}
	pred, _, err := query.Compile(raw, extra)
	if err != nil {
		return nil, nil, validationError("compiling filter: %v", err)
	}
	return pred, raw, nil
}

// filterMap converts filter into the plain map the query package reads,
// turning operator-objects written as Document into map[string]interface{}
// so they compile as operators rather than as literal values.
func filterMap(filter Document) map[string]interface{} {
	raw := make(map[string]interface{}, len(filter))
	for field, clause := range filter {
		if obj, ok := clause.(Document); ok {
			clause = map[string]interface{}(obj)
		}
		raw[field] = clause
	}
	return raw
}

// GetByID returns a clone of the document named by id in collection,
// resolving its partition through the IdMap. Unlike Find, it fails with
// DocumentNotFound when id is absent rather than returning nil.
func (tx *Tx) GetByID(collection string, id int64) (Document, error) {
	e := tx.e
	c, err := e.lookupCollection(collection)
	if err != nil {
		return nil, err
	}
	partition, ok := c.IDMap[id]
	if !ok {
		return nil, documentNotFoundError(collection, id)
	}
	p, err := e.ensurePartition(collection, c, partition)
	if err != nil {
		return nil, err
	}
	idx := p.indexOf(id)
	if idx < 0 {
		return nil, documentNotFoundError(collection, id)
	}
	return p.Docs[idx].clone(), nil
}

// Find returns the first document in collection matching filter, or nil
// if none does; it never fails just because nothing matched. A filter
// that reduces to a single equality clause on a secondary-indexed field
// is served by a point lookup instead of a full scan.
func (tx *Tx) Find(collection string, filter Document, opts FindOptions) (Document, error) {
	e := tx.e
	c, err := e.lookupCollection(collection)
	if err != nil {
		return nil, err
	}
	pred, raw, err := compileFilter(filter, opts.Callback)
	if err != nil {
		return nil, err
	}

	if field, target, ok := singleEqClause(raw, c); ok {
		for _, id := range c.Indexes[field].ids(stringify(target)) {
			d, err := tx.docByID(collection, c, id)
			if err != nil {
				return nil, err
			}
			if d != nil && pred(map[string]interface{}(d)) {
				return d.clone(), nil
			}
		}
		return nil, nil
	}

	names, err := e.scanPartitionNames(collection, c, opts.Partition)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		p, err := e.ensurePartition(collection, c, name)
		if err != nil {
			return nil, err
		}
		for _, d := range p.Docs {
			if pred(map[string]interface{}(d)) {
				return d.clone(), nil
			}
		}
	}
	return nil, nil
}

// FindInPartition is FindMany restricted to one named partition, kept as
// a convenience entry point for callers (sharded-mode ones especially)
// that already know exactly which partition they want and would
// otherwise pay for shard discovery they don't need.
func (tx *Tx) FindInPartition(collection, partition string, filter Document) ([]Document, error) {
	return tx.FindMany(collection, filter, FindOptions{Partition: partition})
}

// FindMany compiles filter and scans collection (or just opts.Partition,
// if set), optimizing a single secondary-indexed equality clause into a
// point lookup; the compiled predicate is still re-applied to every
// candidate as a safety net against stringify collisions. Results are
// ordered by opts.Sort, or by ascending _id if opts.Sort is nil.
func (tx *Tx) FindMany(collection string, filter Document, opts FindOptions) ([]Document, error) {
	e := tx.e
	c, err := e.lookupCollection(collection)
	if err != nil {
		return nil, err
	}
	pred, raw, err := compileFilter(filter, opts.Callback)
	if err != nil {
		return nil, err
	}

	var out []Document
	if field, target, ok := singleEqClause(raw, c); ok {
		out, err = tx.findByIDs(collection, c, c.Indexes[field].ids(stringify(target)), pred)
		if err != nil {
			return nil, err
		}
	} else {
		names, err := e.scanPartitionNames(collection, c, opts.Partition)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			p, err := e.ensurePartition(collection, c, name)
			if err != nil {
				return nil, err
			}
			for _, d := range p.Docs {
				if pred(map[string]interface{}(d)) {
					out = append(out, d.clone())
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if opts.Sort != nil {
			return opts.Sort(out[i], out[j])
		}
		ai, _ := out[i].ID()
		aj, _ := out[j].ID()
		return ai < aj
	})
	return out, nil
}

func (tx *Tx) findByIDs(collection string, c *Collection, ids []int64, pred query.Predicate) ([]Document, error) {
	e := tx.e
	var out []Document
	for _, id := range ids {
		partition, ok := c.IDMap[id]
		if !ok {
			continue
		}
		p, err := e.ensurePartition(collection, c, partition)
		if err != nil {
			return nil, err
		}
		idx := p.indexOf(id)
		if idx < 0 {
			continue
		}
		d := p.Docs[idx]
		if pred(map[string]interface{}(d)) {
			out = append(out, d.clone())
		}
	}
	return out, nil
}

func (tx *Tx) docByID(collection string, c *Collection, id int64) (Document, error) {
	partition, ok := c.IDMap[id]
	if !ok {
		return nil, nil
	}
	p, err := tx.e.ensurePartition(collection, c, partition)
	if err != nil {
		return nil, err
	}
	idx := p.indexOf(id)
	if idx < 0 {
		return nil, nil
	}
	return p.Docs[idx], nil
}

// singleEqClause reports whether raw reduces to exactly one equality
// clause on a field that carries a SecondaryIndex — the one shape the
// point-lookup optimizer can serve without a full scan.
func singleEqClause(raw map[string]interface{}, c *Collection) (field string, target interface{}, ok bool) {
	eq := query.SimpleEqClauses(raw)
	if len(eq) != 1 {
		return "", nil, false
	}
	for f, t := range eq {
		if _, indexed := c.Indexes[f]; indexed {
			return f, t, true
		}
	}
	return "", nil, false
}

// allPartitionNames discovers every partition name a collection currently
// has: the union of IdMap's values (documents currently assigned), any
// already-resident partition, and (in sharded mode) the shard files
// listed on disk, covering an emptied-but-not-yet-dropped partition that
// IdMap no longer mentions. Partitions removed by DropIndex or replaced by
// RewriteCollection are not included.
func (e *Engine) allPartitionNames(collection string, c *Collection) ([]string, error) {
	seen := map[string]struct{}{}
	for _, p := range c.IDMap {
		seen[p] = struct{}{}
	}
	for name := range c.Partitions {
		seen[name] = struct{}{}
	}
	if e.mode == modeSharded {
		shards, err := e.layout.ListShards(collection)
		if err != nil {
			return nil, ioError("listing shards for "+collection, err)
		}
		for _, s := range shards {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// scanPartitionNames returns the partition names a scan should visit:
// just only, if the caller restricted the scan to one partition,
// otherwise every partition allPartitionNames reports.
func (e *Engine) scanPartitionNames(collection string, c *Collection, only string) ([]string, error) {
	if only != "" {
		return []string{only}, nil
	}
	return e.allPartitionNames(collection, c)
}
