package sencillo

import (
	"github.com/AlexMercedCoder/sencillo-go/internal/layout"
)

// EnsureIndex creates the SecondaryIndex skeleton for field on
// collection if absent, then backfills it with every live document's
// _id under its field's stringified value (skipping documents where
// field is absent). Calling it again for an already-indexed field is a
// no-op — the live index stays consistent on every subsequent write, so
// there is nothing left to re-backfill.
func (tx *Tx) EnsureIndex(collection, field string) error {
	if collection == "" {
		return validationError("collection name required")
	}
	if field == "" {
		return validationError("field required")
	}

	e := tx.e
	c, err := e.ensureCollection(collection)
	if err != nil {
		return err
	}
	if _, ok := c.Indexes[field]; ok {
		return nil
	}

	names, err := e.allPartitionNames(collection, c)
	if err != nil {
		return err
	}
	fi := fieldIndex{}
	for _, name := range names {
		p, err := e.ensurePartition(collection, c, name)
		if err != nil {
			return err
		}
		for _, d := range p.Docs {
			id, ok := docID(d)
			if !ok {
				continue
			}
			v, ok := d[field]
			if !ok {
				continue
			}
			fi.add(stringify(v), id)
		}
	}
	c.Indexes[field] = fi
	e.markDirty(e.unitKey(collection, ""))
	tx.recordPending("ensureIndex", map[string]interface{}{
		"collection": collection,
		"field":      field,
	})
	return nil
}

// DropSecondaryIndex removes the SecondaryIndex on field from
// collection, if one exists. Dropping a field that was never indexed is
// not an error. There is no dropSecondaryIndex entry in the AOF's op
// vocabulary — it is closed to exactly eight names — so this call is
// not AOF-durable on its own: under AOF, the drop only survives a
// restart if a Compact runs before the process exits.
func (tx *Tx) DropSecondaryIndex(collection, field string) error {
	if collection == "" {
		return validationError("collection name required")
	}
	e := tx.e
	c, err := e.ensureCollection(collection)
	if err != nil {
		return err
	}
	delete(c.Indexes, field)
	e.markDirty(e.unitKey(collection, ""))
	return nil
}

// DropIndex removes partition from collection along with every document
// it holds — the source calls a partition an "index", so this is the
// operation the spec names dropIndex. It does not remove collection
// itself, even if partition was its last remaining one: a collection
// with zero partitions is a valid, if empty, shell.
func (tx *Tx) DropIndex(collection, partition string) error {
	if collection == "" {
		return validationError("collection name required")
	}
	if partition == "" {
		return validationError("partition required")
	}
	e := tx.e
	c, err := e.lookupCollection(collection)
	if err != nil {
		return err
	}
	names, err := e.allPartitionNames(collection, c)
	if err != nil {
		return err
	}
	if !containsString(names, partition) {
		return indexNotFoundError(collection, partition)
	}

	p, err := e.ensurePartition(collection, c, partition)
	if err != nil {
		return err
	}
	for _, d := range p.Docs {
		if id, ok := docID(d); ok {
			c.Indexes.removeDoc(d, id)
			delete(c.IDMap, id)
			c.Stats.Total--
		}
	}
	delete(c.Partitions, partition)

	switch e.mode {
	case modeSharded:
		if err := layout.DeleteShardFile(e.layout.ShardFilePath(collection, partition)); err != nil {
			return ioError("deleting shard file", err)
		}
	}

	key := e.unitKey(collection, partition)
	delete(e.dirty, key)
	if e.lru != nil {
		e.lru.Remove(key)
	}
	e.markDirty(e.unitKey(collection, ""))
	tx.recordPending("dropIndex", map[string]interface{}{
		"collection": collection,
		"partition":  partition,
	})
	return nil
}

func containsString(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}

// DropCollection removes collection entirely: its documents, indexes,
// stats, and on-disk representation (a file in folder mode, a directory
// in sharded mode).
func (tx *Tx) DropCollection(collection string) error {
	if collection == "" {
		return validationError("collection name required")
	}
	e := tx.e

	switch e.mode {
	case modeFolder:
		if err := layout.DeleteCollectionFile(e.layout.CollectionFilePath(collection)); err != nil {
			return ioError("deleting collection file", err)
		}
	case modeSharded:
		if err := layout.DeleteCollectionDir(e.layout.CollectionDirPath(collection)); err != nil {
			return ioError("deleting collection directory", err)
		}
	}

	delete(e.db.Collections, collection)
	key := residencyKey(collection, "")
	delete(e.dirty, key)
	if e.lru != nil {
		e.lru.Remove(key)
	}
	tx.recordPending("dropCollection", map[string]interface{}{"collection": collection})
	return nil
}

// RewriteCollection re-derives every live document's partition placement
// under index and reassigns fresh sequential _ids in 1..N, in ascending
// original-_id order — the spec's rewriteCollection, a way to change a
// collection's partitioning scheme in place. Stable document identity is
// not preserved across the rewrite: Stats.Inserted resets to the
// surviving document count, so a document's old _id has no bearing on
// its new one.
func (tx *Tx) RewriteCollection(collection string, index Index) error {
	if collection == "" {
		return validationError("collection name required")
	}
	if index == nil {
		return validationError("index required")
	}

	docs, err := tx.FindMany(collection, Document{}, FindOptions{})
	if err != nil {
		return err
	}

	e := tx.e
	c, err := e.lookupCollection(collection)
	if err != nil {
		return err
	}
	indexFields := make([]string, 0, len(c.Indexes))
	for field := range c.Indexes {
		indexFields = append(indexFields, field)
	}

	fresh := newCollection()
	for _, field := range indexFields {
		fresh.Indexes[field] = fieldIndex{}
	}

	items := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		bare := d.withoutID()
		partition := index.partitionFor(bare)
		if partition == "" {
			return validationError("index resolved to an empty partition name")
		}
		p, ok := fresh.Partitions[partition]
		if !ok {
			p = &Partition{Name: partition}
			fresh.Partitions[partition] = p
		}
		doCreate(fresh, p, partition, bare)
		items = append(items, map[string]interface{}{
			"partition": partition,
			"document":  map[string]interface{}(bare),
		})
	}

	e.db.Collections[collection] = fresh
	for name := range fresh.Partitions {
		e.markDirty(e.unitKey(collection, name))
	}
	e.markDirty(e.unitKey(collection, ""))
	tx.recordPending("rewriteCollection", map[string]interface{}{
		"collection": collection,
		"items":      items,
	})
	return nil
}
