package sencillo

// unitKey names the resident unit that owns (collection, partition) under
// the engine's configured mode, for dirty-tracking and LRU purposes: a
// whole collection in folder mode, a single shard in sharded mode.
func (e *Engine) unitKey(collection, partition string) string {
	if e.mode == modeSharded {
		return residencyKey(collection, partition)
	}
	return residencyKey(collection, "")
}

// recordPending buffers a mutating op's normalized instructions for the
// AOF, if one is configured. In non-AOF modes this is a no-op cost-wise
// (the buffer is discarded, never written) but kept unconditional so
// enabling AOF never changes an op's in-memory semantics.
func (tx *Tx) recordPending(op string, instructions map[string]interface{}) {
	tx.e.pending = append(tx.e.pending, pendingOp{op: op, instructions: instructions})
}

// dbEnsureCollection/dbEnsurePartition mirror Engine.ensureCollection and
// Engine.ensurePartition but operate on a bare *Database with no disk
// access, for use against the single in-memory document AOF replay runs
// against during New.
func dbEnsureCollection(db *Database, name string) *Collection {
	c, ok := db.Collections[name]
	if !ok {
		c = newCollection()
		db.Collections[name] = c
	}
	return c
}

func dbEnsurePartition(c *Collection, name string) *Partition {
	p, ok := c.Partitions[name]
	if !ok {
		p = &Partition{Name: name}
		c.Partitions[name] = p
	}
	return p
}

// doCreate assigns the next id from c.Stats, stores doc in p, indexes it,
// and returns the document as stored (with _id set, and any user-supplied
// _id discarded).
func doCreate(c *Collection, p *Partition, partition string, doc Document) Document {
	id := c.Stats.Inserted + 1
	c.Stats.Inserted = id
	c.Stats.Total++
	assigned := doc.withoutID().withID(id)
	c.IDMap[id] = partition
	p.Docs = append(p.Docs, assigned)
	c.Indexes.addDoc(assigned, id)
	return assigned
}

// doUpdate replaces the document named by id inside p with {...data,
// _id}, discarding every field data does not mention, and reports
// whether the document was found. It does not move the document between
// partitions; callers handling a repartitioning update splice it between
// partitions themselves and skip this helper's in-place write.
func doUpdate(c *Collection, p *Partition, id int64, data Document) (oldDoc, newDoc Document, ok bool) {
	idx := p.indexOf(id)
	if idx < 0 {
		return nil, nil, false
	}
	oldDoc = p.Docs[idx].clone()
	newDoc = data.withoutID().withID(id)
	p.Docs[idx] = newDoc
	c.Indexes.updateDoc(oldDoc, newDoc, id)
	return oldDoc, newDoc, true
}

// doDestroy removes the document named by id from p, unindexes it, and
// reports whether it was found.
func doDestroy(c *Collection, p *Partition, id int64) (doc Document, ok bool) {
	idx := p.indexOf(id)
	if idx < 0 {
		return nil, false
	}
	doc = p.removeAt(idx)
	c.Indexes.removeDoc(doc, id)
	delete(c.IDMap, id)
	c.Stats.Total--
	return doc, true
}
