package sencillo

// Update replaces the document named by id in collection with
// {...data, _id}, discarding every field data does not mention, and
// returns a clone of the result. The document's current partition is
// resolved from the collection's IdMap, not supplied by the caller.
// index, when non-nil, recomputes the destination partition from the
// replaced document (StaticIndex/DynamicIndex) or names an explicit
// move (MoveTo); a nil index leaves the document in its current
// partition.
func (tx *Tx) Update(collection string, id int64, data Document, index Index) (Document, error) {
	if collection == "" {
		return nil, validationError("collection name required")
	}

	e := tx.e
	c, err := e.lookupCollection(collection)
	if err != nil {
		return nil, err
	}
	oldPartition, ok := c.IDMap[id]
	if !ok {
		return nil, documentNotFoundError(collection, id)
	}
	p, err := e.ensurePartition(collection, c, oldPartition)
	if err != nil {
		return nil, err
	}

	newDoc := data.withoutID().withID(id)
	newPartition := oldPartition
	if index != nil {
		newPartition = index.partitionFor(newDoc)
		if newPartition == "" {
			return nil, validationError("index resolved to an empty partition name")
		}
	}

	var oldDoc Document
	if newPartition == oldPartition {
		var found bool
		oldDoc, newDoc, found = doUpdate(c, p, id, data)
		if !found {
			return nil, documentNotFoundError(collection, id)
		}
		e.markDirty(e.unitKey(collection, oldPartition))
	} else {
		idx := p.indexOf(id)
		if idx < 0 {
			return nil, documentNotFoundError(collection, id)
		}
		oldDoc = p.removeAt(idx)
		np, err := e.ensurePartition(collection, c, newPartition)
		if err != nil {
			return nil, err
		}
		np.Docs = append(np.Docs, newDoc)
		c.IDMap[id] = newPartition
		c.Indexes.updateDoc(oldDoc, newDoc, id)
		e.markDirty(e.unitKey(collection, oldPartition))
		e.markDirty(e.unitKey(collection, newPartition))
	}

	tx.recordPending("update", map[string]interface{}{
		"collection": collection,
		"id":         id,
		"data":       map[string]interface{}(data.withoutID()),
		"partition":  newPartition,
	})
	return newDoc.clone(), nil
}
