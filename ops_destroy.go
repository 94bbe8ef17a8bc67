package sencillo

// Destroy removes the document named by id from collection and returns a
// clone of the document as it was immediately before removal.
func (tx *Tx) Destroy(collection string, id int64) (Document, error) {
	if collection == "" {
		return nil, validationError("collection name required")
	}

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

	doc, found := doDestroy(c, p, id)
	if !found {
		return nil, documentNotFoundError(collection, id)
	}
	e.markDirty(e.unitKey(collection, partition))
	tx.recordPending("destroy", map[string]interface{}{
		"collection": collection,
		"id":         id,
	})
	return doc.clone(), nil
}
