package sencillo

// Create inserts doc into the partition index selects for it within
// collection (both created automatically if this is the first write to
// either), assigning the next sequential _id. Any _id the caller
// supplied is discarded. Create returns a clone of the stored document,
// _id included.
func (tx *Tx) Create(collection string, index Index, doc Document) (Document, error) {
	if collection == "" {
		return nil, validationError("collection name required")
	}
	if index == nil {
		return nil, validationError("index required")
	}

	e := tx.e
	c, err := e.ensureCollection(collection)
	if err != nil {
		return nil, err
	}
	partition := index.partitionFor(doc)
	if partition == "" {
		return nil, validationError("index resolved to an empty partition name")
	}
	p, err := e.ensurePartition(collection, c, partition)
	if err != nil {
		return nil, err
	}

	assigned := doCreate(c, p, partition, doc)
	e.markDirty(e.unitKey(collection, partition))
	tx.recordPending("create", map[string]interface{}{
		"collection": collection,
		"partition":  partition,
		"document":   map[string]interface{}(doc.withoutID()),
	})
	return assigned.clone(), nil
}

// CreateMany inserts every document in docs, in order, each into the
// partition index selects for it — so a DynamicIndex can spread one
// batch across several partitions in a single call — and each assigned
// its own sequential _id.
func (tx *Tx) CreateMany(collection string, index Index, docs []Document) ([]Document, error) {
	if collection == "" {
		return nil, validationError("collection name required")
	}
	if index == nil {
		return nil, validationError("index required")
	}

	e := tx.e
	c, err := e.ensureCollection(collection)
	if err != nil {
		return nil, err
	}

	assigned := make([]Document, len(docs))
	items := make([]interface{}, len(docs))
	touched := map[string]struct{}{}
	for i, doc := range docs {
		partition := index.partitionFor(doc)
		if partition == "" {
			return nil, validationError("index resolved to an empty partition name")
		}
		p, err := e.ensurePartition(collection, c, partition)
		if err != nil {
			return nil, err
		}
		assigned[i] = doCreate(c, p, partition, doc)
		touched[partition] = struct{}{}
		items[i] = map[string]interface{}{
			"partition": partition,
			"document":  map[string]interface{}(doc.withoutID()),
		}
	}
	for partition := range touched {
		e.markDirty(e.unitKey(collection, partition))
	}
	tx.recordPending("createMany", map[string]interface{}{
		"collection": collection,
		"items":      items,
	})

	out := make([]Document, len(assigned))
	for i, d := range assigned {
		out[i] = d.clone()
	}
	return out, nil
}
