package sencillo

// applyOp re-runs one normalized AOF instruction against db. It is the
// replay counterpart to the Tx methods in ops_create.go, ops_update.go,
// ops_destroy.go, and ops_collection.go — each of those records exactly
// the instructions applyOp needs to reproduce the same effect, with no
// further disk access (single-file mode is always fully resident). The
// op names below are the spec's closed AOF vocabulary; an op outside it
// never reaches the log in the first place.
func applyOp(db *Database, op string, instr map[string]interface{}) error {
	switch op {
	case "create":
		return applyCreate(db, instr)
	case "createMany":
		return applyCreateMany(db, instr)
	case "update":
		return applyUpdate(db, instr)
	case "destroy":
		return applyDestroy(db, instr)
	case "ensureIndex":
		return applyEnsureIndex(db, instr)
	case "dropIndex":
		return applyDropIndex(db, instr)
	case "dropCollection":
		return applyDropCollection(db, instr)
	case "rewriteCollection":
		return applyRewriteCollection(db, instr)
	default:
		return validationError("unknown AOF op %q", op)
	}
}

func applyCreate(db *Database, instr map[string]interface{}) error {
	collection, _ := instr["collection"].(string)
	partition, _ := instr["partition"].(string)
	docRaw, _ := instr["document"].(map[string]interface{})
	c := dbEnsureCollection(db, collection)
	p := dbEnsurePartition(c, partition)
	doCreate(c, p, partition, Document(docRaw))
	return nil
}

func applyCreateMany(db *Database, instr map[string]interface{}) error {
	collection, _ := instr["collection"].(string)
	items, _ := instr["items"].([]interface{})
	c := dbEnsureCollection(db, collection)
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		partition, _ := m["partition"].(string)
		docRaw, _ := m["document"].(map[string]interface{})
		p := dbEnsurePartition(c, partition)
		doCreate(c, p, partition, Document(docRaw))
	}
	return nil
}

// applyUpdate replays a (possibly repartitioning) update: data fully
// replaces the document body, and if the recorded destination partition
// differs from where the IdMap currently places the document, it is
// spliced out of the old partition and appended to the new one.
func applyUpdate(db *Database, instr map[string]interface{}) error {
	collection, _ := instr["collection"].(string)
	id, ok := toInt64(instr["id"])
	if !ok {
		return validationError("update instruction missing id")
	}
	data, _ := instr["data"].(map[string]interface{})
	newPartition, _ := instr["partition"].(string)

	c := dbEnsureCollection(db, collection)
	oldPartition, ok := c.IDMap[id]
	if !ok {
		return documentNotFoundError(collection, id)
	}
	p := dbEnsurePartition(c, oldPartition)

	if newPartition == "" || newPartition == oldPartition {
		if _, _, found := doUpdate(c, p, id, Document(data)); !found {
			return documentNotFoundError(collection, id)
		}
		return nil
	}

	idx := p.indexOf(id)
	if idx < 0 {
		return documentNotFoundError(collection, id)
	}
	oldDoc := p.removeAt(idx)
	newDoc := Document(data).withoutID().withID(id)
	np := dbEnsurePartition(c, newPartition)
	np.Docs = append(np.Docs, newDoc)
	c.IDMap[id] = newPartition
	c.Indexes.updateDoc(oldDoc, newDoc, id)
	return nil
}

func applyDestroy(db *Database, instr map[string]interface{}) error {
	collection, _ := instr["collection"].(string)
	id, ok := toInt64(instr["id"])
	if !ok {
		return validationError("destroy instruction missing id")
	}
	c := dbEnsureCollection(db, collection)
	partition, ok := c.IDMap[id]
	if !ok {
		return documentNotFoundError(collection, id)
	}
	p := dbEnsurePartition(c, partition)
	if _, found := doDestroy(c, p, id); !found {
		return documentNotFoundError(collection, id)
	}
	return nil
}

func applyEnsureIndex(db *Database, instr map[string]interface{}) error {
	collection, _ := instr["collection"].(string)
	field, _ := instr["field"].(string)
	c := dbEnsureCollection(db, collection)
	if _, ok := c.Indexes[field]; ok {
		return nil
	}
	fi := fieldIndex{}
	for _, p := range c.Partitions {
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
	return nil
}

func applyDropIndex(db *Database, instr map[string]interface{}) error {
	collection, _ := instr["collection"].(string)
	partition, _ := instr["partition"].(string)
	c := dbEnsureCollection(db, collection)
	p, ok := c.Partitions[partition]
	if ok {
		for _, d := range p.Docs {
			if id, ok := docID(d); ok {
				c.Indexes.removeDoc(d, id)
				delete(c.IDMap, id)
				c.Stats.Total--
			}
		}
	}
	delete(c.Partitions, partition)
	return nil
}

func applyDropCollection(db *Database, instr map[string]interface{}) error {
	collection, _ := instr["collection"].(string)
	delete(db.Collections, collection)
	return nil
}

func applyRewriteCollection(db *Database, instr map[string]interface{}) error {
	collection, _ := instr["collection"].(string)
	items, _ := instr["items"].([]interface{})

	existing := dbEnsureCollection(db, collection)
	indexFields := make([]string, 0, len(existing.Indexes))
	for field := range existing.Indexes {
		indexFields = append(indexFields, field)
	}

	fresh := newCollection()
	for _, field := range indexFields {
		fresh.Indexes[field] = fieldIndex{}
	}
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		partition, _ := m["partition"].(string)
		docRaw, _ := m["document"].(map[string]interface{})
		p := dbEnsurePartition(fresh, partition)
		doCreate(fresh, p, partition, Document(docRaw))
	}
	db.Collections[collection] = fresh
	return nil
}
