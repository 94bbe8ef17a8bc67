// On-disk encoding and the load/commit/rollback/residency glue that sits
// between the in-memory Database and the layout+codec packages. Grounded
// on storage/disk/disk.go's pattern of a small serializable "meta" struct
// read eagerly and partition payloads read lazily on demand.
package sencillo

import (
	"context"
	"os"

	"github.com/AlexMercedCoder/sencillo-go/internal/aof"
	"github.com/AlexMercedCoder/sencillo-go/internal/codec"
	"github.com/AlexMercedCoder/sencillo-go/internal/layout"
)

// onDiskCollection is the single-file/folder wire shape: a whole
// collection, every partition inline.
type onDiskCollection struct {
	Stats      Stats                 `json:"stats"`
	IDMap      IdMap                 `json:"idMap"`
	Indexes    SecondaryIndexes      `json:"indexes"`
	Partitions map[string][]Document `json:"partitions"`
}

// onDiskMeta is the sharded-mode wire shape for a collection's meta.json:
// everything but the partition payloads, which live one-per-shard-file.
type onDiskMeta struct {
	Stats   Stats            `json:"stats"`
	IDMap   IdMap            `json:"idMap"`
	Indexes SecondaryIndexes `json:"indexes"`
}

func collectionToDisk(c *Collection) onDiskCollection {
	parts := make(map[string][]Document, len(c.Partitions))
	for name, p := range c.Partitions {
		parts[name] = p.Docs
	}
	return onDiskCollection{Stats: c.Stats, IDMap: c.IDMap, Indexes: c.Indexes, Partitions: parts}
}

func diskToCollection(d onDiskCollection) *Collection {
	c := newCollection()
	c.Stats = d.Stats
	if d.IDMap != nil {
		c.IDMap = d.IDMap
	}
	if d.Indexes != nil {
		c.Indexes = d.Indexes
	}
	for name, docs := range d.Partitions {
		c.Partitions[name] = &Partition{Name: name, Docs: normalizeDocs(docs)}
	}
	return c
}

func normalizeDocs(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = codec.Normalize(map[string]interface{}(d)).(map[string]interface{})
	}
	return out
}

// reloadSingleFile replaces e.db with the on-disk document (or a fresh,
// empty one if none exists yet), then replays the AOF on top of it if AOF
// is enabled — the one mode where replay happens, matching the documented
// asymmetry: folder/sharded units are loaded individually on demand and
// never gain a base document an AOF could usefully replay against.
func (e *Engine) reloadSingleFile(ctx context.Context) error {
	bs, err := e.readSingleFile()
	if err != nil {
		return err
	}
	if bs == nil {
		e.db = newDatabase()
	} else {
		raw := map[string]onDiskCollection{}
		if err := e.codec.Decode(bs, &raw); err != nil {
			return ioError("decoding database document", err)
		}
		db := newDatabase()
		for name, oc := range raw {
			db.Collections[name] = diskToCollection(oc)
		}
		e.db = db
	}

	if e.aofLog != nil {
		err := e.aofLog.Replay(
			func(rec aof.Record) error { return e.applyReplayed(rec) },
			func(lineNo int, reason string) {
				e.log.WithField("line", lineNo).WithField("reason", reason).Warn("sencillo: skipping malformed AOF record")
			},
		)
		if err != nil {
			return ioError("replaying AOF", err)
		}
	}
	return nil
}

func (e *Engine) readSingleFile() ([]byte, error) {
	if e.opts.LoadHook != nil {
		bs, err := e.opts.LoadHook()
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, ioError("running load hook", err)
		}
		return bs, nil
	}
	path := e.layout.SingleFilePath()
	bs, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioError("reading "+path, err)
	}
	return bs, nil
}

func (e *Engine) saveSingleFile() error {
	raw := make(map[string]onDiskCollection, len(e.db.Collections))
	for name, c := range e.db.Collections {
		raw[name] = collectionToDisk(c)
	}
	bs, err := e.codec.Encode(raw)
	if err != nil {
		return ioError("encoding database document", err)
	}
	if e.opts.SaveHook != nil {
		if err := e.opts.SaveHook(bs); err != nil {
			return ioError("running save hook", err)
		}
		return nil
	}
	path := e.layout.SingleFilePath()
	if err := layout.AtomicWrite(path, bs); err != nil {
		return ioError("writing "+path, err)
	}
	return nil
}

// applyReplayed re-runs a normalized AOF instruction against e.db without
// going through Transaction (the caller, reloadSingleFile, already holds
// the only reference to the engine during construction).
func (e *Engine) applyReplayed(rec aof.Record) error {
	return applyOp(e.db, rec.Op, rec.Instructions)
}

// ensureCollection returns the resident Collection for name, loading it
// from disk (folder/sharded mode) on first touch and creating an empty
// one if it has never existed. Single-file mode is always fully resident
// after New, so this is a plain map lookup there.
func (e *Engine) ensureCollection(name string) (*Collection, error) {
	if c, ok := e.db.Collections[name]; ok {
		if e.lru != nil {
			e.lru.Touch(residencyKey(name, ""))
		}
		return c, nil
	}
	if e.mode == modeSingleFile {
		c := newCollection()
		e.db.Collections[name] = c
		return c, nil
	}

	var c *Collection
	var err error
	if e.mode == modeSharded {
		c, err = e.loadShardedMeta(name)
	} else {
		c, err = e.loadFolderCollection(name)
	}
	if err != nil {
		return nil, err
	}
	e.db.Collections[name] = c
	if e.lru != nil {
		e.lru.Touch(residencyKey(name, ""))
	}
	return c, nil
}

// lookupCollection returns the resident Collection for name without
// vivifying one, reporting collectionNotFoundError if name has never
// been written to in any mode. This is the read/mutate-but-not-create
// counterpart to ensureCollection, for operations the spec documents as
// failing against a collection that does not exist (update, destroy,
// find, findMany) rather than silently treating "never created" the
// same as "exists but empty".
func (e *Engine) lookupCollection(name string) (*Collection, error) {
	if c, ok := e.db.Collections[name]; ok {
		if e.lru != nil {
			e.lru.Touch(residencyKey(name, ""))
		}
		return c, nil
	}
	if e.mode == modeSingleFile {
		return nil, collectionNotFoundError(name)
	}
	if !e.collectionExistsOnDisk(name) {
		return nil, collectionNotFoundError(name)
	}
	return e.ensureCollection(name)
}

// collectionExistsOnDisk reports whether name has a durable presence in
// folder or sharded mode: a collection file, or a sharded collection's
// meta file.
func (e *Engine) collectionExistsOnDisk(name string) bool {
	if e.mode == modeSharded {
		return layout.Exists(e.layout.MetaFilePath(name))
	}
	return layout.Exists(e.layout.CollectionFilePath(name))
}

// ensurePartition returns the resident Partition, loading its shard file
// lazily in sharded mode if the collection's meta named it but its
// document slice is not yet resident.
func (e *Engine) ensurePartition(collection string, c *Collection, name string) (*Partition, error) {
	if p, ok := c.Partitions[name]; ok {
		if e.lru != nil {
			e.lru.Touch(residencyKey(collection, name))
		}
		return p, nil
	}
	if e.mode != modeSharded {
		p := &Partition{Name: name}
		c.Partitions[name] = p
		return p, nil
	}
	docs, err := e.loadShard(collection, name)
	if err != nil {
		return nil, err
	}
	p := &Partition{Name: name, Docs: docs}
	c.Partitions[name] = p
	if e.lru != nil {
		e.lru.Touch(residencyKey(collection, name))
	}
	return p, nil
}

func (e *Engine) loadFolderCollection(name string) (*Collection, error) {
	path := e.layout.CollectionFilePath(name)
	bs, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newCollection(), nil
		}
		return nil, ioError("reading "+path, err)
	}
	var oc onDiskCollection
	if err := e.codec.Decode(bs, &oc); err != nil {
		return nil, ioError("decoding "+path, err)
	}
	return diskToCollection(oc), nil
}

func (e *Engine) loadShardedMeta(name string) (*Collection, error) {
	path := e.layout.MetaFilePath(name)
	bs, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newCollection(), nil
		}
		return nil, ioError("reading "+path, err)
	}
	var meta onDiskMeta
	if err := e.codec.Decode(bs, &meta); err != nil {
		return nil, ioError("decoding "+path, err)
	}
	c := newCollection()
	c.Stats = meta.Stats
	if meta.IDMap != nil {
		c.IDMap = meta.IDMap
	}
	if meta.Indexes != nil {
		c.Indexes = meta.Indexes
	}
	return c, nil
}

func (e *Engine) loadShard(collection, partition string) ([]Document, error) {
	path := e.layout.ShardFilePath(collection, partition)
	bs, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioError("reading "+path, err)
	}
	var docs []Document
	if err := e.codec.Decode(bs, &docs); err != nil {
		return nil, ioError("decoding "+path, err)
	}
	return normalizeDocs(docs), nil
}

// residencyKey names a resident unit for the LRU admission cache: the
// collection name alone in folder mode, or "<collection>/<partition>" in
// sharded mode.
func residencyKey(collection, partition string) string {
	if partition == "" {
		return collection
	}
	return collection + "/" + partition
}

func splitResidencyKey(key string) (collection, partition string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// markDirty records that the resident unit named by key has pending
// unflushed writes.
func (e *Engine) markDirty(key string) {
	e.dirty[key] = struct{}{}
}

// persistUnit flushes one dirty resident unit (a whole folder-mode
// collection, or one shard plus its meta in sharded mode) to disk.
func (e *Engine) persistUnit(key string) error {
	collection, partition := splitResidencyKey(key)
	c, ok := e.db.Collections[collection]
	if !ok {
		return nil
	}
	if e.mode == modeFolder {
		bs, err := e.codec.Encode(collectionToDisk(c))
		if err != nil {
			return ioError("encoding collection "+collection, err)
		}
		path := e.layout.CollectionFilePath(collection)
		if err := layout.AtomicWrite(path, bs); err != nil {
			return ioError("writing "+path, err)
		}
		return nil
	}

	// Sharded: always refresh meta alongside the shard, since Stats/IDMap
	// change on every mutating op regardless of which partition it hit.
	metaBS, err := e.codec.Encode(onDiskMeta{Stats: c.Stats, IDMap: c.IDMap, Indexes: c.Indexes})
	if err != nil {
		return ioError("encoding meta for "+collection, err)
	}
	if err := layout.AtomicWrite(e.layout.MetaFilePath(collection), metaBS); err != nil {
		return ioError("writing meta for "+collection, err)
	}
	if partition == "" {
		return nil
	}
	p, ok := c.Partitions[partition]
	if !ok {
		return nil
	}
	shardBS, err := e.codec.Encode(p.Docs)
	if err != nil {
		return ioError("encoding shard "+collection+"/"+partition, err)
	}
	path := e.layout.ShardFilePath(collection, partition)
	if err := layout.AtomicWrite(path, shardBS); err != nil {
		return ioError("writing "+path, err)
	}
	return nil
}

// evictResident drops a resident unit from memory without persisting it,
// used during rollback to discard an uncommitted load-then-mutate.
func (e *Engine) evictResident(key string) {
	collection, partition := splitResidencyKey(key)
	c, ok := e.db.Collections[collection]
	if !ok {
		return
	}
	if partition == "" {
		delete(e.db.Collections, collection)
		return
	}
	delete(c.Partitions, partition)
}

// onEvict is the LRU admission callback: persist the unit first if it is
// dirty (so an evicted-but-unflushed write is never lost), then drop it
// from memory.
//
// In sharded mode, evicting a collection's meta unit (the bare-collection
// key) drops the whole Collection entry, shards and all — so any other
// still-dirty shard belonging to the same collection is flushed first,
// or it would be lost along with the entry rather than merely evicted.
func (e *Engine) onEvict(key string) {
	collection, partition := splitResidencyKey(key)
	if partition == "" {
		for sibling := range e.dirty {
			sc, sp := splitResidencyKey(sibling)
			if sc != collection || sp == "" {
				continue
			}
			if err := e.persistUnit(sibling); err != nil {
				e.log.WithField("error", err).Error("sencillo: failed to persist evicted unit")
				return
			}
			delete(e.dirty, sibling)
		}
	}
	if _, dirty := e.dirty[key]; dirty {
		if err := e.persistUnit(key); err != nil {
			e.log.WithField("error", err).Error("sencillo: failed to persist evicted unit")
			return
		}
		delete(e.dirty, key)
	}
	e.evictResident(key)
	e.metrics.observeEviction()
}

func (e *Engine) residentDocCount() int {
	n := 0
	for _, c := range e.db.Collections {
		for _, p := range c.Partitions {
			n += len(p.Docs)
		}
	}
	return n
}
