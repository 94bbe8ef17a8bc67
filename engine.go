// Package sencillo implements an embedded, document-oriented object store.
//
// Data is organized into named collections, each split into partitions
// (a user-chosen partition key, historically called an "index"). Every
// collection carries stats (an id generator plus a live count), an id-to-
// partition map, and optional secondary indexes for point lookups. The
// durable representation is human-readable JSON, written in one of three
// layouts — a single file, one file per collection, or one file per
// partition — with an optional append-only log for fast commits and
// optional gzip compression layered transparently underneath.
//
// All access goes through Engine.Transaction, which serializes writers
// behind a single exclusive lock, buffers the operations it runs for the
// append-only log, and rolls back cleanly if the callback returns an
// error.
package sencillo

import (
	"context"
	"sync"

	"github.com/AlexMercedCoder/sencillo-go/internal/aof"
	"github.com/AlexMercedCoder/sencillo-go/internal/codec"
	"github.com/AlexMercedCoder/sencillo-go/internal/layout"
	"github.com/AlexMercedCoder/sencillo-go/internal/lru"
	"github.com/AlexMercedCoder/sencillo-go/log"
)

// Logger is the subset of log.Logger the engine depends on; re-exported
// so callers configuring Options don't need to import the log package
// directly.
type Logger = log.Logger

type mode = layout.Mode

const (
	modeSingleFile = layout.SingleFile
	modeFolder     = layout.Folder
	modeSharded    = layout.Sharded
)

// txState is the per-transaction state machine: IDLE -> RUNNING ->
// (COMMITTING | ROLLING_BACK) -> IDLE.
type txState int

const (
	stateIdle txState = iota
	stateRunning
	stateCommitting
	stateRollingBack
)

// Engine is the storage and execution engine. Construct one with New and
// drive every read/write through Transaction.
type Engine struct {
	opts    Options
	mode    mode
	layout  *layout.Layout
	codec   *codec.Codec
	lru     *lru.Admission
	aofLog  *aof.Log
	log     Logger
	metrics *metricsSet

	// lock serializes transactions; Go's sync.Mutex gives transactions
	// FIFO-ish fairness under contention, matching the spec's "no
	// preemption, no timeouts" serialization model.
	lock sync.Mutex

	db    *Database
	dirty map[string]struct{}

	pending []pendingOp
	state   txState
}

// pendingOp is a queued mutating op, buffered for the AOF on commit and
// discarded on commit or rollback. Instructions are already normalized
// (no functions, ids resolved) so replay can feed them straight back into
// applyOp.
type pendingOp struct {
	op           string
	instructions map[string]interface{}
}

// New constructs an Engine from opts, loading any existing on-disk state.
// In single-file mode with AOF enabled, the AOF (if present) is replayed
// against the freshly loaded base document before New returns.
func New(ctx context.Context, opts Options) (*Engine, error) {
	m, err := opts.resolvedMode()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New()
	}

	e := &Engine{
		opts:   opts,
		mode:   m,
		layout: layout.New(m, opts.rootPath(), opts.Compression),
		codec:  codec.New(opts.Compression),
		log:    logger,
		db:     newDatabase(),
		dirty:  map[string]struct{}{},
	}
	e.metrics = newMetricsSet(opts.PrometheusRegisterer)

	if m != modeSingleFile {
		e.lru = lru.New(opts.MaxCacheSize, e.onEvict)
	}
	if opts.AOF {
		if m == modeSingleFile {
			e.aofLog = aof.Open(e.layout.SingleFileAOFPath(), opts.Compression)
		} else {
			e.aofLog = aof.Open(e.layout.FolderAOFPath(), opts.Compression)
		}
	}

	if m == modeSingleFile {
		if err := e.reloadSingleFile(ctx); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Close releases any resources the engine holds. The engine keeps no open
// file handles between operations, so Close is currently a no-op kept for
// API symmetry with callers that manage an Engine's lifecycle explicitly.
func (e *Engine) Close(context.Context) error {
	return nil
}

// Tx is the handle passed to a Transaction callback, exposing every
// mutating and read operation the engine supports.
type Tx struct {
	e   *Engine
	ctx context.Context
}

// Transaction acquires the engine's serializing lock, runs fn against a
// fresh Tx handle, and commits on success or rolls back on error,
// rethrowing whatever fn returned.
func (e *Engine) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.state = stateRunning
	tx := &Tx{e: e, ctx: ctx}

	err := fn(tx)
	if err != nil {
		e.state = stateRollingBack
		e.log.WithField("error", err).Warn("sencillo: rolling back transaction")
		e.rollback(ctx)
		e.state = stateIdle
		return err
	}

	e.state = stateCommitting
	if cerr := e.commit(ctx); cerr != nil {
		e.state = stateIdle
		return cerr
	}
	e.state = stateIdle
	return nil
}

// commit flushes whatever the transaction touched and clears the pending
// buffer. In single-file mode with AOF enabled, the whole base document
// is never rewritten — only the pending ops are appended — which is the
// source of the documented replay asymmetry: folder/sharded mode has no
// base document for an AOF to usefully replay against, so AOF there (if
// enabled) is an audit trail rather than a recovery path.
func (e *Engine) commit(ctx context.Context) error {
	defer func() {
		e.pending = nil
		e.dirty = map[string]struct{}{}
	}()

	if e.aofLog != nil {
		recs := make([]aof.Record, 0, len(e.pending))
		for _, p := range e.pending {
			recs = append(recs, aof.Record{Op: p.op, Instructions: p.instructions})
		}
		if err := e.aofLog.AppendBatch(recs); err != nil {
			return ioError("appending to AOF", err)
		}
		e.metrics.observeCommit()
		e.metrics.setResidentDocuments(e.residentDocCount())
		return nil
	}

	switch e.mode {
	case modeSingleFile:
		if err := e.saveSingleFile(); err != nil {
			return err
		}
	default:
		for key := range e.dirty {
			if err := e.persistUnit(key); err != nil {
				return err
			}
		}
	}
	e.metrics.observeCommit()
	e.metrics.setResidentDocuments(e.residentDocCount())
	return nil
}

// rollback undoes an in-progress transaction's effects: single-file mode
// reloads the last committed document from disk (discarding every
// in-memory mutation since then, AOF-replayed or not), while
// folder/sharded mode evicts whichever resident units the transaction
// marked dirty (in sharded mode, the whole collection owning a dirty
// shard), so a load-then-mutate that never committed leaves no trace.
func (e *Engine) rollback(ctx context.Context) {
	defer func() {
		e.pending = nil
		e.dirty = map[string]struct{}{}
	}()
	e.metrics.observeRollback()

	switch e.mode {
	case modeSingleFile:
		if err := e.reloadSingleFile(ctx); err != nil {
			e.log.WithField("error", err).Error("sencillo: rollback reload failed")
		}
	default:
		for key := range e.dirty {
			e.evictResident(key)
			if e.lru != nil {
				e.lru.Remove(key)
			}
			// A sharded write marks only its shard's key dirty but also
			// changes the collection's Stats and IdMap, so the collection
			// is dropped too and reloaded from disk on next access.
			if collection, partition := splitResidencyKey(key); partition != "" {
				e.evictResident(collection)
			}
		}
	}
}

// State reports the engine's current transaction-controller state. Meant
// for tests and introspection, not for control flow.
func (e *Engine) State() string {
	switch e.state {
	case stateRunning:
		return "running"
	case stateCommitting:
		return "committing"
	case stateRollingBack:
		return "rolling_back"
	default:
		return "idle"
	}
}
