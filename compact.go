package sencillo

import "context"

// Compact folds the AOF into the base store by flushing every resident
// unit straight to its backing file, the same way a non-AOF commit would
// have persisted it, and then deleting the log file. It is idempotent:
// compacting twice in a row with no intervening writes rewrites the same
// content the second time and finds no log left to delete. With AOF
// disabled it returns nil without doing anything.
//
// Compact acquires the engine's transaction lock for its duration, the
// same as Transaction, so it never races a concurrent commit.
func (e *Engine) Compact(ctx context.Context) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.aofLog == nil {
		return nil
	}

	switch e.mode {
	case modeSingleFile:
		if err := e.saveSingleFile(); err != nil {
			return err
		}
	default:
		for name, c := range e.db.Collections {
			if err := e.persistUnit(e.unitKey(name, "")); err != nil {
				return err
			}
			for partition := range c.Partitions {
				if err := e.persistUnit(e.unitKey(name, partition)); err != nil {
					return err
				}
			}
		}
	}

	e.dirty = map[string]struct{}{}
	if err := e.aofLog.Delete(); err != nil {
		return ioError("deleting AOF", err)
	}
	return nil
}
