// Package lru implements the bounded residency manager described in the
// spec's LRU Admission component: every access moves a unit to the
// most-recent end, and exceeding the configured maximum evicts the
// least-recently-touched unit, running a caller-supplied callback so the
// owner can persist it first if dirty.
//
// hashicorp/golang-lru/v2 is declared in the teacher's go.mod but never
// imported by any file the teacher ships (it shows up only as a
// consequence of some other dependency's transitive closure). Its
// NewWithEvict constructor — a bounded cache that calls back synchronously
// the instant an Add pushes it over capacity — is exactly the primitive
// this component needs, so it finally gets used here.
package lru

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Admission is a bounded, ordered set of resident-unit keys. A size of 0
// disables eviction entirely (Touch becomes a no-op), matching the spec's
// "maxCacheSize 0 means unbounded" rule.
type Admission struct {
	cache *lru.Cache[string, struct{}]
	// removing suppresses onEvict during Remove: the underlying cache
	// reports explicit removals through the same callback as evictions.
	removing bool
}

// New returns an Admission cache bounded at maxSize. onEvict is invoked
// synchronously, within the call to Touch that caused the overflow, with
// the key being dropped. maxSize <= 0 disables the cache.
func New(maxSize int, onEvict func(key string)) *Admission {
	if maxSize <= 0 {
		return &Admission{}
	}
	a := &Admission{}
	c, err := lru.NewWithEvict[string, struct{}](maxSize, func(key string, _ struct{}) {
		if onEvict != nil && !a.removing {
			onEvict(key)
		}
	})
	if err != nil {
		// Only returned for a non-positive size, already excluded above.
		return &Admission{}
	}
	a.cache = c
	return a
}

// Enabled reports whether eviction is active.
func (a *Admission) Enabled() bool {
	return a.cache != nil
}

// Touch records an access to key, moving it to the most-recently-used end.
// If this access pushes the cache over capacity, the configured onEvict
// callback runs before Touch returns.
func (a *Admission) Touch(key string) {
	if a.cache == nil {
		return
	}
	a.cache.Add(key, struct{}{})
}

// Remove drops key from the admission set without running onEvict. Used
// when a unit is removed through an explicit drop/rollback rather than
// through natural eviction.
func (a *Admission) Remove(key string) {
	if a.cache == nil {
		return
	}
	a.removing = true
	a.cache.Remove(key)
	a.removing = false
}

// Len reports how many units are currently tracked.
func (a *Admission) Len() int {
	if a.cache == nil {
		return 0
	}
	return a.cache.Len()
}
