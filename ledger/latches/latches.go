package latches

import (
	"sync"
)

// Latching provides atomicity of ledger operations. A transfer reads and writes two accounts and then commits both
// rows to the durable store; if two transfers sharing an account raced, one could overwrite the other's balance or
// observe a balance that is later rolled back. By latching every account an operation touches, we ensure that two
// operations over overlapping accounts never interleave, while operations on disjoint accounts run in parallel.
//
// A latch is a per-account lock. Only one goroutine can hold a latch at a time and all accounts that an operation
// touches must be locked at once, so there is no lock ordering to get wrong and no deadlock.
//
// Latching is implemented using a single map which maps account ids to a Go WaitGroup. Access to this map is guarded
// by a mutex to ensure that latching is atomic and consistent.
//
// An operation over every account, like a snapshot of the whole ledger, needs all latches free at the same moment.
// Under a steady stream of transfers that moment may never come. Such operations use WaitForAllLatches, which closes
// a gate that every WaitForLatches caller passes through: new pair latches wait at the gate while the snapshot waits
// for the transfers already inside to finish.

type Latches struct {
	// Before reading or modifying an account, the goroutine must have the latch for that account. `latchMap` maps each
	// latched account id to a WaitGroup. Goroutines who find an account locked should wait on that WaitGroup.
	latchMap map[uint64]*sync.WaitGroup
	// Mutex to guard latchMap. A goroutine must hold this mutex while it makes any change to latchMap.
	latchGuard sync.Mutex
	// gate is held shared while acquiring with WaitForLatches and exclusively by WaitForAllLatches.
	gate sync.RWMutex
	// An optional validation function, called while the latches are held. Only used for testing.
	Validation func(latched []uint64)
}

// NewLatches creates a new Latches object for managing a ledger's latches. There should only be one such object,
// shared between all goroutines.
func NewLatches() *Latches {
	l := new(Latches)
	l.latchMap = make(map[uint64]*sync.WaitGroup)
	return l
}

// AcquireLatches tries lock all latches specified by ids. If this succeeds, nil is returned. If any of the ids are
// locked, then AcquireLatches returns a WaitGroup which the goroutine can use to be woken when the lock is free.
func (l *Latches) AcquireLatches(idsToLatch []uint64) *sync.WaitGroup {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	// Check none of the accounts we want are locked.
	for _, id := range idsToLatch {
		if latchWg, ok := l.latchMap[id]; ok {
			// Return a wait group to wait on.
			return latchWg
		}
	}

	// All latches are available, lock them all with a new wait group.
	wg := new(sync.WaitGroup)
	wg.Add(1)
	for _, id := range idsToLatch {
		l.latchMap[id] = wg
	}

	return nil
}

// ReleaseLatches releases the latches for all ids in idsToUnlatch. It will wakeup any goroutines blocked on one of the
// latches. All ids in idsToUnlatch must have been locked together in one call to AcquireLatches.
func (l *Latches) ReleaseLatches(idsToUnlatch []uint64) {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	first := true
	for _, id := range idsToUnlatch {
		if first {
			if wg, ok := l.latchMap[id]; ok {
				wg.Done()
			}
			first = false
		}
		delete(l.latchMap, id)
	}
}

// WaitForLatches attempts to lock all ids in idsToLatch using AcquireLatches. If a latch is already locked, then
// WaitForLatches will wait for it to become unlocked then try again. Therefore WaitForLatches may block for an
// unbounded length of time.
func (l *Latches) WaitForLatches(idsToLatch []uint64) {
	l.gate.RLock()
	defer l.gate.RUnlock()
	l.waitForLatches(idsToLatch)
}

// WaitForAllLatches is like WaitForLatches, but stops new WaitForLatches callers from acquiring until idsToLatch are
// all held. It waits only for operations that had started acquiring before it. Release with ReleaseLatches.
func (l *Latches) WaitForAllLatches(idsToLatch []uint64) {
	l.gate.Lock()
	defer l.gate.Unlock()
	l.waitForLatches(idsToLatch)
}

func (l *Latches) waitForLatches(idsToLatch []uint64) {
	for {
		wg := l.AcquireLatches(idsToLatch)
		if wg == nil {
			return
		}
		wg.Wait()
	}
}

// Validate calls the function in Validation, if it exists.
func (l *Latches) Validate(latched []uint64) {
	if l.Validation != nil {
		l.Validation(latched)
	}
}

// Held reports whether id is currently latched.
func (l *Latches) Held(id uint64) bool {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()
	_, ok := l.latchMap[id]
	return ok
}
