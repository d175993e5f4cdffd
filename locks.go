/*
Copyright 2024 The hook-sync Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// dirLocks hands out one lock per directory.  Weighted semaphores instead of
// mutexes, so waiters honor context cancellation.
type dirLocks struct {
	mu    sync.Mutex
	locks map[absPath]*semaphore.Weighted
}

func newDirLocks() *dirLocks {
	return &dirLocks{locks: map[absPath]*semaphore.Weighted{}}
}

func (l *dirLocks) forDir(dir absPath) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.locks[dir]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.locks[dir] = sem
	}
	return sem
}

// syncGate bounds sync concurrency: syncs of the same directory are
// serialized, and an optional global limit caps how many run at once.
type syncGate struct {
	locks *dirLocks
	pool  *semaphore.Weighted // nil means no global limit
}

func newSyncGate(maxParallel int) *syncGate {
	g := &syncGate{locks: newDirLocks()}
	if maxParallel > 0 {
		g.pool = semaphore.NewWeighted(int64(maxParallel))
	}
	return g
}

// enter acquires the per-directory lock and then a global slot.  It blocks
// until both are held or ctx is done, and returns the release function.
func (g *syncGate) enter(ctx context.Context, dir absPath) (func(), error) {
	sem := g.locks.forDir(dir)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if g.pool != nil {
		if err := g.pool.Acquire(ctx, 1); err != nil {
			sem.Release(1)
			return nil, err
		}
	}
	return func() {
		if g.pool != nil {
			g.pool.Release(1)
		}
		sem.Release(1)
	}, nil
}
