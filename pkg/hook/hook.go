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

// Package hook runs reload and notification triggers after deployments.
// Triggers are level-triggered: any number of signals arriving while a
// trigger is in flight coalesce into exactly one follow-up run.
package hook

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hooksync/hook-sync/pkg/logging"
)

var (
	hookRunCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hook_sync_hook_run_count_total",
		Help: "How many hook runs completed, partitioned by name and state (success, error)",
	}, []string{"name", "status"})
)

func init() {
	prometheus.MustRegister(hookRunCount)
}

// Hook is something to run after a repository has been updated.  The path
// argument is the repository subpath that was deployed.
type Hook interface {
	// Name describes the hook.
	Name() string
	// Do runs the hook.
	Do(ctx context.Context, path string) error
}

// hookData carries the most recent deployment from producers to the runner.
// The channel has capacity 1 and acts as a level-triggered flag: sends never
// block, and receiving it is the atomic observe-and-clear.
type hookData struct {
	ch    chan struct{}
	mutex sync.Mutex
	path  string
}

// NewHookData returns a new hookData.
func NewHookData() *hookData {
	return &hookData{
		ch: make(chan struct{}, 1),
	}
}

func (d *hookData) events() chan struct{} {
	return d.ch
}

func (d *hookData) get() string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.path
}

func (d *hookData) set(newPath string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.path = newPath
}

func (d *hookData) send(newPath string) {
	d.set(newPath)

	// Non-blocking write.  If the channel is full, the consumer will see the
	// newest value.  If the channel was not full, the consumer will get
	// another event.
	select {
	case d.ch <- struct{}{}:
	default:
	}
}

// NewHookRunner returns a new HookRunner.
func NewHookRunner(hook Hook, backoff time.Duration, data *hookData, log *logging.Logger) *HookRunner {
	return &HookRunner{hook: hook, backoff: backoff, data: data, logger: log}
}

// HookRunner runs one hook, at most once per batch of signals.
type HookRunner struct {
	// Hook to run and check.
	hook Hook
	// Backoff for failed hooks.
	backoff time.Duration
	// Holds the data as it crosses from producer to consumer.
	data *hookData
	// Logger.
	logger *logging.Logger
}

// Send records path as the most recent deployment and signals the runner.
// It never blocks and is safe to call concurrently.
func (r *HookRunner) Send(path string) {
	r.data.send(path)
}

// Run waits for signals and runs the hook once per batch, retrying failed
// runs with backoff.  It returns when ctx is canceled.
func (r *HookRunner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.data.events():
		}
		// Retry until the hook succeeds.  Always take the latest value, in
		// case it changed while we were failing-and-retrying.  This means
		// some intermediate values may never be seen, which is the point.
		for {
			path := r.data.get()
			if err := r.hook.Do(ctx, path); err != nil {
				r.logger.Error(err, "hook failed", "hook", r.hook.Name(), "path", path)
				updateHookRunCountMetric(r.hook.Name(), "error")
				select {
				case <-ctx.Done():
					return
				case <-time.After(r.backoff):
				}
			} else {
				updateHookRunCountMetric(r.hook.Name(), "success")
				break
			}
		}
	}
}

func updateHookRunCountMetric(name, status string) {
	hookRunCount.WithLabelValues(name, status).Inc()
}
