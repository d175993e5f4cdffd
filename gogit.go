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
	"errors"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"

	"github.com/hooksync/hook-sync/pkg/logging"
)

// gogitSync updates working trees in-process through go-git, for hosts with
// no git binary installed.  Remote auth is limited to what go-git supports,
// so the exec backend stays the default.
type gogitSync struct {
	timeout time.Duration // bound on one whole sync, 0 means none
	gate    *syncGate
	log     *logging.Logger
}

func newGogitSync(timeout time.Duration, gate *syncGate, log *logging.Logger) *gogitSync {
	return &gogitSync{
		timeout: timeout,
		gate:    gate,
		log:     log,
	}
}

// Sync implements the same contract as repoSync.Sync without shelling out.
func (gs *gogitSync) Sync(ctx context.Context, dir absPath) error {
	release, err := gs.gate.enter(ctx, dir)
	if err != nil {
		return err
	}
	defer release()

	if gs.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gs.timeout)
		defer cancel()
	}

	gs.log.V(1).Info("syncing repo", "dir", dir, "backend", "gogit")

	repo, err := git.PlainOpen(dir.String())
	if err != nil {
		return fmt.Errorf("error opening repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("error getting worktree: %w", err)
	}

	// Discard local edits to tracked files.
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return fmt.Errorf("error resetting worktree: %w", err)
	}
	// Remove untracked files and directories.
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("error cleaning worktree: %w", err)
	}
	// Pull is fast-forward-only in go-git; already-up-to-date is success.
	if err := wt.PullContext(ctx, &git.PullOptions{}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("error pulling: %w", err)
	}
	return nil
}
