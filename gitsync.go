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
	"fmt"
	"time"

	"github.com/hooksync/hook-sync/pkg/cmd"
	"github.com/hooksync/hook-sync/pkg/logging"
)

// repoSync updates working trees by running the git CLI.  This is the default
// backend: it honors whatever credentials, transports, and config the host
// git installation has.
type repoSync struct {
	cmd     string        // the git command to run
	timeout time.Duration // bound on one whole sync, 0 means none
	gate    *syncGate
	run     cmd.Runner
	log     *logging.Logger
}

func newRepoSync(gitCmd string, timeout time.Duration, gate *syncGate, runner cmd.Runner, log *logging.Logger) *repoSync {
	return &repoSync{
		cmd:     gitCmd,
		timeout: timeout,
		gate:    gate,
		run:     runner,
		log:     log,
	}
}

// Run runs `git` with the specified args.
func (git *repoSync) Run(ctx context.Context, cwd absPath, args ...string) (string, string, error) {
	return git.run.WithCallDepth(1).Run(ctx, cwd.String(), nil, git.cmd, args...)
}

// Sync brings the working tree at dir up to date with its remote.  Local
// edits to tracked files are discarded, untracked files are removed, and the
// checked-out branch is fast-forwarded.  Syncs of the same directory are
// serialized; the first failing step aborts the rest.
func (git *repoSync) Sync(ctx context.Context, dir absPath) error {
	release, err := git.gate.enter(ctx, dir)
	if err != nil {
		return err
	}
	defer release()

	if git.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, git.timeout)
		defer cancel()
	}

	git.log.V(1).Info("syncing repo", "dir", dir)

	// Discard local edits to tracked files.
	if _, _, err := git.Run(ctx, dir, "reset", "--hard", "HEAD"); err != nil {
		return err
	}
	// Remove untracked files and directories.
	if _, _, err := git.Run(ctx, dir, "clean", "-fd"); err != nil {
		return err
	}
	// Fast-forward to the remote.  A diverged branch fails the sync.
	if _, _, err := git.Run(ctx, dir, "pull", "--ff-only"); err != nil {
		return err
	}
	return nil
}

type keyVal struct {
	key string
	val string
}

// SetupDefaultGitConfigs configures the global git environment with some
// default settings that we need.
func (git *repoSync) SetupDefaultGitConfigs(ctx context.Context) error {
	configs := []keyVal{{
		// Never auto-detach GC runs.
		key: "gc.autoDetach",
		val: "false",
	}, {
		// Mark repos as safe (avoid a "dubious ownership" error).  The
		// managed trees are often owned by a different uid than this daemon.
		key: "safe.directory",
		val: "*",
	}}

	for _, kv := range configs {
		if _, _, err := git.Run(ctx, "", "config", "--global", kv.key, kv.val); err != nil {
			return fmt.Errorf("error configuring git %q %q: %w", kv.key, kv.val, err)
		}
	}
	return nil
}
