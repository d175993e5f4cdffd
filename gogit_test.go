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
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/hooksync/hook-sync/pkg/logging"
)

func testGogitSync(t *testing.T) *gogitSync {
	t.Helper()
	return newGogitSync(time.Minute, newSyncGate(0), logging.New("", "", 0))
}

// initTestRepo makes a repo with one committed file and clones it, returning
// the clone path.
func initTestRepo(t *testing.T) string {
	t.Helper()

	src := filepath.Join(t.TempDir(), "src")
	repo, err := git.PlainInit(src, false)
	if err != nil {
		t.Fatalf("can't init repo: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "site.txt"), []byte("v1\n"), 0644); err != nil {
		t.Fatalf("can't write file: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("can't get worktree: %v", err)
	}
	if _, err := wt.Add("site.txt"); err != nil {
		t.Fatalf("can't add file: %v", err)
	}
	author := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()}
	if _, err := wt.Commit("v1", &git.CommitOptions{Author: author}); err != nil {
		t.Fatalf("can't commit: %v", err)
	}

	clone := filepath.Join(t.TempDir(), "clone")
	if _, err := git.PlainClone(clone, false, &git.CloneOptions{URL: src}); err != nil {
		t.Fatalf("can't clone repo: %v", err)
	}
	return clone
}

func TestGogitSyncNotARepo(t *testing.T) {
	root := testRoot(t, "plain")
	gs := testGogitSync(t)

	if err := gs.Sync(context.Background(), root.Join("plain")); err == nil {
		t.Fatal("expected an error for a directory that is not a repo")
	}
}

func TestGogitSyncCleansWorktree(t *testing.T) {
	clone := initTestRepo(t)
	gs := testGogitSync(t)

	// Dirty the clone: edit a tracked file and drop an untracked one.
	if err := os.WriteFile(filepath.Join(clone, "site.txt"), []byte("local edit\n"), 0644); err != nil {
		t.Fatalf("can't edit file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(clone, "scratch.txt"), []byte("junk\n"), 0644); err != nil {
		t.Fatalf("can't write file: %v", err)
	}

	if err := gs.Sync(context.Background(), absPath(clone)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The tracked edit is reverted.
	if data, err := os.ReadFile(filepath.Join(clone, "site.txt")); err != nil {
		t.Fatalf("can't read file: %v", err)
	} else if string(data) != "v1\n" {
		t.Errorf("expected %q, got %q", "v1\n", string(data))
	}
	// The untracked file is removed.
	if _, err := os.Stat(filepath.Join(clone, "scratch.txt")); !os.IsNotExist(err) {
		t.Errorf("expected scratch.txt to be removed, got: %v", err)
	}

	// A second sync of a clean, up-to-date tree is not an error.
	if err := gs.Sync(context.Background(), absPath(clone)); err != nil {
		t.Fatalf("unexpected error on clean tree: %v", err)
	}
}
