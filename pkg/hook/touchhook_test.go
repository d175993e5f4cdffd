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

package hook

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hooksync/hook-sync/pkg/logging"
)

func TestTouchhookCreatesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sub", "dir", "trigger")
	h := NewTouchhook(file, logging.New("", "", 0))

	if got := h.Name(); got != "touchhook" {
		t.Errorf("expected %q, got %q", "touchhook", got)
	}

	if err := h.Do(context.Background(), "blog"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	fi, err := os.Stat(file)
	if err != nil {
		t.Fatalf("expected trigger file to exist: %v", err)
	}
	if fi.IsDir() {
		t.Fatalf("expected a file, got a directory")
	}
}

func TestTouchhookUpdatesTimestamps(t *testing.T) {
	file := filepath.Join(t.TempDir(), "trigger")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(file, past, past); err != nil {
		t.Fatalf("failed to set times: %v", err)
	}

	h := NewTouchhook(file, logging.New("", "", 0))
	if err := h.Do(context.Background(), "blog"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	fi, err := os.Stat(file)
	if err != nil {
		t.Fatalf("failed to stat file: %v", err)
	}
	if !fi.ModTime().After(past) {
		t.Errorf("expected mtime to move forward, got %v", fi.ModTime())
	}
}

func TestTouchhookReportsErrors(t *testing.T) {
	// The parent of the trigger path is a regular file, so MkdirAll fails.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	h := NewTouchhook(filepath.Join(blocker, "trigger"), logging.New("", "", 0))
	if err := h.Do(context.Background(), "blog"); err == nil {
		t.Fatalf("expected error but got none")
	}
}
