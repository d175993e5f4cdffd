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
	"strings"
	"testing"
	"time"

	"github.com/hooksync/hook-sync/pkg/cmd"
	"github.com/hooksync/hook-sync/pkg/logging"
)

func tmpDirFor(path string) string {
	return "/tmp"
}

func TestNotZeroReturnExechookDo(t *testing.T) {
	t.Run("test not zero return code", func(t *testing.T) {
		l := logging.New("", "", 0)
		ch := NewExechook(
			cmd.NewRunner(l),
			"false",
			tmpDirFor,
			[]string{},
			time.Second,
			l,
		)
		err := ch.Do(context.Background(), "")
		if err == nil {
			t.Fatalf("expected error but got none")
		}
	})
}

func TestZeroReturnExechookDo(t *testing.T) {
	t.Run("test zero return code", func(t *testing.T) {
		l := logging.New("", "", 0)
		ch := NewExechook(
			cmd.NewRunner(l),
			"true",
			tmpDirFor,
			[]string{},
			time.Second,
			l,
		)
		err := ch.Do(context.Background(), "")
		if err != nil {
			t.Fatalf("expected nil but got err")
		}
	})
}

func TestTimeoutExechookDo(t *testing.T) {
	t.Run("test timeout", func(t *testing.T) {
		l := logging.New("", "", 0)
		ch := NewExechook(
			cmd.NewRunner(l),
			"/bin/sh",
			tmpDirFor,
			[]string{"-c", "sleep 2"},
			time.Second,
			l,
		)
		err := ch.Do(context.Background(), "")
		if err == nil {
			t.Fatalf("expected err but got nil")
		}
	})
}

func TestExechookRunsInDeployDir(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "blog"), 0755); err != nil {
		t.Fatalf("failed to make deploy dir: %v", err)
	}

	l := logging.New("", "", 0)
	ch := NewExechook(
		cmd.NewRunner(l),
		"/bin/sh",
		func(path string) string { return filepath.Join(root, path) },
		[]string{"-c", `touch ran.txt && printf '%s' "$HOOKSYNC_PATH" > path.txt`},
		time.Second,
		l,
	)
	if err := ch.Do(context.Background(), "blog"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "blog", "ran.txt")); err != nil {
		t.Errorf("expected hook to run in the deploy dir: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(root, "blog", "path.txt"))
	if err != nil {
		t.Fatalf("failed to read path.txt: %v", err)
	}
	if strings.TrimSpace(string(got)) != "blog" {
		t.Errorf("expected %q, got %q", "blog", string(got))
	}
}
