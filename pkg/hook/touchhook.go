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
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hooksync/hook-sync/pkg/logging"
)

const defaultDirMode = os.FileMode(0775)

// Touchhook updates the timestamps on a sentinel file, creating it if
// needed.  Process supervisors watch that file to know a reload is wanted.
type Touchhook struct {
	// File to touch.
	file string
	// Logger.
	logger *logging.Logger
}

// NewTouchhook returns a new Touchhook.
func NewTouchhook(file string, l *logging.Logger) *Touchhook {
	return &Touchhook{
		file:   file,
		logger: l,
	}
}

// Name describes hook, implements Hook.Name.
func (h *Touchhook) Name() string {
	return "touchhook"
}

// Do touches the sentinel file, implements Hook.Do.
func (h *Touchhook) Do(ctx context.Context, path string) error {
	h.logger.V(1).Info("touching reload trigger", "file", h.file, "path", path)
	return touch(h.file)
}

// touch ensures that the file at the specified path exists and that its
// timestamps are updated.
func touch(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return err
	}
	if err := os.Chtimes(path, time.Now(), time.Now()); errors.Is(err, fs.ErrNotExist) {
		file, createErr := os.Create(path)
		if createErr != nil {
			return createErr
		}
		return file.Close()
	} else {
		return err
	}
}
