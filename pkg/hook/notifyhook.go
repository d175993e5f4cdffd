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
	"fmt"
	"net/http"
	"time"

	"github.com/hooksync/hook-sync/pkg/logging"
)

// Notifyhook calls a URL after a deployment, implements Hook.
type Notifyhook struct {
	// URL for the http/s request.
	url string
	// Method for the http/s request.
	method string
	// Code to look for when determining if the request was successful.
	// If this is 0, the request is sent and forgotten about.
	success int
	// Timeout for the http/s request.
	timeout time.Duration
	// Logger.
	logger *logging.Logger
}

// NewNotifyhook returns a new Notifyhook.
func NewNotifyhook(url, method string, success int, timeout time.Duration, l *logging.Logger) *Notifyhook {
	return &Notifyhook{
		url:     url,
		method:  method,
		success: success,
		timeout: timeout,
		logger:  l,
	}
}

// Name describes hook, implements Hook.Name.
func (h *Notifyhook) Name() string {
	return "notifyhook"
}

// Do calls notifyhook.url, implements Hook.Do.
func (h *Notifyhook) Do(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, h.method, h.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Hooksync-Path", path)

	h.logger.V(0).Info("sending notification", "path", path, "url", h.url, "method", h.method, "timeout", h.timeout)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	// If the notifyhook has a success statusCode, check against it.
	if h.success != 0 && resp.StatusCode != h.success {
		return fmt.Errorf("received response code %d expected %d", resp.StatusCode, h.success)
	}

	return nil
}
