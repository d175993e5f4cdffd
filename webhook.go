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
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hooksync/hook-sync/pkg/logging"
)

const (
	// securityTokenHeader carries the shared secret on webhook requests.
	securityTokenHeader = "X-Security-Token"

	// webhookPathPrefix is where the webhook surface is mounted.
	webhookPathPrefix = "/webhook"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// syncer updates one repository's working tree to match its remote.
type syncer interface {
	Sync(ctx context.Context, dir absPath) error
}

// trigger is signaled after a repository has been updated.
type trigger interface {
	Send(path string)
}

// webhookResponse is the JSON body of every webhook reply.
type webhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// webhookServer handles deployment webhooks: authorize, validate the
// subpath, sync that repository, and signal the reload triggers.  It holds
// no per-request state and is safe for concurrent use.
type webhookServer struct {
	root     absPath // canonicalized parent of all managed repos
	secret   string  // empty disables authentication
	sync     syncer
	triggers []trigger
	log      *logging.Logger
}

func newWebhookServer(root absPath, secret string, sync syncer, triggers []trigger, log *logging.Logger) *webhookServer {
	return &webhookServer{
		root:     root,
		secret:   secret,
		sync:     sync,
		triggers: triggers,
		log:      log,
	}
}

// validSubpathRE matches the characters a repository subpath may contain.
var validSubpathRE = regexp.MustCompile(`^[\w\-./\\]+$`)

// validSubpath reports whether subpath is safe to resolve under the root.
// This is a pure check: no filesystem access.
func validSubpath(subpath string) bool {
	if !validSubpathRE.MatchString(subpath) {
		return false
	}
	// No parent references, even ones that would resolve inside the root.
	return !strings.Contains(subpath, "..")
}

func (s *webhookServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-Id")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", reqID)
	log := s.log.WithValues("request", reqID)

	var code int
	var resp webhookResponse
	if r.Method != http.MethodPost {
		code = http.StatusMethodNotAllowed
		resp = webhookResponse{statusError, "Method not allowed"}
	} else {
		// The subpath is everything after the mount point, percent-decoded
		// by the URL parser but otherwise exactly as the client sent it.
		subpath := strings.TrimPrefix(r.URL.Path, webhookPathPrefix)
		subpath = strings.TrimPrefix(subpath, "/")
		code, resp = s.handle(r.Context(), log, subpath, r.Header.Get(securityTokenHeader))
	}

	metricRequestCount.WithLabelValues(strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// handle runs the webhook pipeline for one request and returns the HTTP
// status code and response body.  The order is fixed: authorization first,
// then pure path validation, and only then any filesystem access.
func (s *webhookServer) handle(ctx context.Context, log *logging.Logger, subpath, token string) (int, webhookResponse) {
	if !s.authorize(log, token) {
		log.V(0).Info("request unauthorized", "path", subpath)
		return http.StatusUnauthorized, webhookResponse{statusError, "Unauthorized"}
	}

	if !validSubpath(subpath) {
		log.V(0).Info("request rejected: invalid repository path", "path", subpath)
		return http.StatusBadRequest, webhookResponse{statusError, "Invalid repository path"}
	}
	dir := s.root.Join(subpath)
	if !dir.Within(s.root) {
		log.V(0).Info("request rejected: path escapes root", "path", subpath, "dir", dir)
		return http.StatusBadRequest, webhookResponse{statusError, "Invalid repository path"}
	}

	if fi, err := os.Stat(dir.String()); err != nil || !fi.IsDir() {
		log.V(0).Info("request rejected: repository not found", "dir", dir)
		return http.StatusNotFound, webhookResponse{statusError, "Repository not found"}
	}

	log.V(1).Info("processing webhook", "path", subpath, "dir", dir)
	start := time.Now()
	if err := s.sync.Sync(ctx, dir); err != nil {
		updateSyncMetrics(metricKeyError, start)
		log.Error(err, "git operation failed", "dir", dir)
		return http.StatusInternalServerError, webhookResponse{statusError, "Git operation failed: " + err.Error()}
	}
	updateSyncMetrics(metricKeySuccess, start)

	for _, t := range s.triggers {
		t.Send(subpath)
	}
	log.V(0).Info("repository updated", "path", subpath, "duration", time.Since(start))
	return http.StatusOK, webhookResponse{statusSuccess, "Repository updated"}
}

// authorize checks the presented token against the configured secret.  No
// configured secret means authentication is disabled.
func (s *webhookServer) authorize(log *logging.Logger, token string) bool {
	if s.secret == "" {
		return true
	}
	// Verbosity 9 logs the presented token, for debugging auth failures.
	log.V(9).Info("presented security token", "token", token)
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) == 1
}

// webhookMux routes webhook requests to wh and everything else to next.
// http.ServeMux rewrites ".." path segments and redirects before matching,
// which would hide traversal attempts from validation, so the webhook
// surface is matched on the raw path.
func webhookMux(wh http.Handler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == webhookPathPrefix || strings.HasPrefix(r.URL.Path, webhookPathPrefix+"/") {
			wh.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
