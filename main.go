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

// hook-sync is a daemon that updates local git checkouts when it receives
// deployment webhooks, and signals serving processes to reload.

package main // import "github.com/hooksync/hook-sync"

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hooksync/hook-sync/pkg/cmd"
	"github.com/hooksync/hook-sync/pkg/hook"
	"github.com/hooksync/hook-sync/pkg/logging"
	"github.com/hooksync/hook-sync/pkg/pid1"
	"github.com/hooksync/hook-sync/pkg/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

var (
	metricSyncDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "hook_sync_duration_seconds",
		Help: "Summary of hook_sync durations",
	}, []string{"status"})

	metricSyncCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hook_sync_count_total",
		Help: "How many syncs completed, partitioned by state (success, error)",
	}, []string{"status"})

	metricRequestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hook_sync_webhook_requests_total",
		Help: "How many webhook requests were served, partitioned by HTTP status code",
	}, []string{"code"})
)

func init() {
	prometheus.MustRegister(metricSyncDuration)
	prometheus.MustRegister(metricSyncCount)
	prometheus.MustRegister(metricRequestCount)
}

const (
	metricKeySuccess = "success"
	metricKeyError   = "error"
)

type backendMode string

const (
	backendExec  backendMode = "exec"
	backendGogit backendMode = "gogit"
)

func main() {
	// In case we come up as pid 1, act as init.
	if os.Getpid() == 1 {
		fmt.Fprintf(os.Stderr, "INFO: detected pid 1, running init handler\n")
		code, err := pid1.ReRun()
		if err == nil {
			os.Exit(code)
		}
		fmt.Fprintf(os.Stderr, "ERROR: unhandled pid1 error: %v\n", err)
		os.Exit(127)
	}

	//
	// Declare flags inside main() so they are not used as global variables.
	//

	flVersion := pflag.Bool("version", false, "print the version and exit")
	flHelp := pflag.BoolP("help", "h", false, "print help text and exit")
	flManual := pflag.Bool("man", false, "print the full manual and exit")

	flVerbose := pflag.IntP("verbose", "v", 0,
		"logs at this V level and lower will be printed")

	flRoot := pflag.String("root",
		envString("", "HOOKSYNC_ROOT"),
		"the root directory under which the managed repositories live (required)")
	flErrorFile := pflag.String("error-file",
		envString("", "HOOKSYNC_ERROR_FILE"),
		"the path (absolute or relative to --root) to an optional file into which errors will be written (defaults to disabled)")

	flHTTPBind := pflag.String("http-bind",
		envString(":5123", "HOOKSYNC_HTTP_BIND"),
		"the bind address (including port) for hook-sync's HTTP endpoint")
	flHTTPMetrics := pflag.Bool("http-metrics",
		envBool(false, "HOOKSYNC_HTTP_METRICS"),
		"enable metrics on hook-sync's HTTP endpoint")
	flHTTPprof := pflag.Bool("http-pprof",
		envBool(false, "HOOKSYNC_HTTP_PPROF"),
		"enable the pprof debug endpoints on hook-sync's HTTP endpoint")

	flSecurityToken := pflag.String("security-token",
		envString("", "HOOKSYNC_SECURITY_TOKEN"),
		"the token which webhook callers must present in the X-Security-Token header (prefer --security-token-file or this env var)")
	flSecurityTokenFile := pflag.String("security-token-file",
		envString("", "HOOKSYNC_SECURITY_TOKEN_FILE"),
		"the file from which the webhook security token will be sourced")

	flGitCmd := pflag.String("git",
		envString("git", "HOOKSYNC_GIT"),
		"the git command to run (subject to PATH search, mostly for testing)")
	flGitBackend := pflag.String("git-backend",
		envString("exec", "HOOKSYNC_GIT_BACKEND"),
		"how to run git operations: one of 'exec' or 'gogit'")
	flSyncTimeout := pflag.Duration("sync-timeout",
		envDuration(120*time.Second, "HOOKSYNC_SYNC_TIMEOUT"),
		"the total time allowed for one complete sync")
	flMaxParallel := pflag.Int("max-parallel",
		envInt(0, "HOOKSYNC_MAX_PARALLEL"),
		"the maximum number of syncs allowed to run at once (0 means no limit)")

	flTouchFile := pflag.String("touch-file",
		envString("/tmp/webhook_restart_trigger", "HOOKSYNC_TOUCH_FILE"),
		"the path (absolute or relative to --root) to a file which will be touched when a repository updates (\"\" disables)")

	flReloadhookCommand := pflag.String("reloadhook-command",
		envString("", "HOOKSYNC_RELOADHOOK_COMMAND"),
		"an optional command to be run when a repository updates (must be idempotent)")
	flReloadhookTimeout := pflag.Duration("reloadhook-timeout",
		envDuration(30*time.Second, "HOOKSYNC_RELOADHOOK_TIMEOUT"),
		"the timeout for the reloadhook")
	flReloadhookBackoff := pflag.Duration("reloadhook-backoff",
		envDuration(3*time.Second, "HOOKSYNC_RELOADHOOK_BACKOFF"),
		"the time to wait before retrying a failed reloadhook")

	flNotifyhookURL := pflag.String("notifyhook-url",
		envString("", "HOOKSYNC_NOTIFYHOOK_URL"),
		"a URL for optional notifications when a repository updates (must be idempotent)")
	flNotifyhookMethod := pflag.String("notifyhook-method",
		envString("POST", "HOOKSYNC_NOTIFYHOOK_METHOD"),
		"the HTTP method for the notifyhook")
	flNotifyhookStatusSuccess := pflag.Int("notifyhook-success-status",
		envInt(200, "HOOKSYNC_NOTIFYHOOK_SUCCESS_STATUS"),
		"the HTTP status code indicating a successful notifyhook (0 disables success checks)")
	flNotifyhookTimeout := pflag.Duration("notifyhook-timeout",
		envDuration(1*time.Second, "HOOKSYNC_NOTIFYHOOK_TIMEOUT"),
		"the timeout for the notifyhook")
	flNotifyhookBackoff := pflag.Duration("notifyhook-backoff",
		envDuration(3*time.Second, "HOOKSYNC_NOTIFYHOOK_BACKOFF"),
		"the time to wait before retrying a failed notifyhook")

	// Obsolete flags, kept for compat.
	flDeprecatedToken := pflag.String("token", envString("", "HOOKSYNC_TOKEN"),
		"DEPRECATED: use --security-token instead")
	mustMarkDeprecated("token", "use --security-token instead")

	//
	// Parse and verify flags.  Errors here are fatal.
	//

	pflag.Parse()

	// Handle print-and-exit cases.
	if *flVersion {
		fmt.Println(version.VERSION)
		os.Exit(0)
	}
	if *flHelp {
		pflag.CommandLine.SetOutput(os.Stdout)
		pflag.PrintDefaults()
		os.Exit(0)
	}
	if *flManual {
		printManPage()
		os.Exit(0)
	}

	// Make sure we have a root dir in which to work.
	if *flRoot == "" {
		fmt.Fprintf(os.Stderr, "ERROR: --root must be specified\n")
		os.Exit(1)
	}
	var absRoot absPath
	if abs, err := absPath(*flRoot).Canonical(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: can't absolutize --root: %v\n", err)
		os.Exit(1)
	} else {
		absRoot = abs
	}

	// Init logging very early, so most errors can be written to a file.
	log := func() *logging.Logger {
		dir, file := makeAbsPath(*flErrorFile, absRoot).Split()
		return logging.New(dir.String(), file, *flVerbose)
	}()
	cmdRunner := cmd.NewRunner(log)

	if *flDeprecatedToken != "" && *flSecurityToken == "" {
		// Back-compat
		log.V(0).Info("setting --security-token from deprecated --token")
		*flSecurityToken = *flDeprecatedToken
	}

	if *flSecurityToken != "" && *flSecurityTokenFile != "" {
		handleConfigError(log, true, "ERROR: only one of --security-token and --security-token-file may be specified")
	}

	switch backendMode(*flGitBackend) {
	case backendExec, backendGogit:
	default:
		handleConfigError(log, true, "ERROR: --git-backend must be one of %q or %q", backendExec, backendGogit)
	}

	if *flSyncTimeout < 10*time.Millisecond {
		handleConfigError(log, true, "ERROR: --sync-timeout must be at least 10ms")
	}

	if *flMaxParallel < 0 {
		handleConfigError(log, true, "ERROR: --max-parallel must be greater than or equal to 0")
	}

	if *flReloadhookCommand != "" {
		if *flReloadhookTimeout < time.Second {
			handleConfigError(log, true, "ERROR: --reloadhook-timeout must be at least 1s")
		}
		if *flReloadhookBackoff < time.Second {
			handleConfigError(log, true, "ERROR: --reloadhook-backoff must be at least 1s")
		}
	}

	if *flNotifyhookURL != "" {
		if *flNotifyhookStatusSuccess < 0 {
			handleConfigError(log, true, "ERROR: --notifyhook-success-status must be a valid HTTP code or 0")
		}
		if *flNotifyhookTimeout < time.Second {
			handleConfigError(log, true, "ERROR: --notifyhook-timeout must be at least 1s")
		}
		if *flNotifyhookBackoff < time.Second {
			handleConfigError(log, true, "ERROR: --notifyhook-backoff must be at least 1s")
		}
	}

	if *flHTTPBind == "" {
		handleConfigError(log, true, "ERROR: --http-bind must be specified")
	}

	//
	// From here on, output goes through logging.
	//

	log.V(0).Info("starting up",
		"pid", os.Getpid(),
		"uid", os.Getuid(),
		"gid", os.Getgid(),
		"home", os.Getenv("HOME"),
		"flags", logSafeFlags())

	// Make sure the root exists and is a directory.  hook-sync only updates
	// checkouts which already exist, so a missing root is a config error
	// rather than something to create.
	if fi, err := os.Stat(absRoot.String()); err != nil {
		log.Error(err, "ERROR: can't stat root path", "path", absRoot)
		os.Exit(1)
	} else if !fi.IsDir() {
		handleConfigError(log, false, "ERROR: --root is not a directory: %q", absRoot)
	}
	// Get rid of symlinks in the root path to avoid getting confused about
	// them later.  The path must exist for EvalSymlinks to work.
	if delinked, err := filepath.EvalSymlinks(absRoot.String()); err != nil {
		log.Error(err, "ERROR: can't normalize root path", "path", absRoot)
		os.Exit(1)
	} else {
		absRoot = absPath(delinked)
	}
	if absRoot.String() != *flRoot {
		log.V(0).Info("normalized root path", "root", *flRoot, "result", absRoot)
	}

	// Convert files into absolute paths.
	absTouchFile := makeAbsPath(*flTouchFile, absRoot)

	// Resolve the shared secret.  An empty secret disables authentication.
	secret := *flSecurityToken
	if *flSecurityTokenFile != "" {
		tokenBytes, err := os.ReadFile(*flSecurityTokenFile)
		if err != nil {
			log.Error(err, "ERROR: can't read security token file", "file", *flSecurityTokenFile)
			os.Exit(1)
		}
		secret = strings.TrimRight(string(tokenBytes), "\n")
	}
	if secret == "" {
		log.V(0).Info("no security token configured, webhook authentication is disabled")
	}

	gate := newSyncGate(*flMaxParallel)

	var syncBackend syncer
	if backendMode(*flGitBackend) == backendGogit {
		syncBackend = newGogitSync(*flSyncTimeout, gate, log.WithName("gogit"))
	} else {
		if _, err := exec.LookPath(*flGitCmd); err != nil {
			log.Error(err, "ERROR: git executable not found", "git", *flGitCmd)
			os.Exit(1)
		}

		// Don't pollute the user's .gitconfig if this is being run directly.
		if f, err := os.CreateTemp("", "hook-sync.gitconfig.*"); err != nil {
			log.Error(err, "ERROR: can't create gitconfig file")
			os.Exit(1)
		} else {
			gitConfig := f.Name()
			f.Close()
			os.Setenv("GIT_CONFIG_GLOBAL", gitConfig)
			os.Setenv("GIT_CONFIG_NOSYSTEM", "true")
			log.V(2).Info("created private gitconfig file", "path", gitConfig)
		}

		git := newRepoSync(*flGitCmd, *flSyncTimeout, gate, cmdRunner, log)

		// This context is used only for git config initialization.  There
		// are no long-running operations here, so 30 seconds should be
		// enough.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := git.SetupDefaultGitConfigs(ctx); err != nil {
			log.Error(err, "can't set default git configs")
			os.Exit(1)
		}
		cancel()

		syncBackend = git
	}

	// This context owns the trigger runner goroutines.  It is canceled
	// during shutdown, after the HTTP server has drained.
	runnerCtx, stopRunners := context.WithCancel(context.Background())
	defer stopRunners()

	triggers := []trigger{}

	// Startup touchhook goroutine
	if absTouchFile != "" {
		log := log.WithName("touchhook")
		touchhook := hook.NewTouchhook(absTouchFile.String(), log)
		touchhookRunner := hook.NewHookRunner(
			touchhook,
			time.Second,
			hook.NewHookData(),
			log,
		)
		go touchhookRunner.Run(runnerCtx)
		triggers = append(triggers, touchhookRunner)
	}

	// Startup reloadhook goroutine
	if *flReloadhookCommand != "" {
		log := log.WithName("reloadhook")
		reloadhook := hook.NewExechook(
			cmd.NewRunner(log),
			*flReloadhookCommand,
			func(path string) string {
				return absRoot.Join(path).String()
			},
			[]string{},
			*flReloadhookTimeout,
			log,
		)
		reloadhookRunner := hook.NewHookRunner(
			reloadhook,
			*flReloadhookBackoff,
			hook.NewHookData(),
			log,
		)
		go reloadhookRunner.Run(runnerCtx)
		triggers = append(triggers, reloadhookRunner)
	}

	// Startup notifyhook goroutine
	if *flNotifyhookURL != "" {
		log := log.WithName("notifyhook")
		notifyhook := hook.NewNotifyhook(
			*flNotifyhookURL,
			*flNotifyhookMethod,
			*flNotifyhookStatusSuccess,
			*flNotifyhookTimeout,
			log,
		)
		notifyhookRunner := hook.NewHookRunner(
			notifyhook,
			*flNotifyhookBackoff,
			hook.NewHookData(),
			log,
		)
		go notifyhookRunner.Run(runnerCtx)
		triggers = append(triggers, notifyhookRunner)
	}

	webhook := newWebhookServer(absRoot, secret, syncBackend, triggers, log.WithName("webhook"))

	ln, err := net.Listen("tcp", *flHTTPBind)
	if err != nil {
		log.Error(err, "can't bind HTTP endpoint", "endpoint", *flHTTPBind)
		os.Exit(1)
	}
	mux := http.NewServeMux()
	reasons := []string{"webhook"}

	// This is a dumb liveness check endpoint.  Currently this checks
	// nothing and will always return 200 if the process is live.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	reasons = append(reasons, "liveness")

	if *flHTTPMetrics {
		mux.Handle("/metrics", promhttp.Handler())
		reasons = append(reasons, "metrics")
	}

	if *flHTTPprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		reasons = append(reasons, "pprof")
	}

	// The webhook surface dispatches on the raw path, ahead of the mux, so
	// traversal attempts reach validation instead of ServeMux's redirects.
	srv := &http.Server{Handler: webhookMux(webhook, mux)}
	go func() {
		err := srv.Serve(ln)
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "HTTP server terminated")
			os.Exit(1)
		}
	}()
	log.V(0).Info("serving HTTP", "endpoint", *flHTTPBind, "reasons", reasons)

	// Run until we are told to stop, then drain in-flight requests.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.V(0).Info("caught signal, shutting down", "signal", unix.SignalName(sig.(syscall.Signal)))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "HTTP server shutdown did not complete")
	}
	stopRunners()
	log.DeleteErrorFile()
	log.V(0).Info("exiting", "status", 0)
	os.Exit(0)
}

// mustMarkDeprecated is a helper around pflag.CommandLine.MarkDeprecated.
// It panics if there is an error (as these indicate a coding issue).
// This makes it easier to keep the linters happy.
func mustMarkDeprecated(name string, usageMessage string) {
	err := pflag.CommandLine.MarkDeprecated(name, usageMessage)
	if err != nil {
		panic(fmt.Sprintf("error marking flag %q as deprecated: %v", name, err))
	}
}

// makeAbsPath makes an absolute path from a path which might be absolute
// or relative.  If the path is already absolute, it will be used.  If it is
// not absolute, it will be joined with the provided root. If the path is
// empty, the result will be empty.
func makeAbsPath(path string, root absPath) absPath {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return absPath(path)
	}
	return root.Join(path)
}

const redactedString = "REDACTED"

func redactURL(urlstr string) string {
	u, err := url.Parse(urlstr)
	if err != nil {
		return err.Error()
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), redactedString)
	}
	return u.String()
}

// logSafeFlags makes sure any sensitive args (e.g. tokens) are redacted
// before logging.  This returns a slice rather than a map so it is always
// sorted.
func logSafeFlags() []string {
	ret := []string{}
	pflag.VisitAll(func(fl *pflag.Flag) {
		arg := fl.Name
		val := fl.Value.String()

		// Handle --security-token and --token
		if arg == "security-token" || arg == "token" {
			val = redactedString
		}
		// Handle credentials embedded in --notifyhook-url
		if arg == "notifyhook-url" {
			val = redactURL(val)
		}
		// Don't log empty values
		if val == "" {
			return
		}

		ret = append(ret, "--"+arg+"="+val)
	})
	return ret
}

func updateSyncMetrics(key string, start time.Time) {
	metricSyncDuration.WithLabelValues(key).Observe(time.Since(start).Seconds())
	metricSyncCount.WithLabelValues(key).Inc()
}

// handleConfigError prints the error to the standard error, prints the usage
// if the `printUsage` flag is true, exports the error to the error file and
// exits the process with the exit code.
func handleConfigError(log *logging.Logger, printUsage bool, format string, a ...interface{}) {
	s := fmt.Sprintf(format, a...)
	fmt.Fprintln(os.Stderr, s)
	if printUsage {
		pflag.Usage()
	}
	log.ExportError(s)
	os.Exit(1)
}
