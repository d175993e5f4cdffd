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

import "fmt"

// This string should be formatted to render well on a standard terminal.
// In particular: keep it to 80 columns and NO TABS.
var manual = `
HOOK-SYNC

NAME
    hook-sync - update local git checkouts when deployment webhooks arrive

SYNOPSIS
    hook-sync --root=<path> [OPTIONS]...

DESCRIPTION

    Serve an HTTP endpoint which triggers git synchronization of checkouts
    under a root directory.  When a webhook for a repository arrives,
    hook-sync discards local changes in that repository's working tree
    (reset, clean), fast-forwards it to its remote (pull), and then fires
    the configured reload triggers so serving processes pick up the new
    code.

    hook-sync is the receiving half of "push to deploy".  A git host or CI
    system POSTs to /webhook/<path> after a push; <path> names a directory
    under --root which holds a git checkout.  hook-sync never clones: a
    webhook naming a directory which does not exist is an error.

    Reload triggers are coalesced.  Any number of updates which land while
    a trigger is still running collapse into a single follow-up firing, so
    a burst of pushes restarts the application once, not once per push.

OPTIONS

    Many options can be specified as either a commandline flag or an
    environment variable, but flags are preferred because a misspelled flag
    is a fatal error while a misspelled environment variable is silently
    ignored.

    --error-file <string>, $HOOKSYNC_ERROR_FILE
            The path to an optional file into which errors will be written.
            This may be an absolute path or a relative path, in which case
            it is relative to --root.

    --git <string>, $HOOKSYNC_GIT
            The git command to run (subject to PATH search, mostly for
            testing).  This defaults to "git".  This is only used by the
            "exec" backend (see --git-backend).

    --git-backend <string>, $HOOKSYNC_GIT_BACKEND
            How git operations are run: one of "exec" or "gogit".  If not
            specified, this defaults to "exec".

            - exec: Shell out to the git binary named by --git.  This
              honors whatever credentials, transports, and config the host
              git installation has.
            - gogit: Run git operations in-process.  This needs no git
              binary, but remote authentication support is limited.

    -h, --help
            Print help text and exit.

    --http-bind <string>, $HOOKSYNC_HTTP_BIND
            The bind address (including port) for hook-sync's HTTP
            endpoint.  The '/' URL of this endpoint always returns a 200
            status while the process is serving, which is suitable for
            liveness probes.  If not specified, this defaults to ":5123".

            Examples:
              ":5123": listen on any IP, port 5123
              "127.0.0.1:5123": listen on localhost, port 5123

    --http-metrics, $HOOKSYNC_HTTP_METRICS
            Enable prometheus metrics on hook-sync's HTTP endpoint at
            /metrics.

    --http-pprof, $HOOKSYNC_HTTP_PPROF
            Enable the pprof debug endpoints on hook-sync's HTTP endpoint
            at /debug/pprof.

    --man
            Print this manual and exit.

    --max-parallel <int>, $HOOKSYNC_MAX_PARALLEL
            The maximum number of git syncs allowed to run at once.  Syncs
            of the same directory are always serialized; this bounds syncs
            of different directories.  If not specified, this defaults to
            0, meaning no limit.

    --notifyhook-backoff <duration>, $HOOKSYNC_NOTIFYHOOK_BACKOFF
            The time to wait before retrying a failed --notifyhook-url.  If
            not specified, this defaults to 3 seconds ("3s").

    --notifyhook-method <string>, $HOOKSYNC_NOTIFYHOOK_METHOD
            The HTTP method for the --notifyhook-url.  If not specified,
            this defaults to "POST".

    --notifyhook-success-status <int>, $HOOKSYNC_NOTIFYHOOK_SUCCESS_STATUS
            The HTTP status code indicating a successful --notifyhook-url.
            Setting this to 0 disables success checks, which makes
            notifyhooks "fire-and-forget".  If not specified, this defaults
            to 200.

    --notifyhook-timeout <duration>, $HOOKSYNC_NOTIFYHOOK_TIMEOUT
            The timeout for the --notifyhook-url.  If not specified, this
            defaults to 1 second ("1s").

    --notifyhook-url <string>, $HOOKSYNC_NOTIFYHOOK_URL
            A URL for optional notifications when a repository updates.
            The header 'Hooksync-Path' will be set to the repository path
            that was updated.  Notifyhooks can be invoked more than one
            time per update, so they must be idempotent.

    --reloadhook-backoff <duration>, $HOOKSYNC_RELOADHOOK_BACKOFF
            The time to wait before retrying a failed --reloadhook-command.
            If not specified, this defaults to 3 seconds ("3s").

    --reloadhook-command <string>, $HOOKSYNC_RELOADHOOK_COMMAND
            An optional command to be executed after a repository updates.
            This command does not take any arguments and executes with the
            updated checkout as its working directory.  The $HOOKSYNC_PATH
            environment variable will be set to the repository path that
            was updated.  Reloadhooks can be invoked more than one time per
            update, so they must be idempotent.

    --reloadhook-timeout <duration>, $HOOKSYNC_RELOADHOOK_TIMEOUT
            The timeout for the --reloadhook-command.  If not specified,
            this defaults to 30 seconds ("30s").

    --root <string>, $HOOKSYNC_ROOT
            The root directory under which the managed repositories live
            (required).  Webhook paths are resolved against this directory,
            and requests which would escape it are rejected.  The root must
            exist and be a directory.

    --security-token <string>, $HOOKSYNC_SECURITY_TOKEN
            The token which webhook callers must present in the
            X-Security-Token request header.  If neither this nor
            --security-token-file is specified, authentication is disabled
            and any caller can trigger syncs.  NOTE: for security reasons,
            users should prefer --security-token-file or
            $HOOKSYNC_SECURITY_TOKEN for specifying the token.

    --security-token-file <string>, $HOOKSYNC_SECURITY_TOKEN_FILE
            The file from which the webhook security token will be read.
            A trailing newline is trimmed.

    --sync-timeout <duration>, $HOOKSYNC_SYNC_TIMEOUT
            The total time allowed for one complete sync (reset, clean, and
            pull together).  This must be at least 10ms.  If not specified,
            this defaults to 120 seconds ("120s").

    --touch-file <string>, $HOOKSYNC_TOUCH_FILE
            The path to a file which will be touched whenever a repository
            updates.  This may be an absolute path or a relative path, in
            which case it is relative to --root.  Process supervisors can
            watch this file to know when to restart the application.  If
            not specified, this defaults to "/tmp/webhook_restart_trigger".
            Setting this to "" disables the touch trigger.

    -v, --verbose <int>
            Set the log verbosity level.  Logs at this level and lower will
            be printed.  Logs follow these guidelines:

            - 0: Minimal, just log updates
            - 1: More details about updates
            - 2: Log the sync steps
            - 5: Log all executed commands
            - 6: Log stdout/stderr of all executed commands
            - 9: Tracing and debug messages, including presented tokens

    --version
            Print the version and exit.

EXAMPLE USAGE

    hook-sync \
        --root=/srv/sites \
        --security-token-file=/etc/hook-sync/token \
        --http-bind=:5123

    With the daemon running, a push handler can deploy /srv/sites/blog:

        curl -X POST \
            -H "X-Security-Token: $(cat /etc/hook-sync/token)" \
            http://localhost:5123/webhook/blog

WEBHOOK API

    hook-sync exposes a single deployment endpoint:

        POST /webhook/<path>

    <path> names a directory under --root holding a git checkout, and may
    contain slashes (e.g. "blog" or "customers/acme").  If a security token
    is configured, the request must carry it in the X-Security-Token
    header.

    Every response is JSON of the form:

        {"status": "success|error", "message": "..."}

    with one of the following status codes:

        200  the checkout was updated and reload triggers were signaled
             (message "Repository updated")
        400  the path is empty, contains forbidden characters or "..", or
             escapes the root (message "Invalid repository path")
        401  the X-Security-Token header is missing or wrong
             (message "Unauthorized")
        404  the named directory does not exist
             (message "Repository not found")
        405  the request method is not POST
             (message "Method not allowed")
        500  a git operation failed; the message carries the git
             diagnostic (message "Git operation failed: ...")

    The checks run in that order: authentication first, then path
    validation, and only then any filesystem access.  Requests for the same
    directory are serialized, so concurrent webhooks cannot run git
    operations over each other.

    Each response carries an X-Request-Id header, echoed from the request
    if present, for correlating client retries with server logs.

HOOKS

    Reload triggers run asynchronously from the webhook handler.  A 200
    response means the checkout was updated and the triggers were
    signaled, not that they have finished.  Three triggers are available:

    touch-file
            The file named by --touch-file is touched (created if needed,
            else its timestamps are updated).

    reloadhook
            The command named by --reloadhook-command is exec()'ed.

    notifyhook
            An HTTP request is sent to --notifyhook-url using the method
            defined in --notifyhook-method.

    hook-sync retries a failing trigger until it succeeds (exit code 0 for
    reloadhooks, --notifyhook-success-status for notifyhooks), waiting
    --reloadhook-backoff or --notifyhook-backoff (as appropriate) between
    attempts.  Updates which land while a trigger is running are coalesced:
    the trigger fires once more, for the newest update.  hook-sync does not
    ensure that triggers are invoked exactly once per update, so they must
    be idempotent.
`

func printManPage() {
	fmt.Print(manual)
}
