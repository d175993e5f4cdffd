// Package pid1 turns the process into a minimal init when it comes up as
// PID 1 in a container, so orphaned children get reaped.
package pid1

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
)

// ReRun converts the current process into a bare-bones init, runs the current
// commandline as a child process, and waits for it to complete.  The new
// child process shares stdin/stdout/stderr with the parent.  When the child
// exits, this returns the child's exit code.  If there is an error in reaping
// children that this can not handle, it will panic.
func ReRun() (int, error) {
	bin, err := os.Readlink("/proc/self/exe")
	if err != nil {
		return 0, err
	}
	cmd := exec.Command(bin, os.Args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	return runInit(cmd.Process.Pid), nil
}

// runInit runs a bare-bones init process.  This returns the exit status of
// firstborn when it exits.  In case of truly unknown errors it will panic.
func runInit(firstborn int) int {
	sigs := make(chan os.Signal, 8)
	signal.Notify(sigs)
	for sig := range sigs {
		if sig != syscall.SIGCHLD {
			// Pass it on to the real process.
			_ = syscall.Kill(firstborn, sig.(syscall.Signal))
		}
		// Always try to reap a child - empirically, sometimes this gets
		// missed.
		if done, status := reap(firstborn); done {
			return status
		}
	}
	return 0
}

// reap waits for exited children without blocking.  This returns true and
// the exit status when firstborn exits.  In case of truly unknown errors it
// will panic.
func reap(firstborn int) (bool, int) {
	// Loop to handle multiple child processes.
	for {
		var status syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &status, syscall.WNOHANG, nil)
		if errors.Is(err, syscall.ECHILD) {
			// No children exist at all.
			return false, 0
		}
		if err != nil {
			panic(fmt.Sprintf("failed to wait4(): %v\n", err))
		}

		if pid == firstborn {
			return true, status.ExitStatus()
		}
		if pid <= 0 {
			// No more children to reap.
			return false, 0
		}
		// Must have found one, see if there are more.
	}
}
