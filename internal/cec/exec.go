package cec

import (
	"os/exec"
	"syscall"
	"time"
)

// runShell forks /bin/sh -c with the command's shell string and services
// the reentrant queue until the child exits. Only connect, disconnect,
// reconnect and exit are honoured during this window; everything else
// stays on the frozen normal queue.
//
// The child runs in its own session so it survives engine shutdown and
// never holds the controlling terminal. os/exec passes only stdio to the
// child, so the adapter's descriptors cannot leak into it.
func (e *Engine) runShell(c Command) {
	cmd := exec.Command("/bin/sh", "-c", c.Shell)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		e.logError("failed to start shell command", err, "shell", c.Shell)
		return
	}
	e.logDebug("shell command started", "pid", cmd.Process.Pid, "shell", c.Shell)

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	e.inExec.Store(true)
	defer e.inExec.Store(false)

	for {
		rc, ok := e.waitExec(exited)
		if !ok {
			// Child exited; equivalent to a synthesized exit.
			return
		}
		done := e.dispatchExec(rc)
		e.finish(rc)
		if done {
			return
		}
	}
}

// waitExec returns the next reentrant command, or ok=false once the
// child has exited. Each wait is bounded by execPollInterval.
func (e *Engine) waitExec(exited <-chan error) (Command, bool) {
	for {
		if c, ok := e.exec.pop(); ok {
			return c, true
		}
		select {
		case <-e.exec.signal:
		case err := <-exited:
			if err != nil {
				e.logDebug("shell command exited", "error", err)
			} else {
				e.logDebug("shell command exited")
			}
			return Command{}, false
		case <-time.After(e.execPollInterval):
		}
	}
}

// dispatchExec handles the restricted command subset allowed while a
// shell command is running. Returns true when the nested loop must end.
func (e *Engine) dispatchExec(c Command) bool {
	e.logDebug("dispatch during exec", "kind", c.Kind.String(), "serial", c.Serial)

	switch c.Kind {
	case KindConnect:
		e.connect()
	case KindDisconnect:
		e.disconnect()
	case KindReconnect:
		e.reconnect()
	case KindExit:
		return true
	default:
		e.logWarn("command not allowed while shell command is running",
			"kind", c.Kind.String())
	}
	return false
}
