// Package runner invokes external programs and captures how they exited.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// stderrTail bounds how much of a command's stderr is kept in its Result.
const stderrTail = 4096

// Command is a program and its arguments.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
}

// New is shorthand for building a Command.
func New(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result records how a command finished.
type Result struct {
	Command  Command
	ExitCode int
	Stderr   string
	Elapsed  time.Duration
	// Start is set when the program could not be run at all.
	Start error
}

// Err returns nil if the command exited zero, and a *CommandError otherwise.
func (r Result) Err() error {
	if r.Start == nil && r.ExitCode == 0 {
		return nil
	}
	return &CommandError{Command: r.Command, ExitCode: r.ExitCode, Stderr: r.Stderr, Cause: r.Start}
}

// CommandError is returned for a command that failed to start or exited
// non-zero.
type CommandError struct {
	Command  Command
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *CommandError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Command.Name, e.Cause)
	}
	msg := fmt.Sprintf("%s exited with status %d", e.Command.Name, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + lastLine(stderr)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Runner runs commands to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) Result
}

// Exec runs commands as child processes. Output is passed through to Stdout
// and Stderr (the process's own streams when nil).
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run echoes the command line, then runs it and waits for it to exit.
func (e Exec) Run(ctx context.Context, c Command) Result {
	log.Infof("running command: %s", c)

	stdout, stderr := e.Stdout, e.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	tail := &tailBuffer{max: stderrTail}
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, tail)

	start := time.Now()
	err := cmd.Run()
	res := Result{Command: c, Elapsed: time.Since(start), Stderr: tail.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		res.Start = err
	}
	log.WithField("command", c.Name).WithField("exit", res.ExitCode).Debug("Command finished")
	return res
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > t.max {
		p = p[len(p)-t.max:]
	}
	if over := t.buf.Len() + len(p) - t.max; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}

// FormatElapsed renders d as HHhMMmSSs, truncated to whole seconds.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02dh%02dm%02ds", secs/3600, secs/60%60, secs%60)
}
