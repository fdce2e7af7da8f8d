package lims

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/benchlab/benchtop/internal/catalog"
)

// maxOutputBytes caps how much of a program's stdout/stderr is captured and
// recorded (10MB per stream).
const maxOutputBytes = 10 * 1024 * 1024

// ProgramOutput is everything recorded about one external program run:
// the argument vector, the process ID, the exit code, and the captured
// output streams. Streams redirected to files with WithStdoutFile or
// WithStderrFile are empty here.
type ProgramOutput struct {
	Arguments  []string
	Pid        int
	ReturnCode int
	Stdout     string
	Stderr     string
}

// RunOption adjusts how a program is run.
type RunOption func(*runConfig)

type runConfig struct {
	stdoutFile string
	stderrFile string
	stdin      io.Reader
}

// WithStdoutFile writes the program's standard output to a file (resolved
// relative to the working directory) instead of capturing it. For programs
// that only write results to stdout.
func WithStdoutFile(path string) RunOption {
	return func(c *runConfig) { c.stdoutFile = path }
}

// WithStderrFile writes the program's standard error to a file instead of
// capturing it.
func WithStderrFile(path string) RunOption {
	return func(c *runConfig) { c.stderrFile = path }
}

// WithStdin feeds the program's standard input from r.
func WithStdin(r io.Reader) RunOption {
	return func(c *runConfig) { c.stdin = r }
}

// Run executes an external program in the working directory and blocks
// until it finishes. The invocation is recorded on the execution (argument
// vector, pid, exit code, captured streams) whether it succeeds or not.
// A program that cannot start or exits non-zero fails with PROGRAM_FAILED;
// the returned ProgramOutput is populated in both cases.
func (e *Execution) Run(ctx context.Context, args []string, opts ...RunOption) (*ProgramOutput, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty argument vector")
	}

	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	e.mu.Lock()
	if e.state != StatusRunning {
		e.mu.Unlock()
		return nil, newError(ErrAlreadyTerminal, "execution %s is %s", e.id, e.state)
	}
	seq := e.programSeq
	e.programSeq++
	workDir := e.workDir
	e.mu.Unlock()

	out := &ProgramOutput{Arguments: args}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = workDir
	if cfg.stdin != nil {
		cmd.Stdin = cfg.stdin
	}

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	var files []*os.File

	if cfg.stdoutFile != "" {
		f, err := e.createRedirect(workDir, cfg.stdoutFile)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
		cmd.Stdout = f
	} else {
		cmd.Stdout = &limitedWriter{w: stdoutBuf, limit: maxOutputBytes}
	}
	if cfg.stderrFile != "" {
		f, err := e.createRedirect(workDir, cfg.stderrFile)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
		cmd.Stderr = f
	} else {
		cmd.Stderr = &limitedWriter{w: stderrBuf, limit: maxOutputBytes}
	}

	runErr := cmd.Start()
	if runErr == nil {
		out.Pid = cmd.Process.Pid
		runErr = cmd.Wait()
	}
	for _, f := range files {
		f.Close()
	}

	out.Stdout = stdoutBuf.String()
	out.Stderr = stderrBuf.String()

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			out.ReturnCode = exitErr.ExitCode()
		} else {
			// The program could not be started at all.
			out.ReturnCode = -1
		}
	}

	// The report goes into the catalog regardless of the outcome; failed
	// runs are exactly the ones worth coming back to.
	if err := e.recordProgram(ctx, seq, out); err != nil {
		e.logger.Warn("failed to record program run", zap.Error(err))
	}

	if runErr != nil {
		return out, newError(ErrProgramFailed, "%s exited with code %d",
			args[0], out.ReturnCode).withCause(runErr)
	}
	return out, nil
}

// createRedirect opens a stream-redirect target inside the working directory.
func (e *Execution) createRedirect(workDir, path string) (*os.File, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create redirect target %s: %w", path, err)
	}
	return f, nil
}

// recordProgram persists one program report under the repository lock.
func (e *Execution) recordProgram(ctx context.Context, seq int, out *ProgramOutput) error {
	argsJSON, err := json.Marshal(out.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}

	e.repo.mu.Lock()
	defer e.repo.mu.Unlock()
	if e.repo.closed {
		return fmt.Errorf("repository is closed")
	}
	return e.repo.catalog.AddProgramRun(ctx, &catalog.ProgramRun{
		ExecutionID: string(e.id),
		Seq:         seq,
		Arguments:   string(argsJSON),
		Pid:         out.Pid,
		ReturnCode:  out.ReturnCode,
		Stdout:      out.Stdout,
		Stderr:      out.Stderr,
	})
}

// Future is the handle returned by Go. Wait blocks until the program
// finishes and returns exactly what a direct Run call would have.
type Future struct {
	done chan struct{}
	out  *ProgramOutput
	err  error
}

// Wait blocks until the program finishes. Safe to call from any goroutine;
// repeated calls return the same result.
func (f *Future) Wait() (*ProgramOutput, error) {
	<-f.done
	return f.out, f.err
}

// Go starts a program without blocking, so several can run in parallel
// inside one execution. The report is recorded when the program finishes.
//
//	a := ex.Go(ctx, []string{"sort", "left.txt", "-o", "left.sorted"})
//	b := ex.Go(ctx, []string{"sort", "right.txt", "-o", "right.sorted"})
//	if _, err := a.Wait(); err != nil { ... }
//	if _, err := b.Wait(); err != nil { ... }
//
// All futures must be waited on before the execution is committed or
// failed.
func (e *Execution) Go(ctx context.Context, args []string, opts ...RunOption) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.out, f.err = e.Run(ctx, args, opts...)
	}()
	return f
}

// limitedWriter caps how many bytes reach the underlying writer; overflow
// is discarded rather than failing the program.
type limitedWriter struct {
	w       io.Writer
	limit   int
	written int
}

func (lw *limitedWriter) Write(p []byte) (n int, err error) {
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return len(p), nil
	}
	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
	}
	n, err = lw.w.Write(toWrite)
	lw.written += n
	return len(p), err
}
