package session

// This file contains the process controller that owns the test-host
// subprocess for one session: startup, stream wiring, cancellation,
// abnormal-exit detection and the skip-remaining epilogue.

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"al.essio.dev/pkg/shellescape"
	"code.cloudfoundry.org/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hostrun/hostrun/model"
	"github.com/hostrun/hostrun/protocol"
)

// Options configures one session. Command, IDs and Reporter are required.
type Options struct {
	// Command is the host executable and its arguments
	Command []string
	// Dir is the host's working directory; empty means the current one
	Dir string
	// Env is the full environment for the host, nil to inherit
	Env []string
	// IDs are the test identities to run, in request order
	IDs []string
	// Handles maps each identity to the caller's opaque test handle
	Handles map[string]Handle
	// Reporter receives all per-test and run-level results
	Reporter Reporter
	// Logger for engine diagnostics; results never go through it
	Logger zerolog.Logger
	// Clock for session timing; defaults to the wall clock
	Clock clock.Clock
}

// Session runs one test-host subprocess to completion. A session is
// single-use: create it, call Run once, and optionally Dispose to tear the
// host down early.
type Session struct {
	opts    Options
	logger  zerolog.Logger
	clk     clock.Clock
	machine *machine

	mu       sync.Mutex
	cmd      *exec.Cmd
	disposed bool
	duration time.Duration
}

// New validates opts and creates a session with every requested identity
// pending.
func New(opts Options) (*Session, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("session: no host command")
	}
	if opts.Reporter == nil {
		return nil, errors.New("session: no reporter")
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewClock()
	}
	return &Session{
		opts:    opts,
		logger:  opts.Logger,
		clk:     opts.Clock,
		machine: newMachine(opts.Logger, opts.Reporter, opts.IDs, opts.Handles),
	}, nil
}

// Run executes the session to completion and returns its outcome. Run
// never returns an error: abnormal exits, spawn failures and cancellation
// all surface through the outcome, the output channel and the reported
// test states. Every requested identity receives exactly one terminal
// state before Run returns; identities the host never finished are
// reported skipped. Cancelling ctx kills the host, which then flows
// through the normal abnormal-exit path.
func (s *Session) Run(ctx context.Context) model.Outcome {
	start := s.clk.Now()

	outcome := s.execute(ctx)
	if !outcome.Success() {
		s.logger.Warn().Err(outcome.Err).Int("exit_code", outcome.ExitCode).Msg("Test host session failed")
	}

	// Epilogue: whatever the host left behind is skipped, then the run is
	// finalized. This runs on every path, including spawn failure.
	s.machine.skipRemaining()
	s.machine.end()

	s.mu.Lock()
	s.duration = s.clk.Since(start)
	s.mu.Unlock()
	return outcome
}

// Duration reports how long Run took, once it has returned.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Session) execute(ctx context.Context) model.Outcome {
	cmd := exec.CommandContext(ctx, s.opts.Command[0], s.opts.Command[1:]...)
	cmd.Dir = s.opts.Dir
	cmd.Env = s.opts.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return s.spawnFailure(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.spawnFailure(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return s.spawnFailure(err)
	}

	s.logger.Debug().
		Str("command", shellescape.QuoteCommand(s.opts.Command)).
		Str("dir", s.opts.Dir).
		Int("tests", len(s.opts.IDs)).
		Msg("Starting test host")

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return s.spawnFailure(errors.New("session disposed before start"))
	}
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return s.spawnFailure(err)
	}
	s.cmd = cmd
	s.mu.Unlock()

	// closeInput is triggered by the host's finished event; it also runs
	// unconditionally once both streams drain, so a host that never says
	// finished still sees its stdin close.
	var closeOnce sync.Once
	closeInput := func() {
		closeOnce.Do(func() {
			if err := stdin.Close(); err != nil {
				s.logger.Debug().Err(err).Msg("Failed to close host stdin")
			}
		})
	}
	s.machine.setCloseInput(closeInput)

	// The run request goes out immediately after start, naming the
	// identities in the order supplied.
	if err := protocol.WriteRunRequest(stdin, s.opts.IDs); err != nil {
		s.machine.appendFreeText("failed to send run request: " + err.Error())
	}

	var g errgroup.Group
	g.Go(func() error {
		dec := protocol.NewDecoder(stdout, s.logger)
		for {
			ev, err := dec.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				s.machine.appendFreeText("error reading test host output: " + err.Error())
				return nil
			}
			s.machine.apply(ev)
		}
	})
	g.Go(func() error {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.machine.appendFreeText(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			s.machine.appendFreeText("error reading test host stderr: " + err.Error())
		}
		return nil
	})
	_ = g.Wait()
	closeInput()

	waitErr := cmd.Wait()
	code := 0
	if waitErr != nil {
		code = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
	}
	s.machine.appendFreeText(fmt.Sprintf("test host exited with code %d", code))
	return model.Outcome{ExitCode: code, Err: waitErr}
}

// spawnFailure records a process-level startup error. The session still
// runs its epilogue, so every pending test ends up skipped.
func (s *Session) spawnFailure(err error) model.Outcome {
	s.machine.appendFreeText("failed to start test host: " + err.Error())
	return model.Outcome{ExitCode: -1, Err: err}
}

// Dispose forcibly terminates the host. It is idempotent and safe to call
// at any point: terminating an already-exited host is a no-op, and a
// session disposed before Run refuses to start the host at all.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Debug().Err(err).Msg("Failed to kill test host")
	}
}
