package cli

// This file contains the run command: it wires configuration, the console
// reporter and history recording around one test-host session.

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hostrun/hostrun/config"
	"github.com/hostrun/hostrun/history"
	"github.com/hostrun/hostrun/model"
	"github.com/hostrun/hostrun/session"
)

// removeFirstDashDash drops a leading "--" separating hostrun flags from
// the host command.
func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

func (a *App) run(ctx *cli.Context) error {
	startTime := time.Now()

	dir := ctx.String("dir")
	if dir == "" {
		dir = "."
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	hostCmd := removeFirstDashDash(ctx.Args().Slice())
	if len(hostCmd) == 0 {
		hostCmd = cfg.Host
	}
	if len(hostCmd) == 0 {
		return fmt.Errorf("no host command: pass it after --, or set \"host\" in %s", config.FileName)
	}

	ids := ctx.StringSlice("id")
	if len(ids) == 0 {
		ids = cfg.IDs
	}
	if len(ids) == 0 {
		return fmt.Errorf("no test identities: pass --id, or set \"ids\" in %s", config.FileName)
	}

	// Generate random 16-byte session ID
	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return fmt.Errorf("failed to generate session ID: %w", err)
	}
	runID := hex.EncodeToString(idBytes)

	hist := &model.History{
		ID:          runID,
		Timestamp:   startTime,
		Args:        os.Args,
		HostCommand: hostCmd,
		Requested:   len(ids),
		Coverage:    ctx.Bool("coverage"),
	}
	if abs, err := filepath.Abs(dir); err == nil {
		hist.WorkDir = abs
	}

	// Capture git info (non-fatal if it fails)
	if commit, branch, err := a.getGitInfo(); err == nil {
		hist.Git = &model.Git{
			Commit: commit,
			Branch: branch,
		}
	}

	runCtx := ctx.Context
	if timeout := ctx.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}

	// The console is the reporting surface; handles are the identities
	// themselves.
	reporter := newConsoleReporter(os.Stdout)
	handles := make(map[string]session.Handle, len(ids))
	for _, id := range ids {
		handles[id] = id
	}

	sess, err := session.New(session.Options{
		Command:  hostCmd,
		Dir:      dir,
		Env:      config.Environ(cfg, ctx.Bool("coverage")),
		IDs:      ids,
		Handles:  handles,
		Reporter: reporter,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}

	a.logger.Info().Int("tests", len(ids)).Msg("Starting test session")
	outcome := sess.Run(runCtx)

	hist.ExitCode = outcome.ExitCode
	hist.Duration = sess.Duration()
	hist.Summary = reporter.Summary()

	// Record the session (non-fatal if it fails)
	if !ctx.Bool("no-record") {
		if _, err := history.Record(a.logger, hist, reporter.Output(), reporter.Coverage()); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to record session")
		}
	}

	summary := reporter.Summary()
	if !outcome.Success() {
		return fmt.Errorf("test host exited with code %d", outcome.ExitCode)
	}
	if failed := summary.Failed + summary.Errored; failed > 0 {
		return fmt.Errorf("%d of %d tests failed", failed, summary.Total())
	}

	a.logger.Info().Msg("Tests completed successfully")
	return nil
}
