package cli

// This file contains the list command for displaying previous sessions.

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hostrun/hostrun/history"
	"github.com/hostrun/hostrun/model"
)

func (a *App) list(ctx *cli.Context) error {
	filterPath := ctx.String("path")
	limit := ctx.Int("limit")

	root, err := history.Root()
	if err != nil {
		return err
	}

	entries, err := history.LoadEntries(a.logger, root)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	// Apply path filter if specified
	var filtered []history.Entry
	for _, entry := range entries {
		if filterPath == "" || strings.Contains(entry.History.WorkDir, filterPath) {
			filtered = append(filtered, entry)
		}
	}

	if len(filtered) == 0 {
		if filterPath != "" {
			fmt.Printf("No sessions found matching path: %s\n", filterPath)
		} else {
			fmt.Println("No sessions found")
		}
		return nil
	}

	// Sort by timestamp (newest first)
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].History.Timestamp.After(filtered[j].History.Timestamp)
	})

	display := filtered
	if limit > 0 && limit < len(display) {
		display = display[:limit]
	}

	fmt.Printf("\n=== Sessions (%d total) ===\n\n", len(filtered))

	for _, entry := range display {
		h := entry.History
		timestamp := h.Timestamp.Format("2006-01-02 15:04:05")
		duration := h.Duration.Round(time.Millisecond)

		status := "✓"
		if h.ExitCode != 0 || h.Summary.Failed+h.Summary.Errored > 0 {
			status = "✗"
		}

		shortID := h.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		fmt.Printf("%s  %s  [%s]  exit=%d  id=%s\n", status, timestamp, duration, h.ExitCode, shortID)
		fmt.Printf("   Tests: %d requested, %d passed, %d failed, %d errored, %d skipped\n",
			h.Requested, h.Summary.Passed, h.Summary.Failed, h.Summary.Errored, h.Summary.Skipped)
		if len(h.HostCommand) > 0 {
			fmt.Printf("   Host: %s\n", strings.Join(h.HostCommand, " "))
		}
		if h.WorkDir != "" {
			fmt.Printf("   Path: %s\n", h.WorkDir)
		}
		if h.Git != nil && h.Git.Commit != "" {
			shortCommit := h.Git.Commit
			if len(shortCommit) > 8 {
				shortCommit = shortCommit[:8]
			}
			fmt.Printf("   Commit: %s", shortCommit)
			if h.Git.Branch != "" {
				fmt.Printf(" (%s)", h.Git.Branch)
			}
			fmt.Println()
		}
		for _, artifact := range h.Artifacts {
			var typeName string
			switch artifact.Type {
			case model.ArtifactTypeOutput:
				typeName = "output"
			case model.ArtifactTypeCoverage:
				typeName = "coverage"
			}
			if typeName != "" {
				fmt.Printf("   %s: %s (%.1f KB)\n", typeName, artifact.File, float64(artifact.Size)/1024)
			}
		}
		fmt.Printf("   %s\n", entry.FullPath)
		fmt.Println()
	}

	fmt.Println("\nView session output: cat <path>/output.txt")

	return nil
}
