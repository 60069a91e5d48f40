// Package history records and loads hostrun session history.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hostrun/hostrun/model"
	"github.com/rs/zerolog"
)

// Entry is one recorded session together with its directory on disk.
type Entry struct {
	History  model.History
	FullPath string
}

// Root returns the .hostrun directory path from the git repository root.
func Root() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not in a git repository: %w", err)
	}
	repoRoot := strings.TrimSpace(string(output))
	root := filepath.Join(repoRoot, ".hostrun")

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return "", fmt.Errorf("no sessions found in %s", root)
	}

	return root, nil
}

// LoadEntries loads all history entries from the .hostrun directory.
func LoadEntries(logger zerolog.Logger, root string) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			runPath := filepath.Join(path, "run.json")
			if _, err := os.Stat(runPath); err == nil {
				h, err := parseRunJSON(runPath)
				if err != nil {
					logger.Warn().Err(err).Str("path", runPath).Msg("Failed to parse run.json")
					return nil
				}

				entries = append(entries, Entry{
					History:  h,
					FullPath: path,
				})
			}
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk .hostrun directory: %w", err)
	}

	return entries, nil
}

func parseRunJSON(path string) (model.History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.History{}, err
	}

	var h model.History
	if err := json.Unmarshal(data, &h); err != nil {
		return model.History{}, err
	}

	return h, nil
}

// Record writes one session to .hostrun/history/<timestamp>-<commit>-<id>
// under the git repository root: the output channel as output.txt, the
// assembled coverage as coverage.json, and the session metadata as
// run.json. It returns the run directory.
func Record(logger zerolog.Logger, h *model.History, output string, cov []model.FileCoverage) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not in a git repository: %w", err)
	}
	repoRoot := strings.TrimSpace(string(out))
	if h.Git == nil {
		h.Git = &model.Git{}
	}
	h.Git.Repo = filepath.Base(repoRoot)

	// Store the working directory relative to the repo root
	relPath := "."
	if h.WorkDir != "" {
		if rel, err := filepath.Rel(repoRoot, h.WorkDir); err == nil {
			relPath = rel
		}
	}
	h.WorkDir = relPath

	timestamp := h.Timestamp.Format("20060102-150405")
	shortCommit := h.Git.Commit
	if len(shortCommit) > 8 {
		shortCommit = shortCommit[:8]
	}
	shortID := h.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	runName := fmt.Sprintf("%s-%s-%s", timestamp, shortCommit, shortID)
	runDir := filepath.Join(repoRoot, ".hostrun", "history", runName)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	if output != "" {
		outputPath := filepath.Join(runDir, "output.txt")
		if err := os.WriteFile(outputPath, []byte(output), 0644); err != nil {
			return "", fmt.Errorf("failed to write output: %w", err)
		}
		h.Artifacts = append(h.Artifacts, model.Artifact{
			Type: model.ArtifactTypeOutput,
			Size: uint64(len(output)),
			File: "output.txt",
		})
	}

	if len(cov) > 0 {
		covJSON, err := json.MarshalIndent(cov, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal coverage: %w", err)
		}
		covPath := filepath.Join(runDir, "coverage.json")
		if err := os.WriteFile(covPath, covJSON, 0644); err != nil {
			return "", fmt.Errorf("failed to write coverage: %w", err)
		}
		h.Artifacts = append(h.Artifacts, model.Artifact{
			Type: model.ArtifactTypeCoverage,
			Size: uint64(len(covJSON)),
			File: "coverage.json",
		})
	}

	metadataJSON, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "run.json"), metadataJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to write session metadata: %w", err)
	}

	logger.Debug().Str("dir", runDir).Str("id", h.ID).Msg("Recorded session")
	return runDir, nil
}
