package model

import "time"

// History represents a single recorded hostrun session.
type History struct {
	// Unique ID for this session (16 random bytes, hex encoded)
	ID string `json:"id"`
	// Timestamp when the session started
	Timestamp time.Time `json:"timestamp"`
	// Command-line arguments (including command name)
	Args []string `json:"args"`
	// Host command that was spawned (executable plus arguments)
	HostCommand []string `json:"host_command,omitempty"`
	// Working directory the host ran in (relative to repo root)
	WorkDir string `json:"workdir"`
	// Exit code of the host process
	ExitCode int `json:"exit_code"`
	// Duration of the session
	Duration time.Duration `json:"duration"`
	// Number of test identities requested for the run
	Requested int `json:"requested"`
	// Per-state test counts
	Summary Summary `json:"summary"`
	// Whether coverage instrumentation was requested
	Coverage bool `json:"coverage,omitempty"`
	// Git information
	Git *Git `json:"git,omitempty"`
	// Artifacts generated during this run
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Git contains git repository information
type Git struct {
	// Git commit hash at time of execution
	Commit string `json:"commit,omitempty"`
	// Git branch at time of execution
	Branch string `json:"branch,omitempty"`
	// Repository name
	Repo string `json:"repo,omitempty"`
}

// ArtifactType identifies the type of artifact
type ArtifactType uint8

const (
	ArtifactTypeOutput ArtifactType = iota
	ArtifactTypeCoverage
)

// Artifact represents a file generated during a session
type Artifact struct {
	Type ArtifactType `json:"type"`
	Size uint64       `json:"size"`
	File string       `json:"file"` // relative to run dir
}
