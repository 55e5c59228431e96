package domain

import (
	"errors"
	"path"
	"strings"
	"time"
)

// =============================================================================
// Settings Errors
// =============================================================================

var (
	ErrAppDirRequired     = errors.New("remote application directory is required")
	ErrAppDirInvalid      = errors.New("remote application directory must be absolute or start with ~")
	ErrDestinationInvalid = errors.New("destination must be local or remote")
	ErrComposeRequired    = errors.New("compose command is required")
	ErrPullURLRequired    = errors.New("git pull repository URL is required")
	ErrBranchRequired     = errors.New("git branch is required")
	ErrStagingDirRequired = errors.New("archive staging directory is required")
	ErrTimeoutInvalid     = errors.New("timeouts must not be negative")
)

// =============================================================================
// Destination
// =============================================================================

// Destination selects where lifecycle commands run.
type Destination string

const (
	DestinationLocal  Destination = "local"
	DestinationRemote Destination = "remote"
)

// IsValid checks if the destination is valid.
func (d Destination) IsValid() bool {
	return d == DestinationLocal || d == DestinationRemote
}

// =============================================================================
// Settings
// =============================================================================

// ArchiveSettings configures the file-transfer deployment.
type ArchiveSettings struct {
	Root       string   // Local directory to pack; "" means the working directory
	Exclude    []string // doublestar globs relative to Root
	StagingDir string   // Remote directory the archive is uploaded to
}

// Settings is the configuration record every operation reads.
// It is built once at start and never mutated; WithDestination returns a copy.
type Settings struct {
	Hosts          []string
	User           string
	KeyFile        string
	Port           int
	KnownHostsFile string
	UseAgent       bool
	ConnectTimeout time.Duration
	CommandTimeout time.Duration

	GitPushURL string
	GitPullURL string
	GitRemote  string
	GitBranch  string

	RemoteAppDir string
	DockerDeploy bool

	ComposeCommand string
	ComposeFile    string

	// Packages maps a requirement name to the apt package that provides it.
	Packages map[string]string

	Archive     ArchiveSettings
	Destination Destination
}

// Validate checks the settings needed by every task.
// Task-specific fields (repository URLs) are checked by the task that needs them.
func (s Settings) Validate() error {
	if s.User == "" {
		return ErrUserRequired
	}
	if s.Port < 1 || s.Port > 65535 {
		return ErrPortInvalid
	}
	if s.RemoteAppDir == "" {
		return ErrAppDirRequired
	}
	if !strings.HasPrefix(s.RemoteAppDir, "/") && !strings.HasPrefix(s.RemoteAppDir, "~") {
		return ErrAppDirInvalid
	}
	if !s.Destination.IsValid() {
		return ErrDestinationInvalid
	}
	if strings.TrimSpace(s.ComposeCommand) == "" {
		return ErrComposeRequired
	}
	if s.GitBranch == "" {
		return ErrBranchRequired
	}
	if s.Archive.StagingDir == "" {
		return ErrStagingDirRequired
	}
	if s.ConnectTimeout < 0 || s.CommandTimeout < 0 {
		return ErrTimeoutInvalid
	}
	return nil
}

// WithDestination returns a copy of the settings targeting d.
func (s Settings) WithDestination(d Destination) Settings {
	s.Destination = d
	return s
}

// Targets parses every configured host.
func (s Settings) Targets() ([]Target, error) {
	if len(s.Hosts) == 0 {
		return nil, ErrNoHosts
	}
	targets := make([]Target, 0, len(s.Hosts))
	for _, h := range s.Hosts {
		t, err := ParseTarget(h, s.User, s.Port)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Package returns the apt package for a requirement, defaulting to its name.
func (s Settings) Package(requirement string) string {
	if pkg, ok := s.Packages[requirement]; ok && pkg != "" {
		return pkg
	}
	return requirement
}

// Requirements lists what prepare_server ensures on a host.
func (s Settings) Requirements() []Requirement {
	if !s.DockerDeploy {
		return []Requirement{{Name: RequirementGit, Probe: ProbeGit}}
	}
	return []Requirement{
		{Name: RequirementDocker, Probe: ProbeDocker},
		{Name: RequirementGit, Probe: ProbeGit},
		{Name: RequirementCompose, Probe: s.ComposeCommand + " version"},
	}
}

// AppName is the last element of the remote application directory.
func (s Settings) AppName() string {
	name := path.Base(strings.TrimPrefix(s.RemoteAppDir, "~"))
	if name == "/" || name == "." || name == "" {
		return "app"
	}
	return name
}

// MergeHosts appends discovered hosts to the static list, dropping duplicates.
func MergeHosts(static, discovered []string) []string {
	seen := make(map[string]bool, len(static)+len(discovered))
	merged := make([]string, 0, len(static)+len(discovered))
	for _, list := range [][]string{static, discovered} {
		for _, h := range list {
			h = strings.TrimSpace(h)
			if h == "" || seen[h] {
				continue
			}
			seen[h] = true
			merged = append(merged, h)
		}
	}
	return merged
}
