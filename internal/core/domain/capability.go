package domain

// =============================================================================
// Capability
// =============================================================================

// Capability is the outcome of probing a command on a target.
type Capability int

const (
	CapabilityUnknown Capability = iota
	CapabilityAvailable
	CapabilityMissing
)

// CapabilityFromExit maps a probe's exit status to a Capability.
func CapabilityFromExit(exitCode int) Capability {
	if exitCode == 0 {
		return CapabilityAvailable
	}
	return CapabilityMissing
}

// Available returns true only for CapabilityAvailable.
func (c Capability) Available() bool {
	return c == CapabilityAvailable
}

func (c Capability) String() string {
	switch c {
	case CapabilityAvailable:
		return "available"
	case CapabilityMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// =============================================================================
// Requirements
// =============================================================================

// Requirement is a tool the server needs, with the command that proves it is installed.
type Requirement struct {
	Name  string
	Probe string
}

// Standard requirement names. Settings.Packages maps these to apt packages.
const (
	RequirementDocker  = "docker"
	RequirementGit     = "git"
	RequirementCompose = "compose"
)

// Probe commands used by deploy-time strategy selection.
const (
	ProbeGit    = "git --version"
	ProbeDocker = "docker --version"
)
