package domain

// Strategy is the method used to deliver application code to a host.
type Strategy string

const (
	// StrategyDocker pulls the code with git, then brings the compose stack up.
	StrategyDocker Strategy = "docker"
	// StrategyGit pulls the code with git only.
	StrategyGit Strategy = "git"
	// StrategyArchive uploads a tarball of the working tree and unpacks it.
	StrategyArchive Strategy = "archive"
)

// SelectStrategy picks the deployment strategy from the probed capabilities.
// Git is a prerequisite for the docker path; without git the archive path is used
// whatever the docker capability.
func SelectStrategy(git, docker Capability) Strategy {
	switch {
	case git.Available() && docker.Available():
		return StrategyDocker
	case git.Available():
		return StrategyGit
	default:
		return StrategyArchive
	}
}
