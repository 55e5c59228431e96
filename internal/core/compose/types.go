package compose

// =============================================================================
// Stack - Main Output Type
// =============================================================================

// Stack is the subset of a compose project the deployer checks before bringing
// it up: which services run, from what, and on which ports.
type Stack struct {
	Name     string    `json:"name"`
	Services []Service `json:"services"`
	Volumes  []string  `json:"volumes,omitempty"`
}

// ServiceNames returns the service names in stack order.
func (s *Stack) ServiceNames() []string {
	names := make([]string, 0, len(s.Services))
	for _, svc := range s.Services {
		names = append(names, svc.Name)
	}
	return names
}

// =============================================================================
// Service Types
// =============================================================================

// Service represents a single service definition.
type Service struct {
	Name      string       `json:"name"`
	Image     string       `json:"image,omitempty"`
	Build     *BuildConfig `json:"build,omitempty"`
	Ports     []Port       `json:"ports,omitempty"`
	DependsOn []string     `json:"depends_on,omitempty"`
}

// BuildConfig represents build configuration (optional).
type BuildConfig struct {
	Context    string `json:"context"`
	Dockerfile string `json:"dockerfile,omitempty"`
}

// Port represents a port mapping.
type Port struct {
	Target    uint32 `json:"target"`              // Container port
	Published uint32 `json:"published,omitempty"` // Host port (0 = dynamic)
	Protocol  string `json:"protocol,omitempty"`  // tcp, udp
	HostIP    string `json:"host_ip,omitempty"`   // Bind IP
}
