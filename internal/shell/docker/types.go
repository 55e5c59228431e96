package docker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
)

// ProjectLabel is the label compose puts on every container it creates.
const ProjectLabel = "com.docker.compose.project"

// ServiceLabel names the compose service a container belongs to.
const ServiceLabel = "com.docker.compose.service"

// =============================================================================
// Container Info
// =============================================================================

// ContainerStatus represents the container status.
type ContainerStatus string

const (
	ContainerStatusCreated    ContainerStatus = "created"
	ContainerStatusRunning    ContainerStatus = "running"
	ContainerStatusPaused     ContainerStatus = "paused"
	ContainerStatusRestarting ContainerStatus = "restarting"
	ContainerStatusRemoving   ContainerStatus = "removing"
	ContainerStatusExited     ContainerStatus = "exited"
	ContainerStatusDead       ContainerStatus = "dead"
)

// PortBinding is a published container port.
type PortBinding struct {
	ContainerPort int
	HostPort      int
	Protocol      string
	HostIP        string
}

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID        string
	Name      string
	Service   string
	Image     string
	Status    ContainerStatus
	State     string // Human readable, e.g. "Up 3 minutes"
	CreatedAt time.Time
	Ports     []PortBinding
	Labels    map[string]string
}

// Line renders the container for the status task.
func (c ContainerInfo) Line() string {
	line := fmt.Sprintf("%-20s %-10s %s", c.Service, c.Status, c.Image)
	if ports := formatPorts(c.Ports); ports != "" {
		line += "  " + ports
	}
	return line
}

func formatPorts(ports []PortBinding) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port, err := nat.NewPort(proto, strconv.Itoa(p.ContainerPort))
		if err != nil {
			continue
		}
		if p.HostPort == 0 {
			parts = append(parts, string(port))
			continue
		}
		host := p.HostIP
		if host == "" {
			host = "0.0.0.0"
		}
		parts = append(parts, fmt.Sprintf("%s:%d->%s", host, p.HostPort, port))
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// Client Interface
// =============================================================================

// Client is the subset of the Docker Engine API the status task reads.
type Client interface {
	Ping(ctx context.Context) error
	ProjectContainers(ctx context.Context, project string) ([]ContainerInfo, error)
	Close() error
}
