package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// HetznerLister lists servers matching a label selector.
type HetznerLister struct {
	client   *hcloud.Client
	selector string
	logger   *slog.Logger
}

// NewHetznerLister creates a lister for servers matching selector, e.g. "role=web".
func NewHetznerLister(apiToken, selector, endpoint string, logger *slog.Logger) *HetznerLister {
	opts := []hcloud.ClientOption{hcloud.WithToken(apiToken)}
	if endpoint != "" {
		opts = append(opts, hcloud.WithEndpoint(endpoint))
	}
	return &HetznerLister{
		client:   hcloud.NewClient(opts...),
		selector: selector,
		logger:   logger.With("provider", "hetzner"),
	}
}

// ListHosts returns the public IPv4 address of every running matching server.
func (l *HetznerLister) ListHosts(ctx context.Context) ([]string, error) {
	servers, err := l.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: l.selector},
		Status:   []hcloud.ServerStatus{hcloud.ServerStatusRunning},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	hosts := make([]string, 0, len(servers))
	for _, server := range servers {
		ip := server.PublicNet.IPv4.IP
		if ip == nil || ip.IsUnspecified() {
			l.logger.Warn("server has no public IPv4", "server_id", server.ID, "name", server.Name)
			continue
		}
		hosts = append(hosts, ip.String())
	}
	return hosts, nil
}
