package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/digitalocean/godo"
)

// DigitalOceanLister lists droplets carrying a tag.
type DigitalOceanLister struct {
	client *godo.Client
	tag    string
	logger *slog.Logger
}

// NewDigitalOceanLister creates a lister for droplets tagged tag.
func NewDigitalOceanLister(apiToken, tag, endpoint string, logger *slog.Logger) (*DigitalOceanLister, error) {
	client := godo.NewFromToken(apiToken)
	if endpoint != "" {
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		base, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid DigitalOcean endpoint: %w", err)
		}
		client.BaseURL = base
	}
	return &DigitalOceanLister{
		client: client,
		tag:    tag,
		logger: logger.With("provider", "digitalocean"),
	}, nil
}

// ListHosts returns the public IPv4 address of every tagged droplet.
func (l *DigitalOceanLister) ListHosts(ctx context.Context) ([]string, error) {
	var hosts []string

	opt := &godo.ListOptions{Page: 1, PerPage: 200}
	for {
		droplets, resp, err := l.client.Droplets.ListByTag(ctx, l.tag, opt)
		if err != nil {
			return nil, fmt.Errorf("failed to list droplets: %w", err)
		}

		for _, d := range droplets {
			ip, err := d.PublicIPv4()
			if err != nil || ip == "" {
				l.logger.Warn("droplet has no public IP", "droplet_id", d.ID, "name", d.Name)
				continue
			}
			hosts = append(hosts, ip)
		}

		if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
			break
		}
		page, err := resp.Links.CurrentPage()
		if err != nil {
			return nil, fmt.Errorf("failed to read droplet page: %w", err)
		}
		opt.Page = page + 1
	}
	return hosts, nil
}
