// Package inventory discovers target hosts from cloud provider APIs.
// This is part of the Imperative Shell - handles I/O with cloud APIs.
package inventory

import (
	"context"
	"fmt"
	"log/slog"

	coreinventory "github.com/artpar/launchpad/internal/core/inventory"
)

// Lister returns the public addresses of the hosts a selector matches.
type Lister interface {
	ListHosts(ctx context.Context) ([]string, error)
}

// NewLister creates a lister for source. Discovery must be enabled.
func NewLister(source coreinventory.Source, logger *slog.Logger) (Lister, error) {
	if err := source.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inventory: %w", err)
	}

	switch source.Provider {
	case coreinventory.ProviderAWS:
		key, value, _ := coreinventory.ParseTagSelector(source.Selector)
		return NewAWSLister(source.AccessKeyID, source.SecretAccessKey, source.Region, key, value, source.Endpoint, logger), nil

	case coreinventory.ProviderDigitalOcean:
		return NewDigitalOceanLister(source.Token, source.Selector, source.Endpoint, logger)

	case coreinventory.ProviderHetzner:
		return NewHetznerLister(source.Token, source.Selector, source.Endpoint, logger), nil

	default:
		return nil, fmt.Errorf("%w: %q", coreinventory.ErrUnknownProvider, source.Provider)
	}
}

// Discover lists hosts for source. A disabled source yields no hosts.
func Discover(ctx context.Context, source coreinventory.Source, logger *slog.Logger) ([]string, error) {
	if !source.Enabled() {
		return nil, nil
	}
	lister, err := NewLister(source, logger)
	if err != nil {
		return nil, err
	}
	hosts, err := lister.ListHosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover %s hosts: %w", source.Provider, err)
	}
	logger.Info("discovered hosts", "provider", source.Provider, "selector", source.Selector, "count", len(hosts))
	return hosts, nil
}
