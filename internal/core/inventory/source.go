// Package inventory describes where hosts are discovered from.
// This is part of the Functional Core - validation only, no I/O.
package inventory

import (
	"errors"
	"strings"
)

// =============================================================================
// Source Validation (Pure - no I/O)
// =============================================================================

var (
	ErrAWSAccessKeyRequired = errors.New("AWS access key ID is required")
	ErrAWSSecretKeyRequired = errors.New("AWS secret access key is required")
	ErrAWSRegionRequired    = errors.New("AWS region is required")
	ErrTokenRequired        = errors.New("API token is required")
	ErrSelectorRequired     = errors.New("inventory selector is required")
	ErrSelectorInvalid      = errors.New("EC2 selector must be tag-key=value")
	ErrUnknownProvider      = errors.New("unknown inventory provider")
)

// Provider names a cloud API hosts can be listed from.
type Provider string

const (
	ProviderNone         Provider = ""
	ProviderAWS          Provider = "aws"
	ProviderDigitalOcean Provider = "digitalocean"
	ProviderHetzner      Provider = "hetzner"
)

// Source configures host discovery. The Selector meaning depends on the provider:
// an EC2 tag "key=value", a DigitalOcean droplet tag, or a Hetzner label selector.
type Source struct {
	Provider        Provider
	Selector        string
	Region          string
	Token           string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // API base URL override; empty uses the provider default
}

// Enabled reports whether discovery is configured.
func (s Source) Enabled() bool {
	return s.Provider != ProviderNone
}

// Validate checks the fields the provider needs.
func (s Source) Validate() error {
	switch s.Provider {
	case ProviderNone:
		return nil
	case ProviderAWS:
		if s.AccessKeyID == "" {
			return ErrAWSAccessKeyRequired
		}
		if s.SecretAccessKey == "" {
			return ErrAWSSecretKeyRequired
		}
		if s.Region == "" {
			return ErrAWSRegionRequired
		}
		if _, _, err := ParseTagSelector(s.Selector); err != nil {
			return err
		}
		return nil
	case ProviderDigitalOcean, ProviderHetzner:
		if s.Token == "" {
			return ErrTokenRequired
		}
		if strings.TrimSpace(s.Selector) == "" {
			return ErrSelectorRequired
		}
		return nil
	default:
		return ErrUnknownProvider
	}
}

// ParseTagSelector splits an EC2 tag selector "key=value".
func ParseTagSelector(selector string) (key, value string, err error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return "", "", ErrSelectorRequired
	}
	key, value, ok := strings.Cut(selector, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", ErrSelectorInvalid
	}
	return key, strings.TrimSpace(value), nil
}
