package inventory

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	coreinventory "github.com/artpar/launchpad/internal/core/inventory"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Factory Tests
// =============================================================================

func TestNewLister(t *testing.T) {
	tests := []struct {
		name   string
		source coreinventory.Source
		want   interface{}
	}{
		{"aws", coreinventory.Source{Provider: coreinventory.ProviderAWS, AccessKeyID: "AKIA", SecretAccessKey: "s", Region: "eu-west-1", Selector: "role=web"}, &AWSLister{}},
		{"digitalocean", coreinventory.Source{Provider: coreinventory.ProviderDigitalOcean, Token: "t", Selector: "web"}, &DigitalOceanLister{}},
		{"hetzner", coreinventory.Source{Provider: coreinventory.ProviderHetzner, Token: "t", Selector: "role=web"}, &HetznerLister{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister, err := NewLister(tt.source, testLogger())
			require.NoError(t, err)
			assert.IsType(t, tt.want, lister)
		})
	}
}

func TestNewLister_Invalid(t *testing.T) {
	_, err := NewLister(coreinventory.Source{Provider: coreinventory.ProviderDigitalOcean, Selector: "web"}, testLogger())
	assert.ErrorIs(t, err, coreinventory.ErrTokenRequired)

	_, err = NewLister(coreinventory.Source{Provider: "linode", Token: "t"}, testLogger())
	assert.ErrorIs(t, err, coreinventory.ErrUnknownProvider)
}

func TestDiscover_Disabled(t *testing.T) {
	hosts, err := Discover(context.Background(), coreinventory.Source{}, testLogger())
	require.NoError(t, err)
	assert.Empty(t, hosts)
}

// =============================================================================
// Provider Tests
// =============================================================================

func TestAWSLister_Filters(t *testing.T) {
	l := NewAWSLister("AKIA", "secret", "eu-west-1", "role", "web", "", testLogger())
	input := l.describeInput()

	require.Len(t, input.Filters, 2)
	assert.Equal(t, "tag:role", aws.ToString(input.Filters[0].Name))
	assert.Equal(t, []string{"web"}, input.Filters[0].Values)
	assert.Equal(t, "instance-state-name", aws.ToString(input.Filters[1].Name))
	assert.Equal(t, []string{"running"}, input.Filters[1].Values)
}

const dropletsResponse = `{
  "droplets": [
    {"id": 1, "name": "web1", "networks": {"v4": [
      {"ip_address": "10.0.0.5", "type": "private"},
      {"ip_address": "203.0.113.10", "type": "public"}
    ]}},
    {"id": 2, "name": "web2", "networks": {"v4": []}}
  ],
  "meta": {"total": 2}
}`

func TestDigitalOceanLister_ListHosts(t *testing.T) {
	var gotTag, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/droplets", r.URL.Path)
		gotTag = r.URL.Query().Get("tag_name")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, dropletsResponse)
	}))
	defer srv.Close()

	l, err := NewDigitalOceanLister("do-token", "web", srv.URL, testLogger())
	require.NoError(t, err)

	hosts, err := l.ListHosts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"203.0.113.10"}, hosts)
	assert.Equal(t, "web", gotTag)
	assert.Equal(t, "Bearer do-token", gotAuth)
}

func TestDigitalOceanLister_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"id": "unauthorized", "message": "Unable to authenticate you."}`)
	}))
	defer srv.Close()

	l, err := NewDigitalOceanLister("bad", "web", srv.URL, testLogger())
	require.NoError(t, err)

	_, err = l.ListHosts(context.Background())
	assert.Error(t, err)
}

const serversResponse = `{
  "servers": [
    {"id": 10, "name": "web1", "status": "running", "created": "2024-01-01T00:00:00+00:00",
     "public_net": {"ipv4": {"id": 1, "ip": "198.51.100.7"}, "ipv6": {"id": 2, "ip": "2001:db8::/64"}}},
    {"id": 11, "name": "private", "status": "running", "created": "2024-01-01T00:00:00+00:00",
     "public_net": {"ipv4": null, "ipv6": null}}
  ],
  "meta": {"pagination": {"page": 1, "per_page": 50, "previous_page": null, "next_page": null, "last_page": 1, "total_entries": 2}}
}`

func TestHetznerLister_ListHosts(t *testing.T) {
	var gotSelector string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/servers", r.URL.Path)
		gotSelector = r.URL.Query().Get("label_selector")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, serversResponse)
	}))
	defer srv.Close()

	l := NewHetznerLister("hc-token", "role=web", srv.URL, testLogger())

	hosts, err := l.ListHosts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"198.51.100.7"}, hosts)
	assert.Equal(t, "role=web", gotSelector)
}
