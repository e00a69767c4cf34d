// Package ipcheck queries proxycheck.io to flag submissions arriving
// through proxies or VPNs.
package ipcheck

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"banappeals/backend/internal/config"
)

const defaultEndpoint = "https://proxycheck.io/v2"

// Checker resolves the reputation of a submitter's IP address.
type Checker interface {
	IsProxy(ip string) (bool, error)
}

// Client calls the proxycheck.io HTTP API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// NewClient Constructor
func NewClient(cfg config.IPCheckConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		endpoint:   defaultEndpoint,
		apiKey:     cfg.APIKey,
	}
}

// IsProxy reports whether the address is a known proxy or VPN exit.
// Errors are returned to the caller, which decides the fail-open policy.
func (c *Client) IsProxy(ip string) (bool, error) {
	query := url.Values{"vpn": {"1"}}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}

	resp, err := c.httpClient.Get(fmt.Sprintf("%s/%s?%s", c.endpoint, url.PathEscape(ip), query.Encode()))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ipcheck: lookup for %s returned %d", ip, resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}

	if status := gjson.GetBytes(payload, "status").String(); status != "ok" {
		return false, fmt.Errorf("ipcheck: lookup for %s failed with status %q", ip, status)
	}

	// The response keys results by the address itself; its dots must not
	// act as path separators.
	key := strings.ReplaceAll(ip, ".", `\.`)
	return gjson.GetBytes(payload, key+".proxy").String() == "yes", nil
}
