package monitoring

import (
	"context"
	"net"
	"net/http"
	"time"
)

// ConnectivityChecker probes for a working uplink before network-heavy work
// like upload retries is attempted.
type ConnectivityChecker struct {
	testURLs []string
	timeout  time.Duration
	client   *http.Client
}

// NewConnectivityChecker creates a checker against well-known anycast hosts.
func NewConnectivityChecker() *ConnectivityChecker {
	timeout := 10 * time.Second
	return &ConnectivityChecker{
		testURLs: []string{
			"https://1.1.1.1",
			"https://8.8.8.8",
		},
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			},
		},
	}
}

// IsOnline reports whether any of the probe targets is reachable, falling
// back to a DNS lookup when none answers HTTP.
func (c *ConnectivityChecker) IsOnline() bool {
	for _, url := range c.testURLs {
		if c.checkConnection(url) {
			return true
		}
	}
	return c.checkDNSResolution("www.google.com")
}

func (c *ConnectivityChecker) checkConnection(url string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}

func (c *ConnectivityChecker) checkDNSResolution(hostname string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resolver := &net.Resolver{}
	_, err := resolver.LookupHost(ctx, hostname)
	return err == nil
}
