package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"intercom-dvr/config"
)

// Stream identifies one camera's live source for the lifetime of a single
// discovery cycle.
type Stream struct {
	Name string
	URL  string
	ID   string
}

const (
	defaultAuthURL    = "https://intercom.pik-comfort.ru/api/customers/sign_in"
	defaultStreamsURL = "https://iot.rubetek.com/api/alfred/v1/personal/intercoms"
)

// Client talks to the intercom platform: authentication against the account
// service and stream discovery against the IoT catalog.
type Client struct {
	authURL    string
	streamsURL string
	cfg        config.Config
	httpClient *http.Client
}

// NewClient creates a catalog client for the configured account.
func NewClient(cfg config.Config) *Client {
	return &Client{
		authURL:    defaultAuthURL,
		streamsURL: defaultStreamsURL,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithURLs creates a catalog client against custom endpoints.
// Used by tests and self-hosted deployments.
func NewClientWithURLs(cfg config.Config, authURL, streamsURL string) *Client {
	c := NewClient(cfg)
	c.authURL = authURL
	c.streamsURL = streamsURL
	return c
}

// Authenticate signs in with the account credentials and returns the bearer
// token issued by the platform. The token is short-lived; callers drop it
// and re-authenticate on any discovery failure.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("account[phone]", c.cfg.CatalogLogin)
	form.Set("account[password]", c.cfg.CatalogPassword)
	form.Set("customer_device[uid]", c.cfg.DeviceUID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Api-Version", "2")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("authorization error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	token := resp.Header.Get("Authorization")
	if token == "" {
		return "", fmt.Errorf("authorization error: no token in response")
	}

	log.Println("Authorized to intercom platform")
	return token, nil
}

// intercomEntry mirrors the discovery payload. Each intercom exposes its
// camera through the first relay.
type intercomEntry struct {
	Relays []struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		RTSPURL string `json:"rtsp_url"`
	} `json:"relays"`
}

// ListStreams fetches the available streams for the authenticated account,
// filtered to the configured camera allow-list (case-insensitive) and to
// relays that actually expose an RTSP URL.
func (c *Client) ListStreams(ctx context.Context, token string) ([]Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.streamsURL+"?page=1", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Authorization", token)
	req.Header.Set("Api-Version", "2")
	req.Header.Set("Device-Client-Uid", c.cfg.DeviceUID)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get stream urls error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var entries []intercomEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode discovery response: %w", err)
	}

	var streams []Stream
	for _, entry := range entries {
		if len(entry.Relays) == 0 {
			continue
		}
		relay := entry.Relays[0]
		if relay.RTSPURL == "" || !c.cfg.AllowsCamera(relay.Name) {
			continue
		}
		streams = append(streams, Stream{
			Name: relay.Name,
			URL:  relay.RTSPURL,
			ID:   strconv.FormatInt(relay.ID, 10),
		})
	}

	log.Printf("Discovered %d stream(s) matching the allow-list", len(streams))
	return streams, nil
}
