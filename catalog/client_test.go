package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"intercom-dvr/config"
)

func testConfig(cameras ...string) config.Config {
	return config.Config{
		CatalogLogin:    "+79990000000",
		CatalogPassword: "secret",
		DeviceUID:       "test-uid",
		UserAgent:       config.DefaultUserAgent,
		CameraNames:     cameras,
	}
}

func TestAuthenticateReturnsHeaderToken(t *testing.T) {
	var gotPhone, gotUID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse auth form: %v", err)
		}
		gotPhone = r.PostFormValue("account[phone]")
		gotUID = r.PostFormValue("customer_device[uid]")
		w.Header().Set("Authorization", "Bearer abc123")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClientWithURLs(testConfig(), server.URL, server.URL)
	token, err := client.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if token != "Bearer abc123" {
		t.Errorf("token: got %q", token)
	}
	if gotPhone != "+79990000000" || gotUID != "test-uid" {
		t.Errorf("credentials not sent: phone=%q uid=%q", gotPhone, gotUID)
	}
}

func TestAuthenticateRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClientWithURLs(testConfig(), server.URL, server.URL)
	if _, err := client.Authenticate(context.Background()); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClientWithURLs(testConfig(), server.URL, server.URL)
	if _, err := client.Authenticate(context.Background()); err == nil {
		t.Fatal("expected error when the token header is absent")
	}
}

const discoveryPayload = `[
	{"relays": [{"id": 11, "name": "Front Door", "rtsp_url": "rtsp://host/front"}]},
	{"relays": [{"id": 12, "name": "Parking", "rtsp_url": "rtsp://host/parking"}]},
	{"relays": [{"id": 13, "name": "Yard", "rtsp_url": ""}]},
	{"relays": []}
]`

func TestListStreamsFiltersByAllowList(t *testing.T) {
	var gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("Authorization")
		if r.URL.Query().Get("page") != "1" {
			t.Errorf("expected page=1 query, got %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(discoveryPayload))
	}))
	defer server.Close()

	// Allow-list matching is case-insensitive; "yard" is allowed but has no
	// RTSP URL, "Parking" is not on the list at all.
	client := NewClientWithURLs(testConfig("front door", "yard"), server.URL, server.URL)
	streams, err := client.ListStreams(context.Background(), "Bearer abc123")
	if err != nil {
		t.Fatalf("ListStreams failed: %v", err)
	}

	if gotToken != "Bearer abc123" {
		t.Errorf("token not forwarded, got %q", gotToken)
	}
	if len(streams) != 1 {
		t.Fatalf("expected 1 stream, got %d: %+v", len(streams), streams)
	}
	if streams[0].Name != "Front Door" || streams[0].URL != "rtsp://host/front" || streams[0].ID != "11" {
		t.Errorf("unexpected stream: %+v", streams[0])
	}
}

func TestListStreamsEmptyAllowListRejectsEverything(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(discoveryPayload))
	}))
	defer server.Close()

	client := NewClientWithURLs(testConfig(), server.URL, server.URL)
	streams, err := client.ListStreams(context.Background(), "token")
	if err != nil {
		t.Fatalf("ListStreams failed: %v", err)
	}
	if len(streams) != 0 {
		t.Errorf("empty allow-list must reject every stream, got %+v", streams)
	}
}

func TestListStreamsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClientWithURLs(testConfig("cam"), server.URL, server.URL)
	if _, err := client.ListStreams(context.Background(), "stale"); err == nil {
		t.Fatal("expected error for 401 discovery response")
	}
}
