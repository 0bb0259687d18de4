package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type staticTokens struct {
	token string
	err   error
}

func (s *staticTokens) AccessToken(ctx context.Context) (string, error) {
	return s.token, s.err
}

func newTestPublisher(baseURL, token string) *Publisher {
	identity := NewDeviceIdentity(&memoryIdentityStore{value: "device-test"})
	p := NewPublisher(baseURL, &staticTokens{token: token}, identity)
	p.now = func() time.Time {
		return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	}
	return p
}

func TestPublisher_SendsLocation(t *testing.T) {
	var gotBody locationBody
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/location" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	p := newTestPublisher(server.URL, "token-abc")
	err := p.send(context.Background(), PositionSample{Latitude: 37.7749, Longitude: -122.4194})
	if err != nil {
		t.Fatalf("send() error = %v", err)
	}

	if gotAuth != "Bearer token-abc" {
		t.Errorf("unexpected Authorization header %q", gotAuth)
	}
	if gotBody.Latitude != 37.7749 || gotBody.Longitude != -122.4194 {
		t.Errorf("unexpected coordinates %v, %v", gotBody.Latitude, gotBody.Longitude)
	}
	if gotBody.DeviceID != "device-test" {
		t.Errorf("unexpected device id %q", gotBody.DeviceID)
	}
	if gotBody.Timestamp != "2026-08-28T12:00:00Z" {
		t.Errorf("expected an RFC 3339 UTC timestamp, got %q", gotBody.Timestamp)
	}
	if !strings.HasSuffix(gotBody.Timestamp, "Z") {
		t.Errorf("timestamp must be UTC, got %q", gotBody.Timestamp)
	}
}

func TestPublisher_SignedOutSkipsNetwork(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	p := newTestPublisher(server.URL, "")
	if err := p.send(context.Background(), PositionSample{Latitude: 1, Longitude: 1}); err != nil {
		t.Fatalf("send() error = %v", err)
	}
	if requests != 0 {
		t.Errorf("expected no request while signed out, got %d", requests)
	}
}

func TestPublisher_TokenErrorSurfaces(t *testing.T) {
	identity := NewDeviceIdentity(&memoryIdentityStore{value: "device-test"})
	p := NewPublisher("http://unused", &staticTokens{err: errors.New("keychain locked")}, identity)

	if err := p.send(context.Background(), PositionSample{}); err == nil {
		t.Fatal("expected send() to fail when the token cannot be read")
	}
}

func TestPublisher_ConflictIsTolerated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"code": "STALE_TIMESTAMP"})
	}))
	defer server.Close()

	p := newTestPublisher(server.URL, "token-abc")
	if err := p.send(context.Background(), PositionSample{Latitude: 1, Longitude: 1}); err != nil {
		t.Fatalf("a conflict must not be an error, got %v", err)
	}
}

func TestPublisher_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := newTestPublisher(server.URL, "token-abc")
	if err := p.send(context.Background(), PositionSample{Latitude: 1, Longitude: 1}); err == nil {
		t.Fatal("expected send() to fail on a server error")
	}
}

func TestPublisher_EnsuresDeviceID(t *testing.T) {
	var gotBody locationBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	store := &memoryIdentityStore{}
	p := NewPublisher(server.URL, &staticTokens{token: "token-abc"}, NewDeviceIdentity(store))
	if err := p.send(context.Background(), PositionSample{Latitude: 1, Longitude: 1}); err != nil {
		t.Fatalf("send() error = %v", err)
	}
	if gotBody.DeviceID == "" {
		t.Fatal("expected a device id to be generated on first publish")
	}
	if store.value != gotBody.DeviceID {
		t.Errorf("expected the generated id to be persisted, store has %q", store.value)
	}
}
