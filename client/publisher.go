package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// TokenProvider supplies the current access token. An empty token with a nil
// error means the user is signed out.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

type locationBody struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
	DeviceID  string  `json:"deviceId"`
}

// Publisher ships position samples to the ingestion endpoint. Publish is
// fire-and-forget: failures are logged, never surfaced to the caller, so a
// flaky network can't interrupt local tracking.
type Publisher struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	identity   *DeviceIdentity
	timeout    time.Duration
	now        func() time.Time
}

func NewPublisher(baseURL string, tokens TokenProvider, identity *DeviceIdentity) *Publisher {
	return &Publisher{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		tokens:     tokens,
		identity:   identity,
		timeout:    10 * time.Second,
		now:        time.Now,
	}
}

// Publish sends the sample on a detached task and returns immediately.
func (p *Publisher) Publish(sample PositionSample) {
	spawn("publish location", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		return p.send(ctx, sample)
	})
}

func (p *Publisher) send(ctx context.Context, sample PositionSample) error {
	token, err := p.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}
	if token == "" {
		// Signed out: nothing to publish, and no request is made.
		return nil
	}

	deviceID, err := p.identity.Ensure(ctx)
	if err != nil {
		return err
	}

	body := locationBody{
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Timestamp: p.now().UTC().Format(time.RFC3339),
		DeviceID:  deviceID,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/location", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post location: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		// Another device already recorded a newer sample. Expected with
		// multiple devices on one account, not worth retrying.
		log.Printf("publish location: superseded by a newer update")
		return nil
	default:
		return fmt.Errorf("post location: unexpected status %d", resp.StatusCode)
	}
}
