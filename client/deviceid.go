package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// IdentityStore persists the per-install device identifier in durable
// key-value storage. Get returns "" with a nil error when no id exists yet.
type IdentityStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, id string) error
}

// DeviceIdentity resolves the stable per-install device id, creating and
// persisting one on first use. Concurrent callers share a single in-flight
// initialization, so at most one id is ever generated.
type DeviceIdentity struct {
	store IdentityStore
	group singleflight.Group

	mu     sync.Mutex
	cached string
}

func NewDeviceIdentity(store IdentityStore) *DeviceIdentity {
	return &DeviceIdentity{store: store}
}

// Current returns the device id without creating one: "" when absent.
func (d *DeviceIdentity) Current(ctx context.Context) (string, error) {
	d.mu.Lock()
	cached := d.cached
	d.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	id, err := d.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("read device id: %w", err)
	}
	if id != "" {
		d.mu.Lock()
		d.cached = id
		d.mu.Unlock()
	}
	return id, nil
}

// Ensure returns the device id, generating and persisting a new one if none
// exists. Simultaneous calls collapse onto one initialization.
func (d *DeviceIdentity) Ensure(ctx context.Context) (string, error) {
	d.mu.Lock()
	cached := d.cached
	d.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	result, err, _ := d.group.Do("device-id", func() (any, error) {
		existing, err := d.store.Get(ctx)
		if err != nil {
			return "", fmt.Errorf("read device id: %w", err)
		}
		if existing != "" {
			d.mu.Lock()
			d.cached = existing
			d.mu.Unlock()
			return existing, nil
		}

		id := uuid.NewString()
		if err := d.store.Set(ctx, id); err != nil {
			return "", fmt.Errorf("persist device id: %w", err)
		}
		d.mu.Lock()
		d.cached = id
		d.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
