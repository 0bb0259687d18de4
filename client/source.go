// Package client is the device-side half of Waypoint: it watches the platform
// position source, fans samples out to observers, publishes them to the API,
// and drives the map camera's follow behavior. Platform concerns (the actual
// geolocation API, token acquisition, durable key-value storage, the map view)
// stay behind interfaces so the package can be embedded in any shell.
package client

import (
	"context"
	"time"
)

// PositionSample is one raw reading from the position source.
type PositionSample struct {
	Latitude  float64
	Longitude float64
}

// WatchID identifies an active watch on the platform position source.
type WatchID int64

// WatchOptions configure the platform watch. Both values are fixed at
// construction time and never renegotiated.
type WatchOptions struct {
	MinDistanceMeters float64
	Interval          time.Duration
}

// DefaultWatchOptions mirror the tracking cadence the app has always used:
// a 5 m distance filter at a 5 s interval.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		MinDistanceMeters: 5,
		Interval:          5 * time.Second,
	}
}

// PositionSource abstracts the platform geolocation API. Watch delivers
// samples asynchronously until Cancel is called with the returned id.
type PositionSource interface {
	RequestAuthorization(ctx context.Context) error
	Watch(opts WatchOptions, onSample func(PositionSample), onError func(error)) (WatchID, error)
	Cancel(id WatchID)
}
