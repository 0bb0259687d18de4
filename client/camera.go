package client

import "sync"

// DefaultSpan is the zoom applied when the camera jumps to a new subject.
const DefaultSpan = 0.01

// FocusTarget is a friend the camera should follow.
type FocusTarget struct {
	Latitude  float64
	Longitude float64
	Label     string
}

// CameraRegion is the visible map region: a center plus a span per axis.
type CameraRegion struct {
	Latitude      float64
	Longitude     float64
	LatitudeSpan  float64
	LongitudeSpan float64
}

// Camera is the map view the controller drives. AnimateTo eventually causes a
// RegionChanged callback once the animation settles.
type Camera interface {
	AnimateTo(region CameraRegion)
}

// FollowState says what the camera is currently tracking.
type FollowState int

const (
	// FollowingSelf recenters on every self position sample.
	FollowingSelf FollowState = iota
	// FollowingFriend recenters on the focused friend.
	FollowingFriend
	// Detached leaves the camera wherever the user panned it.
	Detached
)

func (s FollowState) String() string {
	switch s {
	case FollowingSelf:
		return "self"
	case FollowingFriend:
		return "friend"
	case Detached:
		return "detached"
	}
	return "unknown"
}

// FollowController decides when the map camera moves. It starts following the
// user, switches to a friend when one is focused, and lets go entirely the
// moment the user pans by hand. Recentering resumes only on an explicit
// RecenterOnSelf or a new focus target.
type FollowController struct {
	camera Camera

	mu        sync.Mutex
	state     FollowState
	focus     *FocusTarget
	region    CameraRegion
	hasRegion bool
	lastSelf  *PositionSample
	animating bool
}

func NewFollowController(camera Camera) *FollowController {
	return &FollowController{camera: camera, state: FollowingSelf}
}

// State returns the current follow state.
func (c *FollowController) State() FollowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Region returns the last known camera region; ok is false before the first
// fix or region callback.
func (c *FollowController) Region() (CameraRegion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.region, c.hasRegion
}

// SelfPositionChanged feeds a new self sample. While following self the camera
// recenters on it, keeping whatever span the user has zoomed to.
func (c *FollowController) SelfPositionChanged(sample PositionSample) {
	c.mu.Lock()
	c.lastSelf = &sample
	if c.state != FollowingSelf {
		c.mu.Unlock()
		return
	}
	region := c.regionAtLocked(sample.Latitude, sample.Longitude)
	c.mu.Unlock()

	c.animateTo(region)
}

// SetFocusTarget switches the camera to a friend. Passing the same target
// again is a no-op; passing nil clears the focus and resumes following self.
func (c *FollowController) SetFocusTarget(target *FocusTarget) {
	c.mu.Lock()
	if target == nil {
		c.focus = nil
		c.mu.Unlock()
		c.RecenterOnSelf()
		return
	}
	if c.focus != nil && *c.focus == *target {
		c.mu.Unlock()
		return
	}
	c.focus = target
	c.state = FollowingFriend
	region := CameraRegion{
		Latitude:      target.Latitude,
		Longitude:     target.Longitude,
		LatitudeSpan:  DefaultSpan,
		LongitudeSpan: DefaultSpan,
	}
	c.mu.Unlock()

	c.animateTo(region)
}

// RecenterOnSelf resumes following the user, jumping to the last known self
// position if there is one. The current span is preserved.
func (c *FollowController) RecenterOnSelf() {
	c.mu.Lock()
	c.state = FollowingSelf
	c.focus = nil
	if c.lastSelf == nil {
		c.mu.Unlock()
		return
	}
	region := c.regionAtLocked(c.lastSelf.Latitude, c.lastSelf.Longitude)
	c.mu.Unlock()

	c.animateTo(region)
}

// RegionChanged is the map view's callback after any camera movement. A
// gesture-driven change always detaches the camera, even while one of our own
// animations is in flight; a change not flagged as a gesture is either the
// settle callback of that animation or ambient drift, and only records the
// region. The focus target is kept while detached so re-selecting the same
// friend stays a no-op.
func (c *FollowController) RegionChanged(region CameraRegion, gesture bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.region = region
	c.hasRegion = true

	if gesture {
		c.state = Detached
		c.animating = false
		return
	}
	if c.animating {
		// The settle callback for our own AnimateTo.
		c.animating = false
	}
}

func (c *FollowController) regionAtLocked(lat, lng float64) CameraRegion {
	region := CameraRegion{
		Latitude:      lat,
		Longitude:     lng,
		LatitudeSpan:  DefaultSpan,
		LongitudeSpan: DefaultSpan,
	}
	if c.hasRegion {
		region.LatitudeSpan = c.region.LatitudeSpan
		region.LongitudeSpan = c.region.LongitudeSpan
	}
	return region
}

func (c *FollowController) animateTo(region CameraRegion) {
	c.mu.Lock()
	c.animating = true
	c.mu.Unlock()
	c.camera.AnimateTo(region)
}
