// Package mapview connects a map provider's projection and viewport
// notifications to the cluster engine and the marker layer.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/s3kfm/lezhure-maps/cluster"
)

// ErrProviderInit is returned when the map provider cannot initialise.
var ErrProviderInit = errors.New("mapview: map provider failed to initialise")

// MaxZoom is the deepest zoom level the provider serves.
const MaxZoom = 22

// Notification is a provider event a controller can subscribe to.
type Notification int

const (
	// ProjectionReady fires once the projection can place coordinates.
	ProjectionReady Notification = iota
	// ViewChanged fires on every pan or zoom step.
	ViewChanged
	// ViewportSettled fires after pan or zoom animations finish.
	ViewportSettled
)

func (n Notification) String() string {
	switch n {
	case ProjectionReady:
		return "projection-ready"
	case ViewChanged:
		return "view-changed"
	case ViewportSettled:
		return "viewport-settled"
	}
	return fmt.Sprintf("Notification(%d)", int(n))
}

// Provider is the map provider as seen by the controller.
type Provider interface {
	cluster.Projector

	// Subscribe registers fn for n and returns a function that removes it.
	Subscribe(n Notification, fn func()) (cancel func())
}

// Loader is implemented by providers that need initialising before use.
type Loader interface {
	Load(ctx context.Context) error
}

// View is the visible part of the map.
type View struct {
	Center cluster.LatLng `json:"center"`
	Zoom   int            `json:"zoom"`
	Width  float64        `json:"width"`
	Height float64        `json:"height"`
}

// Validate checks that the view can be projected.
func (v View) Validate() error {
	if v.Zoom < 0 || v.Zoom > MaxZoom {
		return fmt.Errorf("zoom %d outside 0..%d", v.Zoom, MaxZoom)
	}
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("viewport size %gx%g must be positive", v.Width, v.Height)
	}
	if v.Center.Lat < -90 || v.Center.Lat > 90 || v.Center.Lng < -180 || v.Center.Lng > 180 {
		return fmt.Errorf("centre (%f,%f) out of range", v.Center.Lat, v.Center.Lng)
	}
	return nil
}

// Viewport is a server-side Provider backed by Web Mercator. Clients drive
// it with SetView while panning and Settle once the gesture ends.
type Viewport struct {
	mu    sync.RWMutex
	view  View
	ready bool

	subs   map[Notification]map[uint64]func()
	nextID uint64
}

// NewViewport creates a viewport showing view. Projection is unavailable
// until MarkReady is called.
func NewViewport(view View) *Viewport {
	return &Viewport{
		view: view,
		subs: make(map[Notification]map[uint64]func()),
	}
}

// Load validates the initial view.
func (v *Viewport) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderInit, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.view.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderInit, err)
	}
	return nil
}

// Ready reports whether the projection is available.
func (v *Viewport) Ready() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ready
}

// View returns the current view.
func (v *Viewport) View() View {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.view
}

// MarkReady makes the projection available and notifies ProjectionReady
// subscribers. Later calls do nothing.
func (v *Viewport) MarkReady() {
	v.mu.Lock()
	if v.ready {
		v.mu.Unlock()
		return
	}
	v.ready = true
	v.mu.Unlock()

	v.notify(ProjectionReady)
}

// SetView moves the map and notifies ViewChanged subscribers.
func (v *Viewport) SetView(view View) error {
	if err := view.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	v.view = view
	v.mu.Unlock()

	v.notify(ViewChanged)
	return nil
}

// Settle notifies ViewportSettled subscribers.
func (v *Viewport) Settle() {
	v.notify(ViewportSettled)
}

func (v *Viewport) mercator() (cluster.WebMercator, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return cluster.WebMercator{
		Center:    v.view.Center,
		ZoomLevel: v.view.Zoom,
		Width:     v.view.Width,
		Height:    v.view.Height,
	}, v.ready
}

func (v *Viewport) ProjectToPoint(ll cluster.LatLng) (cluster.Point, bool) {
	m, ok := v.mercator()
	if !ok {
		return cluster.Point{}, false
	}
	return m.ProjectToPoint(ll)
}

func (v *Viewport) ProjectToPixel(ll cluster.LatLng) (cluster.Point, bool) {
	m, ok := v.mercator()
	if !ok {
		return cluster.Point{}, false
	}
	return m.ProjectToPixel(ll)
}

func (v *Viewport) Zoom() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.view.Zoom
}

// Subscribe registers fn for n.
func (v *Viewport) Subscribe(n Notification, fn func()) func() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.nextID++
	id := v.nextID
	if v.subs[n] == nil {
		v.subs[n] = make(map[uint64]func())
	}
	v.subs[n][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.subs[n], id)
		})
	}
}

// notify calls the subscribers of n in subscription order, without holding
// the lock so they can call back into the viewport.
func (v *Viewport) notify(n Notification) {
	v.mu.RLock()
	ids := make([]uint64, 0, len(v.subs[n]))
	for id := range v.subs[n] {
		ids = append(ids, id)
	}
	fns := make(map[uint64]func(), len(ids))
	for _, id := range ids {
		fns[id] = v.subs[n][id]
	}
	v.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		fns[id]()
	}
}
