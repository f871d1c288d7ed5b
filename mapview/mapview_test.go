package mapview

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/internal/monitoring"
	"github.com/s3kfm/lezhure-maps/internal/timeutil"
	"github.com/s3kfm/lezhure-maps/presenter"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

var la = View{Center: cluster.LatLng{Lat: 34.07, Lng: -118.27}, Zoom: 11, Width: 1280, Height: 800}

func scenario() []cluster.Event {
	return []cluster.Event{
		{ID: "A", Latitude: 34.05, Longitude: -118.24, StartTime: "2025-06-01T10:00:00Z", Title: "A"},
		{ID: "B", Latitude: 34.0501, Longitude: -118.2401, StartTime: "2025-06-01T09:00:00Z", Title: "B"},
		{ID: "C", Latitude: 34.10, Longitude: -118.30, StartTime: "2025-06-01T11:00:00Z", Title: "C"},
	}
}

type fixture struct {
	viewport *Viewport
	rec      *presenter.Recorder
	clock    *timeutil.ManualClock
	ctrl     *Controller
}

func newFixture(view View, events []cluster.Event) *fixture {
	f := &fixture{
		viewport: NewViewport(view),
		rec:      presenter.NewRecorder(),
		clock:    timeutil.NewManualClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
	}
	layer := presenter.NewLayer(f.rec, f.clock, presenter.DefaultStyle())
	f.ctrl = NewController(f.viewport, nil, layer, events)
	return f
}

func TestViewportLoad(t *testing.T) {
	tests := []struct {
		name string
		view View
		ok   bool
	}{
		{"valid", la, true},
		{"zoom too deep", View{Center: la.Center, Zoom: 23, Width: 10, Height: 10}, false},
		{"negative zoom", View{Center: la.Center, Zoom: -1, Width: 10, Height: 10}, false},
		{"zero size", View{Center: la.Center, Zoom: 3}, false},
		{"bad centre", View{Center: cluster.LatLng{Lat: 120}, Zoom: 3, Width: 10, Height: 10}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := NewViewport(test.view).Load(context.Background())
			if test.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrProviderInit)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewViewport(la).Load(ctx), ErrProviderInit)
}

func TestViewportProjection(t *testing.T) {
	v := NewViewport(la)
	_, ok := v.ProjectToPixel(la.Center)
	assert.False(t, ok, "projection must be unavailable before MarkReady")
	assert.False(t, v.Ready())

	v.MarkReady()
	p, ok := v.ProjectToPixel(la.Center)
	require.True(t, ok)
	assert.InDelta(t, 640, p.X, 1e-6)
	assert.InDelta(t, 400, p.Y, 1e-6)

	w, ok := v.ProjectToPoint(la.Center)
	require.True(t, ok)
	want, _ := cluster.WorldPoint(la.Center)
	assert.Equal(t, want, w)
	assert.Equal(t, 11, v.Zoom())
}

func TestViewportSubscribe(t *testing.T) {
	v := NewViewport(la)
	var order []string
	cancelA := v.Subscribe(ViewportSettled, func() { order = append(order, "a") })
	v.Subscribe(ViewportSettled, func() { order = append(order, "b") })
	v.Subscribe(ViewChanged, func() { order = append(order, "changed") })
	ready := 0
	v.Subscribe(ProjectionReady, func() { ready++ })

	v.Settle()
	assert.Equal(t, []string{"a", "b"}, order)

	cancelA()
	cancelA()
	order = nil
	v.Settle()
	assert.Equal(t, []string{"b"}, order)

	order = nil
	require.NoError(t, v.SetView(View{Center: la.Center, Zoom: 12, Width: 100, Height: 100}))
	assert.Equal(t, []string{"changed"}, order)
	assert.Error(t, v.SetView(View{Zoom: 40, Width: 1, Height: 1}))
	assert.Equal(t, 12, v.View().Zoom)

	v.MarkReady()
	v.MarkReady()
	assert.Equal(t, 1, ready)
}

func TestControllerExampleScenario(t *testing.T) {
	f := newFixture(la, scenario())
	require.NoError(t, f.ctrl.Start(context.Background()))

	status, err := f.ctrl.Status()
	assert.Equal(t, StatusReady, status)
	assert.NoError(t, err)

	// Projection not ready yet: dots only.
	assert.Equal(t, 0, f.ctrl.Passes())
	assert.Equal(t, 3, f.ctrl.Layer().Len())
	for _, ref := range keys(f.rec.Live()) {
		assert.Equal(t, presenter.KindDot, ref.Kind)
	}

	f.viewport.MarkReady()
	assert.Equal(t, 1, f.ctrl.Passes())
	assert.Equal(t, cluster.RepresentativeSet{"A": false, "B": true, "C": true}, f.ctrl.Representatives())

	states := f.ctrl.Layer().States()
	assert.Equal(t, presenter.Hidden, states["A"])
	assert.Equal(t, presenter.Entering, states["B"])
	assert.Equal(t, presenter.Entering, states["C"])
}

func TestControllerSettleZoomIn(t *testing.T) {
	f := newFixture(la, scenario())
	require.NoError(t, f.ctrl.Start(context.Background()))
	f.viewport.MarkReady()
	f.clock.Advance(time.Second)

	deep := la
	deep.Zoom = 22
	require.NoError(t, f.viewport.SetView(deep))
	assert.Equal(t, 1, f.ctrl.Passes(), "view changes alone must not recluster")

	f.viewport.Settle()
	assert.Equal(t, 2, f.ctrl.Passes())
	assert.Equal(t, cluster.RepresentativeSet{"A": true, "B": true, "C": true}, f.ctrl.Representatives())

	_, _, ok := f.ctrl.Recompute()
	assert.True(t, ok)
}

func TestControllerViewChangedDrawsOnly(t *testing.T) {
	f := newFixture(la, scenario())
	require.NoError(t, f.ctrl.Start(context.Background()))
	f.viewport.MarkReady()
	f.rec.Drain()

	moved := la
	moved.Center.Lng += 0.01
	require.NoError(t, f.viewport.SetView(moved))

	ops := f.rec.Drain()
	require.NotEmpty(t, ops)
	for _, op := range ops {
		assert.Equal(t, presenter.OpReposition, op.Kind)
	}
}

// flakyProvider loses its projection on demand.
type flakyProvider struct {
	*Viewport
	broken bool
}

func (p *flakyProvider) Ready() bool { return !p.broken && p.Viewport.Ready() }

func TestControllerKeepsLastGood(t *testing.T) {
	provider := &flakyProvider{Viewport: NewViewport(la)}
	provider.MarkReady()
	rec := presenter.NewRecorder()
	layer := presenter.NewLayer(rec, timeutil.NewManualClock(time.Now()), presenter.DefaultStyle())
	ctrl := NewController(provider, nil, layer, scenario())
	require.NoError(t, ctrl.Start(context.Background()))
	assert.Equal(t, 1, ctrl.Passes())
	rec.Drain()

	provider.broken = true
	_, _, ok := ctrl.Recompute()
	assert.False(t, ok)
	assert.Equal(t, cluster.RepresentativeSet{"A": false, "B": true, "C": true}, ctrl.Representatives())
	assert.Equal(t, cluster.RepresentativeSet{"A": false, "B": true, "C": true}, layer.Current())
	assert.Empty(t, rec.Drain())
}

func TestControllerLoadFailure(t *testing.T) {
	f := newFixture(View{Center: la.Center, Zoom: 40, Width: 10, Height: 10}, scenario())

	err := f.ctrl.Start(context.Background())
	require.ErrorIs(t, err, ErrProviderInit)
	status, statusErr := f.ctrl.Status()
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, err, statusErr)
	assert.Equal(t, 0, f.ctrl.Layer().Len())
	assert.Empty(t, f.rec.Live())

	// Not retried.
	assert.Equal(t, err, f.ctrl.Start(context.Background()))
	f.viewport.MarkReady()
	assert.Equal(t, 0, f.ctrl.Passes())
}

func TestControllerStop(t *testing.T) {
	f := newFixture(la, scenario())
	require.NoError(t, f.ctrl.Start(context.Background()))
	f.viewport.MarkReady()

	f.ctrl.Stop()
	assert.Empty(t, f.rec.Live())
	status, _ := f.ctrl.Status()
	assert.Equal(t, StatusStopped, status)

	f.viewport.Settle()
	assert.Equal(t, 1, f.ctrl.Passes())
	assert.Error(t, f.ctrl.Start(context.Background()))
}

func TestControllerSummary(t *testing.T) {
	f := newFixture(la, scenario())
	require.NoError(t, f.ctrl.Start(context.Background()))

	_, err := f.ctrl.Summary()
	assert.ErrorIs(t, err, cluster.ErrProjectionUnavailable)

	f.viewport.MarkReady()
	summary, err := f.ctrl.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalEvents)
	assert.Equal(t, 1, summary.NumClusters)
	assert.Equal(t, 1, summary.NumSingletons)
	assert.Equal(t, 2, summary.Representatives)
}

func keys[K comparable, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "viewport-settled", ViewportSettled.String())
}
