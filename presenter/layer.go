package presenter

import (
	"sync"

	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/internal/monitoring"
	"github.com/s3kfm/lezhure-maps/internal/timeutil"
)

// Layer owns one Marker per event and applies representative sets to them.
type Layer struct {
	mu sync.Mutex

	surface Surface
	clock   timeutil.Clock
	style   Style

	markers map[string]*Marker
	order   []string
	current cluster.RepresentativeSet
}

// NewLayer creates an empty layer drawing on surface.
func NewLayer(surface Surface, clock timeutil.Clock, style Style) *Layer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Layer{
		surface: surface,
		clock:   clock,
		style:   style,
		markers: make(map[string]*Marker),
		current: cluster.RepresentativeSet{},
	}
}

// Mount creates and mounts a marker for each event not already present.
// A marker that fails to mount is logged and left out; the rest still
// mount. It returns the number of markers mounted.
func (l *Layer) Mount(events []cluster.Event, set cluster.RepresentativeSet) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, ev := range events {
		if _, ok := l.markers[ev.ID]; ok {
			continue
		}
		m := NewMarker(ev, l.surface, l.clock, l.style)
		if err := m.Mount(set[ev.ID]); err != nil {
			monitoring.Logf("presenter: %v", err)
			continue
		}
		l.markers[ev.ID] = m
		l.order = append(l.order, ev.ID)
		n++
	}
	for id, rep := range set {
		if _, ok := l.markers[id]; ok {
			l.current[id] = rep
		}
	}
	return n
}

// Sync applies set and returns the event IDs whose overlay was added and
// removed. IDs missing from set are treated as non-representatives.
func (l *Layer) Sync(set cluster.RepresentativeSet) (entered, exited []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make(cluster.RepresentativeSet, len(set))
	for id, rep := range set {
		if _, ok := l.markers[id]; ok {
			next[id] = rep
		}
	}
	entered, exited = next.Diff(l.current)

	// Update is a no-op for markers already in the wanted state, so every
	// marker is visited; an overlay that failed to mount gets another try.
	for _, id := range l.order {
		l.markers[id].Update(next[id])
	}
	l.current = next
	return entered, exited
}

// Draw repositions every marker using the projector's pixel projection.
// Markers that cannot be projected keep their last position.
func (l *Layer) Draw(p cluster.Projector) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p == nil {
		return
	}
	for _, id := range l.order {
		m := l.markers[id]
		pt, ok := p.ProjectToPixel(m.Event().Position())
		if !ok {
			continue
		}
		m.Draw(pt)
	}
}

// Select returns the detail view for the event with the given id.
func (l *Layer) Select(id string) (Detail, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.markers[id]
	if !ok {
		return Detail{}, false
	}
	return NewDetail(m.Event()), true
}

// Current returns a copy of the last applied representative set.
func (l *Layer) Current() cluster.RepresentativeSet {
	l.mu.Lock()
	defer l.mu.Unlock()

	set := make(cluster.RepresentativeSet, len(l.current))
	for id, rep := range l.current {
		set[id] = rep
	}
	return set
}

// States returns the overlay state of every marker.
func (l *Layer) States() map[string]State {
	l.mu.Lock()
	defer l.mu.Unlock()

	states := make(map[string]State, len(l.markers))
	for id, m := range l.markers {
		states[id] = m.State()
	}
	return states
}

// Len returns the number of mounted markers.
func (l *Layer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.markers)
}

// Close unmounts every marker immediately.
func (l *Layer) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range l.order {
		l.markers[id].Unmount()
	}
	l.markers = make(map[string]*Marker)
	l.order = nil
	l.current = cluster.RepresentativeSet{}
}
