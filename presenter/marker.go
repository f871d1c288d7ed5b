package presenter

import (
	"fmt"
	"sync"

	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/internal/monitoring"
	"github.com/s3kfm/lezhure-maps/internal/timeutil"
)

// State is the overlay lifecycle of a marker.
type State int

const (
	Hidden State = iota
	Entering
	Shown
	Exiting
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Entering:
		return "entering"
	case Shown:
		return "shown"
	case Exiting:
		return "exiting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Marker renders one event: a dot that is always present and an overlay
// that is present only while the event is a representative.
//
// Marker methods are safe for concurrent use; timer callbacks take the same
// lock and drop themselves if the overlay generation moved on.
type Marker struct {
	mu sync.Mutex

	event   cluster.Event
	image   string
	style   Style
	surface Surface
	clock   timeutil.Clock

	mounted bool
	state   State
	gen     uint64
	timer   timeutil.Timer
	pixel   *cluster.Point
}

// NewMarker creates an unmounted marker for ev.
func NewMarker(ev cluster.Event, surface Surface, clock timeutil.Clock, style Style) *Marker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Marker{
		event:   ev,
		image:   ev.PrimaryImageURL(),
		style:   style,
		surface: surface,
		clock:   clock,
	}
}

// Event returns the event the marker renders.
func (m *Marker) Event() cluster.Event {
	return m.event
}

// State returns the current overlay state.
func (m *Marker) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Mounted reports whether the dot is on the surface.
func (m *Marker) Mounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

func (m *Marker) dotRef() NodeRef {
	return NodeRef{EventID: m.event.ID, Kind: KindDot}
}

func (m *Marker) overlayRef() NodeRef {
	return NodeRef{EventID: m.event.ID, Kind: KindOverlay, Gen: m.gen}
}

// Mount attaches the dot, and the overlay when isRep. Mounting twice is a
// no-op.
func (m *Marker) Mount(isRep bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mounted {
		return nil
	}
	err := m.surface.Mount(Node{
		Ref:    m.dotRef(),
		Title:  m.event.Title,
		Width:  m.style.DotSize,
		Height: m.style.DotSize,
	})
	if err != nil {
		return fmt.Errorf("mount dot %s: %w", m.event.ID, err)
	}
	m.mounted = true

	if isRep {
		m.show()
	}
	return nil
}

// Update applies a new representative flag.
func (m *Marker) Update(isRep bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.mounted {
		return
	}
	switch {
	case isRep && (m.state == Hidden || m.state == Exiting):
		m.show()
	case !isRep && (m.state == Entering || m.state == Shown):
		m.hide()
	}
}

// Draw positions the dot on p and the overlay above it.
func (m *Marker) Draw(p cluster.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pixel = &p
	if !m.mounted {
		return
	}
	m.surface.Reposition(m.dotRef(), m.style.dotBox(p))
	if m.state != Hidden {
		m.surface.Reposition(m.overlayRef(), m.style.overlayBox(p, m.image != ""))
	}
}

// Unmount removes everything immediately, without exit animation.
func (m *Marker) Unmount() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimer()
	if m.state != Hidden {
		m.surface.RemoveNow(m.overlayRef())
	}
	if m.mounted {
		m.surface.RemoveNow(m.dotRef())
	}
	m.state = Hidden
	m.mounted = false
	m.gen++
}

func (m *Marker) show() {
	m.stopTimer()
	if m.state == Exiting {
		m.surface.RemoveNow(m.overlayRef())
	}

	m.gen++
	w, h := m.style.overlaySize(m.image != "")
	enter := m.style.enterAnimation()
	err := m.surface.Mount(Node{
		Ref:      m.overlayRef(),
		Title:    m.event.Title,
		ImageURL: m.image,
		Width:    w,
		Height:   h,
		Enter:    &enter,
	})
	if err != nil {
		monitoring.Logf("presenter: mount overlay %s: %v", m.event.ID, err)
		m.state = Hidden
		return
	}
	m.state = Entering
	if m.pixel != nil {
		m.surface.Reposition(m.overlayRef(), m.style.overlayBox(*m.pixel, m.image != ""))
	}

	gen := m.gen
	m.timer = m.clock.AfterFunc(m.style.EnterDuration, func() { m.entered(gen) })
}

func (m *Marker) hide() {
	m.stopTimer()
	m.state = Exiting
	m.surface.BeginExit(m.overlayRef(), m.style.exitAnimation())

	gen := m.gen
	m.timer = m.clock.AfterFunc(m.style.ExitDuration, func() { m.exited(gen) })
}

func (m *Marker) entered(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.state != Entering {
		return
	}
	m.state = Shown
	m.timer = nil
}

func (m *Marker) exited(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.state != Exiting {
		return
	}
	m.surface.RemoveNow(m.overlayRef())
	m.state = Hidden
	m.timer = nil
}

func (m *Marker) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
