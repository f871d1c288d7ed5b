package cluster

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/s3kfm/lezhure-maps/internal/monitoring"
)

// DefaultDistance is the pixel threshold under which two markers overlap.
const DefaultDistance = 50

// ErrProjectionUnavailable is returned when the projector cannot place the
// events yet. Callers keep their previous selection.
var ErrProjectionUnavailable = errors.New("cluster: projection unavailable")

// Options configures the engine.
type Options struct {
	// Distance is the anchor distance threshold in screen pixels. Members
	// must be strictly closer than this.
	Distance float64

	// ScaleByZoom multiplies world points by 2^zoom before comparing. Turn
	// it off when the projector already returns zoom-scaled pixels.
	ScaleByZoom bool

	Log bool
}

// DefaultOptions returns the production clustering options.
func DefaultOptions() Options {
	return Options{
		Distance:    DefaultDistance,
		ScaleByZoom: true,
	}
}

// Cluster is one group of visually coincident events. Members holds indices
// into the input slice, in input order; the first member is the anchor.
type Cluster struct {
	Anchor         Point
	Members        []int
	Representative int
}

// RepresentativeSet maps event ID to whether the event shows its overlay.
type RepresentativeSet map[string]bool

// Representatives returns the IDs marked true, sorted.
func (s RepresentativeSet) Representatives() []string {
	ids := make([]string, 0, len(s))
	for id, rep := range s {
		if rep {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Diff returns the IDs that became representatives and the IDs that stopped
// being representatives relative to prev. Missing entries count as false.
func (s RepresentativeSet) Diff(prev RepresentativeSet) (entered, exited []string) {
	for id, rep := range s {
		if rep && !prev[id] {
			entered = append(entered, id)
		}
	}
	for id, rep := range prev {
		if rep && !s[id] {
			exited = append(exited, id)
		}
	}
	sort.Strings(entered)
	sort.Strings(exited)
	return entered, exited
}

// Engine partitions events into screen-space clusters and picks one
// representative per cluster.
type Engine struct {
	Options Options
}

// NewEngine creates an engine, filling in defaults for unset options.
func NewEngine(options Options) *Engine {
	if options.Distance <= 0 {
		options.Distance = DefaultDistance
	}
	return &Engine{Options: options}
}

// SelectRepresentatives runs one clustering pass with default options.
func SelectRepresentatives(events []Event, p Projector, zoom int) (RepresentativeSet, bool) {
	return NewEngine(DefaultOptions()).SelectRepresentatives(events, p, zoom)
}

// SelectRepresentatives returns the representative set for events at zoom.
// It reports false, with no selections, when the projection is unavailable.
func (e *Engine) SelectRepresentatives(events []Event, p Projector, zoom int) (RepresentativeSet, bool) {
	clusters, err := e.Partition(events, p, zoom)
	if err != nil {
		if e.Options.Log {
			monitoring.Logf("cluster: keeping previous selection: %v", err)
		}
		return nil, false
	}

	set := make(RepresentativeSet, len(events))
	for _, c := range clusters {
		for _, idx := range c.Members {
			set[events[idx].ID] = idx == c.Representative
		}
	}
	return set, true
}

// Partition groups events greedily by distance to each cluster's anchor.
//
// Membership is tested against the anchor only, never the nearest member or
// a centroid, so chains of nearby events may or may not merge depending on
// input order.
func (e *Engine) Partition(events []Event, p Projector, zoom int) ([]Cluster, error) {
	if len(events) == 0 {
		return nil, nil
	}
	if p == nil {
		return nil, ErrProjectionUnavailable
	}
	if r, ok := p.(readiness); ok && !r.Ready() {
		return nil, ErrProjectionUnavailable
	}

	scale := 1.0
	if e.Options.ScaleByZoom {
		scale = ZoomScale(zoom)
	}

	var clusters []Cluster
	projected := 0
	for i, ev := range events {
		world, ok := p.ProjectToPoint(ev.Position())
		if !ok {
			monitoring.Logf("cluster: skipping event %s: cannot project (%f,%f)",
				ev.ID, ev.Latitude, ev.Longitude)
			continue
		}
		projected++
		pt := r2.Vec{X: world.X * scale, Y: world.Y * scale}

		// Join the first cluster whose anchor is close enough
		added := false
		for c := range clusters {
			anchor := r2.Vec{X: clusters[c].Anchor.X, Y: clusters[c].Anchor.Y}
			if r2.Norm(r2.Sub(pt, anchor)) < e.Options.Distance {
				clusters[c].Members = append(clusters[c].Members, i)
				added = true
				break
			}
		}
		if !added {
			clusters = append(clusters, Cluster{
				Anchor:  Point{X: pt.X, Y: pt.Y},
				Members: []int{i},
			})
		}
	}

	if projected == 0 {
		return nil, ErrProjectionUnavailable
	}

	for c := range clusters {
		clusters[c].Representative = earliest(events, clusters[c].Members)
	}

	if e.Options.Log {
		monitoring.Logf("cluster: %d events -> %d clusters at zoom %d", projected, len(clusters), zoom)
	}
	return clusters, nil
}

// earliest returns the member with the strictly smallest start time. Ties
// and NaN comparisons keep the earlier member.
func earliest(events []Event, members []int) int {
	best := members[0]
	bestT := events[best].StartMillis()
	for _, idx := range members[1:] {
		t := events[idx].StartMillis()
		if t < bestT {
			best, bestT = idx, t
		}
	}
	return best
}
