package mapview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/internal/monitoring"
	"github.com/s3kfm/lezhure-maps/presenter"
)

// Status is the lifecycle state of a Controller.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	case StatusStopped:
		return "stopped"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Controller runs the settle → cluster → present loop for one map.
type Controller struct {
	mu sync.Mutex

	provider Provider
	engine   *cluster.Engine
	layer    *presenter.Layer
	events   []cluster.Event

	status   Status
	err      error
	lastGood cluster.RepresentativeSet
	passes   int
	cancels  []func()
}

// NewController wires provider, engine, and layer for events.
func NewController(provider Provider, engine *cluster.Engine, layer *presenter.Layer, events []cluster.Event) *Controller {
	if engine == nil {
		engine = cluster.NewEngine(cluster.DefaultOptions())
	}
	return &Controller{
		provider: provider,
		engine:   engine,
		layer:    layer,
		events:   events,
	}
}

// Start loads the provider, mounts every marker, runs the first clustering
// pass, and subscribes to provider notifications. A load failure leaves the
// controller failed with nothing mounted; it is not retried.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status {
	case StatusFailed:
		return c.err
	case StatusReady:
		return nil
	case StatusStopped:
		return errors.New("mapview: controller stopped")
	}

	if loader, ok := c.provider.(Loader); ok {
		if err := loader.Load(ctx); err != nil {
			if !errors.Is(err, ErrProviderInit) {
				err = fmt.Errorf("%w: %v", ErrProviderInit, err)
			}
			c.status = StatusFailed
			c.err = err
			monitoring.Logf("mapview: %v", err)
			return err
		}
	}

	// Until the projection is ready every marker starts as a plain dot.
	set, ok := c.engine.SelectRepresentatives(c.events, c.provider, c.provider.Zoom())
	if ok {
		c.lastGood = set
		c.passes++
	}
	c.layer.Mount(c.events, set)
	c.layer.Draw(c.provider)

	c.cancels = append(c.cancels,
		c.provider.Subscribe(ProjectionReady, func() { c.Recompute() }),
		c.provider.Subscribe(ViewportSettled, func() { c.Recompute() }),
		c.provider.Subscribe(ViewChanged, func() { c.layer.Draw(c.provider) }),
	)
	c.status = StatusReady
	return nil
}

// Recompute runs one clustering pass and applies it. When the projection is
// unavailable the previous selection stays on screen and ok is false.
func (c *Controller) Recompute() (entered, exited []string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusReady {
		return nil, nil, false
	}
	set, ok := c.engine.SelectRepresentatives(c.events, c.provider, c.provider.Zoom())
	if !ok {
		return nil, nil, false
	}
	entered, exited = c.layer.Sync(set)
	c.layer.Draw(c.provider)
	c.lastGood = set
	c.passes++
	return entered, exited, true
}

// Summary partitions the events at the current zoom and summarises the
// result.
func (c *Controller) Summary() (cluster.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	clusters, err := c.engine.Partition(c.events, c.provider, c.provider.Zoom())
	if err != nil {
		return cluster.Summary{}, err
	}
	return cluster.Summarize(c.events, clusters), nil
}

// Representatives returns a copy of the last successfully computed set.
func (c *Controller) Representatives() cluster.RepresentativeSet {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := make(cluster.RepresentativeSet, len(c.lastGood))
	for id, rep := range c.lastGood {
		set[id] = rep
	}
	return set
}

// Passes returns the number of successful clustering passes.
func (c *Controller) Passes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.passes
}

// Status returns the lifecycle state and, when failed, the load error.
func (c *Controller) Status() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.err
}

// Layer returns the marker layer the controller drives.
func (c *Controller) Layer() *presenter.Layer {
	return c.layer
}

// Stop unsubscribes from the provider and unmounts every marker.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	wasReady := c.status == StatusReady
	if c.status != StatusFailed {
		c.status = StatusStopped
	}
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if wasReady {
		c.layer.Close()
	}
}
