// Package runner serves map sessions over gRPC. A session pairs an event
// list with a server-side viewport and a recorded marker layer.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"

	"github.com/s3kfm/lezhure-maps/catalog"
	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/internal/config"
	"github.com/s3kfm/lezhure-maps/internal/monitoring"
	"github.com/s3kfm/lezhure-maps/internal/timeutil"
	"github.com/s3kfm/lezhure-maps/mapsvc"
	"github.com/s3kfm/lezhure-maps/mapview"
	"github.com/s3kfm/lezhure-maps/presenter"
)

type session struct {
	mu sync.Mutex

	id         string
	source     string
	numEvents  int
	viewport   *mapview.Viewport
	recorder   *presenter.Recorder
	ctrl       *mapview.Controller
	createdAt  time.Time
	lastAccess time.Time
}

// Options configures a MapRunner.
type Options struct {
	// MaxSessions bounds the live sessions; the least recently used one is
	// closed to make room.
	MaxSessions int

	// Catalog is the default event source.
	Catalog *catalog.Catalog

	// DataDir holds event snapshots. Generated event sets are saved there.
	DataDir string

	Config *config.VisualConfig

	// Clock drives marker animations and idle eviction.
	Clock timeutil.Clock
}

// MapRunner implements mapsvc.MapService.
type MapRunner struct {
	sessions    map[string]*session
	sessionLock sync.RWMutex
	maxSessions int

	catalog *catalog.Catalog
	dataDir string
	cfg     *config.VisualConfig
	clock   timeutil.Clock

	// loads bounds concurrent snapshot loads and event generation; loading
	// deduplicates concurrent loads of the same snapshot.
	loads   *semaphore.Weighted
	loading singleflight.Group

	stop     chan struct{}
	stopOnce sync.Once
}

// maxConcurrentLoads caps the snapshot decodes and generations in flight.
const maxConcurrentLoads = 2

var _ mapsvc.MapService = (*MapRunner)(nil)

// NewMapRunner creates a runner and starts its idle session sweeper.
func NewMapRunner(opts Options) *MapRunner {
	if opts.Config == nil {
		opts.Config = &config.VisualConfig{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = opts.Config.GetMaxSessions()
	}

	runner := &MapRunner{
		sessions:    make(map[string]*session),
		maxSessions: opts.MaxSessions,
		catalog:     opts.Catalog,
		dataDir:     opts.DataDir,
		cfg:         opts.Config,
		clock:       opts.Clock,
		loads:       semaphore.NewWeighted(maxConcurrentLoads),
		stop:        make(chan struct{}),
	}

	go runner.cleanupInactiveSessions(opts.Config.GetCleanupInterval())

	return runner
}

// Close stops the sweeper and closes every session.
func (r *MapRunner) Close() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.sessionLock.Lock()
	defer r.sessionLock.Unlock()
	for id, s := range r.sessions {
		s.ctrl.Stop()
		delete(r.sessions, id)
	}
}

func (r *MapRunner) cleanupInactiveSessions(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

// evictIdle closes sessions unused for longer than the configured idle time.
func (r *MapRunner) evictIdle() int {
	idle := r.cfg.GetSessionIdle()
	now := r.clock.Now()

	r.sessionLock.Lock()
	defer r.sessionLock.Unlock()

	var toRemove []string
	for id, s := range r.sessions {
		s.mu.Lock()
		if now.Sub(s.lastAccess) > idle {
			toRemove = append(toRemove, id)
		}
		s.mu.Unlock()
	}
	for _, id := range toRemove {
		r.sessions[id].ctrl.Stop()
		delete(r.sessions, id)
		monitoring.Logf("runner: closed idle session %s", id)
	}
	return len(toRemove)
}

// evictOldest closes the least recently used session. Callers hold
// sessionLock.
func (r *MapRunner) evictOldest() {
	var oldestID string
	var oldestTime time.Time
	first := true

	for id, s := range r.sessions {
		s.mu.Lock()
		accessTime := s.lastAccess
		s.mu.Unlock()
		if first || accessTime.Before(oldestTime) {
			oldestID = id
			oldestTime = accessTime
			first = false
		}
	}

	if oldestID != "" {
		r.sessions[oldestID].ctrl.Stop()
		delete(r.sessions, oldestID)
		monitoring.Logf("runner: evicted session %s", oldestID)
	}
}

// getSession returns the session and marks it used.
func (r *MapRunner) getSession(id string) (*session, error) {
	r.sessionLock.RLock()
	s, ok := r.sessions[id]
	r.sessionLock.RUnlock()
	if !ok {
		return nil, sessionNotFound(id)
	}

	s.mu.Lock()
	s.lastAccess = r.clock.Now()
	s.mu.Unlock()
	return s, nil
}

// loadSnapshot decodes the snapshot with the given id. Concurrent requests
// for the same id share one decode.
func (r *MapRunner) loadSnapshot(ctx context.Context, id string) (*catalog.Catalog, error) {
	v, err, _ := r.loading.Do(id, func() (any, error) {
		info, err := catalog.FindSnapshot(r.dataDir, id)
		if err != nil {
			if errors.Is(err, catalog.ErrSnapshotNotFound) || errors.Is(err, fs.ErrNotExist) {
				return nil, withCode(codes.NotFound, err)
			}
			return nil, err
		}

		if err := r.loads.Acquire(ctx, 1); err != nil {
			return nil, withCode(codes.ResourceExhausted, fmt.Errorf("snapshot load queue full: %w", err))
		}
		defer r.loads.Release(1)

		c, err := catalog.LoadSnapshotMapped(info.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot %s: %w", info.ID, err)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*catalog.Catalog), nil
}

// resolveEvents picks the event source for a new session.
func (r *MapRunner) resolveEvents(ctx context.Context, req *mapsvc.CreateSessionRequest, view mapview.View) (*catalog.Catalog, string, error) {
	switch {
	case req.SnapshotID != "":
		if r.dataDir == "" {
			return nil, "", withCode(codes.NotFound, fmt.Errorf("%w: %s", catalog.ErrSnapshotNotFound, req.SnapshotID))
		}
		c, err := r.loadSnapshot(ctx, req.SnapshotID)
		if err != nil {
			return nil, "", err
		}
		return c, "snapshot:" + req.SnapshotID, nil

	case req.NumEvents > 0:
		if err := r.loads.Acquire(ctx, 1); err != nil {
			return nil, "", withCode(codes.ResourceExhausted, fmt.Errorf("event generation queue full: %w", err))
		}
		defer r.loads.Release(1)

		monitoring.Logf("runner: generating %d events around (%f,%f)", req.NumEvents, view.Center.Lat, view.Center.Lng)
		bounds := cluster.Bounds{
			MinLat: view.Center.Lat - 0.25,
			MinLng: view.Center.Lng - 0.25,
			MaxLat: view.Center.Lat + 0.25,
			MaxLng: view.Center.Lng + 0.25,
		}
		c, err := catalog.New(cluster.GenerateTestEvents(req.NumEvents, bounds, r.clock.Now().UnixNano()))
		if err != nil {
			return nil, "", err
		}
		if r.dataDir == "" {
			return c, "generated", nil
		}

		savePath := catalog.SnapshotFilename(r.dataDir, c.Len())
		monitoring.Logf("runner: saving generated events to %s", savePath)
		if err := catalog.SaveSnapshot(savePath, c); err != nil {
			return nil, "", fmt.Errorf("failed to save snapshot: %w", err)
		}
		info, ok := catalog.ParseSnapshotName(filepath.Base(savePath))
		if !ok {
			return nil, "", fmt.Errorf("saved snapshot has unparseable name %s", filepath.Base(savePath))
		}
		return c, "snapshot:" + info.ID, nil

	case r.catalog != nil:
		return r.catalog, "default", nil
	}
	return nil, "", withCode(codes.FailedPrecondition, ErrNoEventSource)
}

func (r *MapRunner) CreateSession(ctx context.Context, req *mapsvc.CreateSessionRequest) (*mapsvc.CreateSessionResponse, error) {
	view := r.defaultView(req.View)
	if err := view.Validate(); err != nil {
		return nil, withCode(codes.InvalidArgument, fmt.Errorf("invalid view: %w", err))
	}
	if req.NumEvents < 0 {
		return nil, withCode(codes.InvalidArgument, fmt.Errorf("numEvents must not be negative, got %d", req.NumEvents))
	}

	c, source, err := r.resolveEvents(ctx, req, view)
	if err != nil {
		return nil, err
	}
	events := c.Events()

	viewport := mapview.NewViewport(view)
	recorder := presenter.NewRecorder()
	layer := presenter.NewLayer(recorder, r.clock, r.cfg.Style())
	ctrl := mapview.NewController(viewport, cluster.NewEngine(r.cfg.EngineOptions()), layer, events)
	if err := ctrl.Start(ctx); err != nil {
		return nil, withCode(codes.FailedPrecondition, err)
	}
	// The client has reported its viewport, so the projection is usable.
	viewport.MarkReady()

	now := r.clock.Now()
	s := &session{
		id:         uuid.New().String(),
		source:     source,
		numEvents:  len(events),
		viewport:   viewport,
		recorder:   recorder,
		ctrl:       ctrl,
		createdAt:  now,
		lastAccess: now,
	}

	r.sessionLock.Lock()
	if len(r.sessions) >= r.maxSessions {
		r.evictOldest()
	}
	r.sessions[s.id] = s
	r.sessionLock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return &mapsvc.CreateSessionResponse{Session: s.toSessionInfo()}, nil
}

func (r *MapRunner) Settle(ctx context.Context, req *mapsvc.SettleRequest) (*mapsvc.SettleResponse, error) {
	s, err := r.getSession(req.SessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.View != nil {
		if err := s.viewport.SetView(*req.View); err != nil {
			return nil, withCode(codes.InvalidArgument, fmt.Errorf("invalid view: %w", err))
		}
	}

	prev := s.ctrl.Representatives()
	passes := s.ctrl.Passes()
	s.viewport.Settle()
	next := s.ctrl.Representatives()

	entered, exited := next.Diff(prev)
	return &mapsvc.SettleResponse{
		Applied:         s.ctrl.Passes() > passes,
		Entered:         entered,
		Exited:          exited,
		Representatives: next.Representatives(),
	}, nil
}

func (r *MapRunner) Drain(ctx context.Context, req *mapsvc.DrainRequest) (*mapsvc.DrainResponse, error) {
	s, err := r.getSession(req.SessionID)
	if err != nil {
		return nil, err
	}
	ops := s.recorder.Drain()
	if ops == nil {
		ops = []presenter.Op{}
	}
	return &mapsvc.DrainResponse{Ops: ops, Live: len(s.recorder.Live())}, nil
}

func (r *MapRunner) Select(ctx context.Context, req *mapsvc.SelectRequest) (*mapsvc.SelectResponse, error) {
	s, err := r.getSession(req.SessionID)
	if err != nil {
		return nil, err
	}
	detail, ok := s.ctrl.Layer().Select(req.EventID)
	if !ok {
		return nil, withCode(codes.NotFound, fmt.Errorf("%w: %s", ErrEventNotFound, req.EventID))
	}
	return &mapsvc.SelectResponse{Detail: detail}, nil
}

func (r *MapRunner) Summary(ctx context.Context, req *mapsvc.SummaryRequest) (*mapsvc.SummaryResponse, error) {
	s, err := r.getSession(req.SessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, err := s.ctrl.Summary()
	if err != nil {
		return nil, withCode(codes.FailedPrecondition, err)
	}
	return &mapsvc.SummaryResponse{Summary: summary}, nil
}

func (r *MapRunner) CloseSession(ctx context.Context, req *mapsvc.CloseSessionRequest) (*mapsvc.CloseSessionResponse, error) {
	r.sessionLock.Lock()
	s, ok := r.sessions[req.SessionID]
	delete(r.sessions, req.SessionID)
	r.sessionLock.Unlock()
	if !ok {
		return nil, sessionNotFound(req.SessionID)
	}

	s.ctrl.Stop()
	return &mapsvc.CloseSessionResponse{}, nil
}

func (r *MapRunner) ListSessions(ctx context.Context, req *mapsvc.ListSessionsRequest) (*mapsvc.ListSessionsResponse, error) {
	r.sessionLock.RLock()
	infos := make([]mapsvc.SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		s.mu.Lock()
		infos = append(infos, s.toSessionInfo())
		s.mu.Unlock()
	}
	r.sessionLock.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})

	resp := &mapsvc.ListSessionsResponse{Sessions: infos}
	if r.dataDir != "" {
		snapshots, err := catalog.ListSnapshots(r.dataDir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		resp.Snapshots = snapshots
	}
	return resp, nil
}
