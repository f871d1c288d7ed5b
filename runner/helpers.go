package runner

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/mapsvc"
	"github.com/s3kfm/lezhure-maps/mapview"
)

var (
	// ErrSessionNotFound is returned for unknown or evicted session ids.
	ErrSessionNotFound = errors.New("runner: session not found")

	// ErrEventNotFound is returned when a session has no event with the id.
	ErrEventNotFound = errors.New("runner: event not found")

	// ErrNoEventSource is returned when a session asks for the default
	// catalog and the runner was started without one.
	ErrNoEventSource = errors.New("runner: no event source")
)

// codedError carries a gRPC status code while still unwrapping to the
// underlying error, so in-process callers can use errors.Is.
type codedError struct {
	code codes.Code
	err  error
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func (e *codedError) GRPCStatus() *status.Status {
	return status.New(e.code, e.err.Error())
}

func withCode(code codes.Code, err error) error {
	return &codedError{code: code, err: err}
}

func sessionNotFound(id string) error {
	return withCode(codes.NotFound, fmt.Errorf("%w: %s", ErrSessionNotFound, id))
}

// toSessionInfo converts a session to its wire form. Callers hold s.mu.
func (s *session) toSessionInfo() mapsvc.SessionInfo {
	st, _ := s.ctrl.Status()
	return mapsvc.SessionInfo{
		ID:         s.id,
		Source:     s.source,
		NumEvents:  s.numEvents,
		View:       s.viewport.View(),
		Status:     st.String(),
		Passes:     s.ctrl.Passes(),
		CreatedAt:  s.createdAt,
		LastAccess: s.lastAccess,
	}
}

// defaultView fills the zero fields of v from the runner's config. A zero
// zoom counts as unset; clients reach zoom 0 through Settle.
func (r *MapRunner) defaultView(v *mapview.View) mapview.View {
	w, h := r.cfg.GetViewportSize()
	view := mapview.View{
		Center: r.cfg.GetCenter(),
		Zoom:   r.cfg.GetZoom(),
		Width:  w,
		Height: h,
	}
	if v == nil {
		return view
	}
	if v.Center != (cluster.LatLng{}) {
		view.Center = v.Center
	}
	if v.Zoom != 0 {
		view.Zoom = v.Zoom
	}
	if v.Width != 0 {
		view.Width = v.Width
	}
	if v.Height != 0 {
		view.Height = v.Height
	}
	return view
}
