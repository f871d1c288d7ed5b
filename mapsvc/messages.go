package mapsvc

import (
	"time"

	"github.com/s3kfm/lezhure-maps/catalog"
	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/mapview"
	"github.com/s3kfm/lezhure-maps/presenter"
)

// SessionInfo describes one live map session.
type SessionInfo struct {
	ID         string       `json:"id"`
	Source     string       `json:"source"`
	NumEvents  int          `json:"numEvents"`
	View       mapview.View `json:"view"`
	Status     string       `json:"status"`
	Passes     int          `json:"passes"`
	CreatedAt  time.Time    `json:"createdAt"`
	LastAccess time.Time    `json:"lastAccess"`
}

// CreateSessionRequest opens a session. The event source is, in order of
// precedence: a saved snapshot, NumEvents freshly generated events (saved
// as a new snapshot), or the runner's default catalog.
type CreateSessionRequest struct {
	SnapshotID string        `json:"snapshotId,omitempty"`
	NumEvents  int           `json:"numEvents,omitempty"`
	View       *mapview.View `json:"view,omitempty"`
}

type CreateSessionResponse struct {
	Session SessionInfo `json:"session"`
}

// SettleRequest reports that the client's viewport stopped moving. View,
// when set, is applied before the settle notification.
type SettleRequest struct {
	SessionID string        `json:"sessionId"`
	View      *mapview.View `json:"view,omitempty"`
}

type SettleResponse struct {
	// Applied is false when the projection was unavailable and the previous
	// selection was kept.
	Applied         bool     `json:"applied"`
	Entered         []string `json:"entered,omitempty"`
	Exited          []string `json:"exited,omitempty"`
	Representatives []string `json:"representatives"`
}

type DrainRequest struct {
	SessionID string `json:"sessionId"`
}

// DrainResponse carries the surface operations recorded since the last
// drain, in order.
type DrainResponse struct {
	Ops  []presenter.Op `json:"ops"`
	Live int            `json:"live"`
}

type SelectRequest struct {
	SessionID string `json:"sessionId"`
	EventID   string `json:"eventId"`
}

type SelectResponse struct {
	Detail presenter.Detail `json:"detail"`
}

type SummaryRequest struct {
	SessionID string `json:"sessionId"`
}

type SummaryResponse struct {
	Summary cluster.Summary `json:"summary"`
}

type CloseSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type CloseSessionResponse struct{}

type ListSessionsRequest struct{}

type ListSessionsResponse struct {
	Sessions  []SessionInfo          `json:"sessions"`
	Snapshots []catalog.SnapshotInfo `json:"snapshots,omitempty"`
}
