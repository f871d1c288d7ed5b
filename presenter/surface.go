package presenter

import (
	"time"
)

// NodeKind distinguishes the permanent dot from the enriched overlay.
type NodeKind string

const (
	KindDot     NodeKind = "dot"
	KindOverlay NodeKind = "overlay"
)

// NodeRef identifies one mounted node. Gen increases every time a marker
// mounts a fresh overlay, so a late removal can never hit a newer node.
type NodeRef struct {
	EventID string   `json:"eventId"`
	Kind    NodeKind `json:"kind"`
	Gen     uint64   `json:"gen"`
}

// Animation scales opacity and size together from From to To.
type Animation struct {
	From     float64       `json:"from"`
	To       float64       `json:"to"`
	Duration time.Duration `json:"duration"`
}

// Node is the content of a mounted element.
type Node struct {
	Ref      NodeRef    `json:"ref"`
	Title    string     `json:"title,omitempty"`
	ImageURL string     `json:"imageUrl,omitempty"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	Enter    *Animation `json:"enter,omitempty"`
}

// Box is an absolute screen rectangle.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Surface is the rendering capability a marker drives. Implementations
// must tolerate calls for refs they no longer hold.
type Surface interface {
	// Mount creates the node, playing n.Enter if set.
	Mount(n Node) error

	// Reposition moves a mounted node.
	Reposition(ref NodeRef, box Box)

	// BeginExit starts the exit animation. The node stays until RemoveNow.
	BeginExit(ref NodeRef, anim Animation)

	// RemoveNow detaches the node immediately.
	RemoveNow(ref NodeRef)
}
