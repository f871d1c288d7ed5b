package presenter

import (
	"time"

	"github.com/s3kfm/lezhure-maps/cluster"
)

// Style holds the visual parameters shared by every marker.
type Style struct {
	DotSize       float64
	ImageSize     float64
	TitleHeight   float64
	TitleMaxWidth float64
	// Gap between the overlay's bottom edge and the dot's top edge.
	Gap float64
	// EntryScale is the starting scale and opacity of the entry animation
	// and the final one of the exit animation.
	EntryScale    float64
	EnterDuration time.Duration
	ExitDuration  time.Duration
}

// DefaultStyle returns the production look: 16px dot, 24px thumbnail.
func DefaultStyle() Style {
	return Style{
		DotSize:       16,
		ImageSize:     24,
		TitleHeight:   14,
		TitleMaxWidth: 80,
		Gap:           4,
		EntryScale:    0.8,
		EnterDuration: 250 * time.Millisecond,
		ExitDuration:  250 * time.Millisecond,
	}
}

func (s Style) overlaySize(hasImage bool) (w, h float64) {
	if hasImage {
		return s.ImageSize, s.ImageSize + s.TitleHeight
	}
	return s.TitleMaxWidth, s.TitleHeight
}

func (s Style) dotBox(p cluster.Point) Box {
	return Box{
		Left:   p.X - s.DotSize/2,
		Top:    p.Y - s.DotSize/2,
		Width:  s.DotSize,
		Height: s.DotSize,
	}
}

// overlayBox centres the overlay horizontally on the dot and puts its
// bottom edge Gap pixels above the dot.
func (s Style) overlayBox(p cluster.Point, hasImage bool) Box {
	w, h := s.overlaySize(hasImage)
	return Box{
		Left:   p.X - w/2,
		Top:    p.Y - s.DotSize/2 - s.Gap - h,
		Width:  w,
		Height: h,
	}
}

func (s Style) enterAnimation() Animation {
	return Animation{From: s.EntryScale, To: 1, Duration: s.EnterDuration}
}

func (s Style) exitAnimation() Animation {
	return Animation{From: 1, To: s.EntryScale, Duration: s.ExitDuration}
}
