package presenter

import (
	"math"
	"time"

	"github.com/s3kfm/lezhure-maps/cluster"
)

// Detail is the content of the event detail panel opened by clicking a
// marker.
type Detail struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	StartTime    string       `json:"startTime"`
	StartsAt     *time.Time   `json:"startsAt,omitempty"`
	When         string       `json:"when,omitempty"`
	Description  string       `json:"description,omitempty"`
	ImageURL     string       `json:"imageUrl,omitempty"`
	LocationName string       `json:"locationName,omitempty"`
	DistanceKm   float64      `json:"distanceKm,omitempty"`
	Host         cluster.Host `json:"host"`
	Tags         []string     `json:"tags,omitempty"`
}

// NewDetail builds the detail view for ev. Unparseable start times are
// passed through raw with no formatted form.
func NewDetail(ev cluster.Event) Detail {
	d := Detail{
		ID:           ev.ID,
		Title:        ev.Title,
		StartTime:    ev.StartTime,
		Description:  ev.Description,
		ImageURL:     ev.PrimaryImageURL(),
		LocationName: ev.LocationName,
		DistanceKm:   ev.DistanceKm,
		Host:         ev.Host,
	}
	if ms := ev.StartMillis(); !math.IsNaN(ms) {
		t := time.UnixMilli(int64(ms)).UTC()
		d.StartsAt = &t
		d.When = t.Format("Mon, Jan 2 · 3:04 PM")
	}
	for _, tag := range ev.Tags {
		d.Tags = append(d.Tags, tag.Name)
	}
	return d
}
