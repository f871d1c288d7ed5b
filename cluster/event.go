package cluster

import (
	"math"
	"strings"
	"time"
)

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Image is one picture attached to an event.
type Image struct {
	IsPrimary bool   `json:"is_primary"`
	URL       string `json:"url"`
}

// Host describes the organiser shown in the detail panel.
type Host struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	InstagramHandle string `json:"instagram_handle,omitempty"`
	Location        string `json:"location,omitempty"`
	Website         string `json:"website,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	Logo            string `json:"logo,omitempty"`
}

// Tag is a filter label attached to an event.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Event is one geo-tagged entry of the event list. Events are treated as
// immutable for the lifetime of a render pass.
type Event struct {
	ID           string  `json:"id"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	StartTime    string  `json:"start_time"`
	Title        string  `json:"title"`
	Images       []Image `json:"images,omitempty"`
	Description  string  `json:"description,omitempty"`
	LocationName string  `json:"location_name,omitempty"`
	DistanceKm   float64 `json:"distance_km,omitempty"`
	Host         Host    `json:"host"`
	Tags         []Tag   `json:"filters,omitempty"`
}

// Position returns the event coordinate.
func (e Event) Position() LatLng {
	return LatLng{Lat: e.Latitude, Lng: e.Longitude}
}

// PrimaryImageURL returns the image flagged primary, falling back to the
// first image. Empty means the overlay renders title only.
func (e Event) PrimaryImageURL() string {
	for _, img := range e.Images {
		if img.IsPrimary && img.URL != "" {
			return img.URL
		}
	}
	if len(e.Images) > 0 {
		return e.Images[0].URL
	}
	return ""
}

var startTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// StartMillis parses StartTime into Unix milliseconds. Unparseable values
// yield NaN, which loses every comparison.
func (e Event) StartMillis() float64 {
	s := strings.TrimSpace(e.StartTime)
	if s == "" {
		return math.NaN()
	}
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.UnixMilli())
		}
	}
	return math.NaN()
}

// Bounds is a lat/lng bounding box.
type Bounds struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

// EmptyBounds returns bounds that any Extend call will replace.
func EmptyBounds() Bounds {
	return Bounds{
		MinLat: math.Inf(1),
		MinLng: math.Inf(1),
		MaxLat: math.Inf(-1),
		MaxLng: math.Inf(-1),
	}
}

// Extend expands the bounds to include ll.
func (b *Bounds) Extend(ll LatLng) {
	b.MinLat = math.Min(b.MinLat, ll.Lat)
	b.MinLng = math.Min(b.MinLng, ll.Lng)
	b.MaxLat = math.Max(b.MaxLat, ll.Lat)
	b.MaxLng = math.Max(b.MaxLng, ll.Lng)
}

// Contains reports whether ll lies inside the bounds, edges included.
func (b Bounds) Contains(ll LatLng) bool {
	return ll.Lat >= b.MinLat && ll.Lat <= b.MaxLat &&
		ll.Lng >= b.MinLng && ll.Lng <= b.MaxLng
}
