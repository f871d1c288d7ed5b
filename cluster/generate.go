package cluster

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

var generatedTags = []Tag{
	{ID: "music", Name: "Music"},
	{ID: "food", Name: "Food"},
	{ID: "art", Name: "Art"},
	{ID: "outdoors", Name: "Outdoors"},
}

// GenerateTestEvents creates n synthetic events inside bounds. The output is
// fully determined by seed.
func GenerateTestEvents(n int, bounds Bounds, seed int64) []Event {
	r := rand.New(rand.NewSource(seed))
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	events := make([]Event, n)

	for i := 0; i < n; i++ {
		id, err := uuid.NewRandomFromReader(r)
		if err != nil {
			id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprint(seed, i)))
		}

		ev := Event{
			ID:        id.String(),
			Latitude:  bounds.MinLat + r.Float64()*(bounds.MaxLat-bounds.MinLat),
			Longitude: bounds.MinLng + r.Float64()*(bounds.MaxLng-bounds.MinLng),
			StartTime: base.Add(time.Duration(r.Intn(7*24*4)) * 15 * time.Minute).Format(time.RFC3339),
			Title:     fmt.Sprintf("Event %d", i+1),
			Host: Host{
				ID:   fmt.Sprintf("host-%d", r.Intn(50)),
				Name: fmt.Sprintf("Host %d", r.Intn(50)),
			},
			Tags: []Tag{generatedTags[r.Intn(len(generatedTags))]},
		}
		// Roughly a quarter of events have no picture
		if r.Intn(4) != 0 {
			ev.Images = []Image{{IsPrimary: true, URL: fmt.Sprintf("https://img.example.com/%s.jpg", ev.ID)}}
		}
		events[i] = ev
	}

	return events
}
