package cluster

import (
	"math"
	"time"
)

// TimeRange spans the start times of a set of events.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Summary describes one clustering pass.
type Summary struct {
	TotalEvents     int                `json:"totalEvents"`
	NumClusters     int                `json:"numClusters"`
	NumSingletons   int                `json:"numSingletons"`
	LargestCluster  int                `json:"largestCluster"`
	Representatives int                `json:"representatives"`
	TimeRange       *TimeRange         `json:"timeRange,omitempty"`
	Extent          *Bounds            `json:"extent,omitempty"`
	TagDistribution map[string]float64 `json:"tagDistribution"`
}

// Summarize aggregates the clusters produced by Partition over events.
func Summarize(events []Event, clusters []Cluster) Summary {
	summary := Summary{
		TagDistribution: make(map[string]float64),
	}
	if len(clusters) == 0 {
		return summary
	}

	tagCounts := make(map[string]int)
	extent := EmptyBounds()
	var minT, maxT float64 = math.Inf(1), math.Inf(-1)

	for _, c := range clusters {
		n := len(c.Members)
		summary.TotalEvents += n
		if n > 1 {
			summary.NumClusters++
		} else {
			summary.NumSingletons++
		}
		if n > summary.LargestCluster {
			summary.LargestCluster = n
		}
		summary.Representatives++

		// Time range is taken over representatives only
		if t := events[c.Representative].StartMillis(); !math.IsNaN(t) {
			minT = math.Min(minT, t)
			maxT = math.Max(maxT, t)
		}

		for _, idx := range c.Members {
			extent.Extend(events[idx].Position())
			for _, tag := range events[idx].Tags {
				tagCounts[tag.Name]++
			}
		}
	}

	summary.Extent = &extent
	if !math.IsInf(minT, 1) {
		summary.TimeRange = &TimeRange{
			Start: time.UnixMilli(int64(minT)).UTC(),
			End:   time.UnixMilli(int64(maxT)).UTC(),
		}
	}

	// Share of events carrying each tag, in percent
	for name, count := range tagCounts {
		summary.TagDistribution[name] = float64(count) / float64(summary.TotalEvents) * 100
	}

	return summary
}
