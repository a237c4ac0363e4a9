package geo

import (
	"fmt"
	"time"
)

const (
	// DefaultDistanceThreshold is the clustering distance in meters.
	DefaultDistanceThreshold = 500.0

	// DefaultAccuracyThreshold drops fixes with accuracy at or above 16 m.
	DefaultAccuracyThreshold = 16.0

	// DefaultTimeGap breaks a cluster once 30 minutes have elapsed.
	DefaultTimeGap = 30 * time.Minute
)

// Reporter receives failures that the clusterer swallowed.
type Reporter interface {
	RecordException(err error)
}

// ClusterResult is the contiguous run of fixes accumulated from the start of
// the history, and whether the run ended on a gap.
type ClusterResult struct {
	Fixes       []Fix
	GapExceeded bool
}

// Clusterer partitions a time-ordered history into the leading cluster.
type Clusterer struct {
	DistanceThreshold float64
	TimeGap           time.Duration
	Reporter          Reporter
}

// NewClusterer returns a Clusterer with the default thresholds.
func NewClusterer(reporter Reporter) *Clusterer {
	return &Clusterer{
		DistanceThreshold: DefaultDistanceThreshold,
		TimeGap:           DefaultTimeGap,
		Reporter:          reporter,
	}
}

// Cluster walks consecutive pairs of history. While a pair stays under the
// distance threshold the earlier fix joins the cluster (and the later one too
// when it is the final fix). The first jump beyond the threshold ends the
// cluster with GapExceeded set. A jump on the very first pair is measured
// against the first fix itself, so it never reaches TimeGap: the first fix is
// the previous cluster's tail (or a stale outlier) and is skipped.
//
// A failure while measuring a pair is reported and the partial cluster is
// returned.
func (c *Clusterer) Cluster(history []Fix) ClusterResult {
	result := ClusterResult{Fixes: []Fix{}}
	if len(history) < 2 {
		return result
	}

	last := len(history) - 1
	first := history[0]
	for i := 0; i < last; i++ {
		current, next := history[i], history[i+1]
		d, err := FixDistance(current, next)
		if err != nil {
			c.report(fmt.Errorf("clustering pair %d: %w", i, err))
			return result
		}

		elapsed := time.Duration(current.TimeStamp-first.TimeStamp) * time.Millisecond

		if d < c.DistanceThreshold {
			result.Fixes = append(result.Fixes, current)
			if i == last-1 {
				result.Fixes = append(result.Fixes, next)
			}
		} else if i != 0 || elapsed >= c.TimeGap {
			result.Fixes = append(result.Fixes, current)
			result.GapExceeded = true
			break
		}
	}

	return result
}

func (c *Clusterer) report(err error) {
	if c.Reporter != nil {
		c.Reporter.RecordException(err)
	}
}
