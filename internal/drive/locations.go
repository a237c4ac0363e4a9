package drive

import (
	"context"
	"fmt"

	"nayancam/internal/geo"
)

// RecordLocation appends a fix to the location history.
func (s *Service) RecordLocation(ctx context.Context, loc Location) error {
	if !loc.Valid() {
		return fmt.Errorf("invalid coordinates: %v, %v", loc.Latitude, loc.Longitude)
	}
	if loc.Accuracy < 0 {
		return fmt.Errorf("accuracy must not be negative: %v", loc.Accuracy)
	}
	if loc.TimeStamp == 0 {
		loc.TimeStamp = UnixMilli(s.clock.Now())
	}
	if err := s.database.AddLocation(ctx, loc); err != nil {
		return fmt.Errorf("recording location: %w", err)
	}
	s.logger.Debug("location recorded", "lat", loc.Latitude, "lon", loc.Longitude, "ts", loc.TimeStamp)
	return nil
}

// ImportLocations records every fix, stopping at the first invalid one.
// Returns the number of fixes recorded.
func (s *Service) ImportLocations(ctx context.Context, locs []Location) (int, error) {
	for i, loc := range locs {
		if err := s.RecordLocation(ctx, loc); err != nil {
			return i, fmt.Errorf("fix %d: %w", i+1, err)
		}
	}
	s.logger.Info("locations imported", "count", len(locs))
	return len(locs), nil
}

// LocationHistory returns every fix at or after since, oldest first.
func (s *Service) LocationHistory(ctx context.Context, since int64) ([]Location, error) {
	locs, err := s.database.LocationsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("loading location history: %w", err)
	}
	return locs, nil
}

// Watermark returns the route-sync watermark in unix milliseconds.
func (s *Service) Watermark(ctx context.Context) (int64, error) {
	return s.syncStateInt(ctx, stateRouteWatermark)
}

// CurrentCluster loads the accurate history since the watermark and returns
// its leading cluster.
func (s *Service) CurrentCluster(ctx context.Context) (geo.ClusterResult, error) {
	watermark, err := s.Watermark(ctx)
	if err != nil {
		return geo.ClusterResult{}, err
	}
	history, err := s.LocationHistory(ctx, watermark)
	if err != nil {
		return geo.ClusterResult{}, err
	}
	accurate := geo.FilterAccurate(history, s.settings.AccuracyThreshold)

	clusterer := &geo.Clusterer{
		DistanceThreshold: s.settings.DistanceThreshold,
		TimeGap:           s.settings.TimeGap,
		Reporter:          s.reporter,
	}
	result := clusterer.Cluster(accurate)
	s.logger.Debug("history clustered",
		"history", len(history), "accurate", len(accurate),
		"cluster", len(result.Fixes), "gap", result.GapExceeded)
	return result, nil
}

// PurgeResult counts rows removed by Purge.
type PurgeResult struct {
	Locations int64
	Segments  int64
}

// Purge drops locations and segments older than the retention window.
func (s *Service) Purge(ctx context.Context) (*PurgeResult, error) {
	cutoff := UnixMilli(s.clock.Now().Add(-s.settings.MaxAge))

	locs, err := s.database.DeleteLocationsBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purging locations: %w", err)
	}
	segs, err := s.database.DeleteSegmentsBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purging segments: %w", err)
	}

	s.logger.Info("retention purge complete", "locations", locs, "segments", segs, "cutoff", cutoff)
	return &PurgeResult{Locations: locs, Segments: segs}, nil
}
