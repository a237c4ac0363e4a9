package drive

import (
	"context"
	"fmt"
	"strconv"

	"nayancam/internal/geo"
)

const (
	stateRouteWatermark = "route_watermark"
	stateRouteLastNode  = "route_last_node"
)

// RouteSyncResult summarises one SyncRoute pass.
type RouteSyncResult struct {
	Clustered       int
	GapExceeded     bool
	RouteFetched    bool
	Watermark       int64
	SegmentsApplied int
	SegmentsPushed  int
	LocationsPruned int
}

// SyncRoute runs one route synchronisation pass.
//
// When the current cluster is non-empty and SyncInterval has passed since the
// watermark, the cluster is posted as a GPX track. On success the watermark
// advances to the last clustered fix when the cluster ended on a gap, and to
// the second-to-last otherwise so the open tail is sent again next pass.
// Fixes older than the new watermark are synced and are dropped. The
// returned route is folded into segment weights. Local segments are pushed to
// the server in every case.
//
// A failed route fetch is reported and ends the pass without an error.
func (s *Service) SyncRoute(ctx context.Context) (*RouteSyncResult, error) {
	if err := s.requireServer(); err != nil {
		return nil, err
	}

	watermark, err := s.Watermark(ctx)
	if err != nil {
		return nil, err
	}
	cluster, err := s.CurrentCluster(ctx)
	if err != nil {
		return nil, err
	}

	result := &RouteSyncResult{
		Clustered:   len(cluster.Fixes),
		GapExceeded: cluster.GapExceeded,
		Watermark:   watermark,
	}

	since := s.clock.Now().Sub(FromUnixMilli(watermark))
	if len(cluster.Fixes) == 0 || since < s.settings.SyncInterval {
		s.logger.Debug("route fetch skipped", "cluster", len(cluster.Fixes), "since_watermark", since)
		pushed, err := s.SyncSegments(ctx)
		if err != nil {
			return result, err
		}
		result.SegmentsPushed = pushed
		return result, nil
	}

	track, err := geo.NewTrack(cluster.Fixes)
	if err != nil {
		return result, fmt.Errorf("building track: %w", err)
	}
	body, err := track.Marshal()
	if err != nil {
		return result, err
	}

	route, err := s.server.FetchRoute(ctx, body)
	if err != nil {
		s.report("route fetch failed", fmt.Errorf("fetching route: %w", err))
		return result, nil
	}
	result.RouteFetched = true

	next := nextWatermark(cluster)
	if err := s.database.SetSyncState(ctx, stateRouteWatermark, strconv.FormatInt(next, 10)); err != nil {
		return result, fmt.Errorf("advancing watermark: %w", err)
	}
	result.Watermark = next

	pruned, err := s.database.DeleteLocationsBefore(ctx, next-1)
	if err != nil {
		return result, fmt.Errorf("dropping synced locations: %w", err)
	}
	result.LocationsPruned = int(pruned)

	applied, err := s.applyRouteSegments(ctx, route)
	if err != nil {
		return result, err
	}
	result.SegmentsApplied = applied

	pushed, err := s.SyncSegments(ctx)
	if err != nil {
		return result, err
	}
	result.SegmentsPushed = pushed

	s.logger.Info("route synced", "cluster", result.Clustered, "gap", result.GapExceeded,
		"watermark", result.Watermark, "pruned", pruned, "applied", applied, "pushed", pushed)
	return result, nil
}

func nextWatermark(cluster geo.ClusterResult) int64 {
	fixes := cluster.Fixes
	i := len(fixes) - 1
	if !cluster.GapExceeded && len(fixes) > 1 {
		i--
	}
	return fixes[i].TimeStamp
}

// applyRouteSegments folds the first path of a route into segment weights and
// returns the number of segments upserted.
func (s *Service) applyRouteSegments(ctx context.Context, route *RouteResponse) (int, error) {
	if route == nil || len(route.Paths) == 0 {
		return 0, nil
	}
	coords := route.Paths[0].Points.Coordinates
	if len(coords) < 2 {
		return 0, nil
	}

	lastNode, _, err := s.database.GetSyncState(ctx, stateRouteLastNode)
	if err != nil {
		return 0, fmt.Errorf("loading last route node: %w", err)
	}

	now := UnixMilli(s.clock.Now())
	applied := 0
	last := len(coords) - 1
	for i := 0; i < last; i++ {
		key, err := geo.SegmentKey(coords[i], coords[i+1])
		if err != nil {
			s.report("skipping route segment", err)
			continue
		}

		if i == last-1 {
			if err := s.database.SetSyncState(ctx, stateRouteLastNode, key); err != nil {
				return applied, fmt.Errorf("saving last route node: %w", err)
			}
		} else if i == 0 && lastNode != "" && key == lastNode {
			// Already counted as the tail of the previous route.
			continue
		}

		if _, err := s.database.UpsertSegment(ctx, key, now); err != nil {
			return applied, fmt.Errorf("upserting segment %s: %w", key, err)
		}
		applied++
	}
	return applied, nil
}

// SyncSegments pushes every local segment to the server and flushes the table
// once the server accepts them. Returns the number of segments pushed.
// A failed push is reported and leaves the table intact.
func (s *Service) SyncSegments(ctx context.Context) (int, error) {
	if err := s.requireServer(); err != nil {
		return 0, err
	}

	segments, err := s.database.ListSegments(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing segments: %w", err)
	}
	if len(segments) == 0 {
		s.reporter.Log("no segments to sync")
		return 0, nil
	}

	ok, err := s.server.PostSegments(ctx, segments)
	if err != nil {
		s.report("segment push failed", fmt.Errorf("posting segments: %w", err))
		return 0, nil
	}
	if !ok {
		s.logger.Warn("server rejected segments", "count", len(segments))
		return 0, nil
	}

	if err := s.database.FlushSegments(ctx); err != nil {
		return 0, fmt.Errorf("flushing segments: %w", err)
	}
	s.logger.Info("segments pushed", "count", len(segments))
	return len(segments), nil
}

// Segments returns every tracked segment.
func (s *Service) Segments(ctx context.Context) ([]Segment, error) {
	segs, err := s.database.ListSegments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	return segs, nil
}

// FlushSegments drops every tracked segment without pushing.
func (s *Service) FlushSegments(ctx context.Context) error {
	if err := s.database.FlushSegments(ctx); err != nil {
		return fmt.Errorf("flushing segments: %w", err)
	}
	return nil
}

func (s *Service) syncStateInt(ctx context.Context, key string) (int64, error) {
	raw, ok, err := s.database.GetSyncState(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", key, err)
	}
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", key, raw, err)
	}
	return v, nil
}
