package drive_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nayancam/internal/drive"
	"nayancam/internal/geo"
	"nayancam/internal/testutil"
)

type routeEnv struct {
	db       drive.Database
	server   *testutil.FakeServer
	clock    *testutil.StubClock
	reporter *testutil.RecordingReporter
	svc      *drive.Service
}

func newRouteEnv(t *testing.T) *routeEnv {
	t.Helper()
	clock := testutil.FixedClock()
	db := testutil.NewTestDatabase(t, clock)
	server := testutil.NewFakeServer()
	reporter := &testutil.RecordingReporter{}
	svc := drive.NewService(db, server, nil,
		drive.WithClock(clock),
		drive.WithReporter(reporter),
	)
	return &routeEnv{db: db, server: server, clock: clock, reporter: reporter, svc: svc}
}

// addTrack records n fixes one minute apart starting at start, moving
// roughly 110 m north per fix.
func (e *routeEnv) addTrack(t *testing.T, start time.Time, lat float64, n int) []drive.Location {
	t.Helper()
	var locs []drive.Location
	for i := 0; i < n; i++ {
		loc := drive.Location{
			Latitude:  lat + float64(i)*0.001,
			Longitude: 75.0,
			TimeStamp: drive.UnixMilli(start.Add(time.Duration(i) * time.Minute)),
			Accuracy:  5,
		}
		if err := e.svc.RecordLocation(context.Background(), loc); err != nil {
			t.Fatalf("RecordLocation() error = %v", err)
		}
		locs = append(locs, loc)
	}
	return locs
}

func route(coords ...[]float64) *drive.RouteResponse {
	return &drive.RouteResponse{Paths: []drive.RoutePath{{Points: drive.RoutePoints{Coordinates: coords}}}}
}

func mustKey(t *testing.T, a, b []float64) string {
	t.Helper()
	k, err := geo.SegmentKey(a, b)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func segmentCounts(t *testing.T, db drive.Database) map[string]int64 {
	t.Helper()
	segs, err := db.ListSegments(context.Background())
	if err != nil {
		t.Fatalf("ListSegments() error = %v", err)
	}
	out := make(map[string]int64, len(segs))
	for _, s := range segs {
		out[s.Coordinates] = s.Count
	}
	return out
}

var (
	p0 = []float64{75.0, 22.0}
	p1 = []float64{75.0, 22.001}
	p2 = []float64{75.0, 22.002}
	p3 = []float64{75.0, 22.003}
)

func TestSyncRoute_OpenTailWatermark(t *testing.T) {
	ctx := context.Background()
	e := newRouteEnv(t)
	locs := e.addTrack(t, e.clock.Now().Add(-time.Hour), 22.0, 4)
	e.server.Route = route(p0, p1, p2)

	res, err := e.svc.SyncRoute(ctx)
	if err != nil {
		t.Fatalf("SyncRoute() error = %v", err)
	}

	want := &drive.RouteSyncResult{
		Clustered:       4,
		GapExceeded:     false,
		RouteFetched:    true,
		Watermark:       locs[2].TimeStamp,
		SegmentsApplied: 2,
		SegmentsPushed:  2,
		LocationsPruned: 2,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("SyncRoute() mismatch (-want +got):\n%s", diff)
	}

	if len(e.server.Tracks) != 1 {
		t.Fatalf("tracks posted = %d, want 1", len(e.server.Tracks))
	}
	if !strings.Contains(string(e.server.Tracks[0]), geo.TrackName(locs[3].TimeStamp)) {
		t.Errorf("track missing name: %s", e.server.Tracks[0])
	}
	if got := segmentCounts(t, e.db); len(got) != 0 {
		t.Errorf("segments after accepted push = %v, want none", got)
	}

	wm, err := e.svc.Watermark(ctx)
	if err != nil || wm != locs[2].TimeStamp {
		t.Errorf("Watermark() = %d, %v; want %d", wm, err, locs[2].TimeStamp)
	}
}

func TestSyncRoute_GapWatermark(t *testing.T) {
	e := newRouteEnv(t)
	start := e.clock.Now().Add(-time.Hour)
	locs := e.addTrack(t, start, 22.0, 2)
	// 10 km jump after the second fix.
	if err := e.svc.RecordLocation(context.Background(), drive.Location{
		Latitude: 22.1, Longitude: 75.0, TimeStamp: drive.UnixMilli(start.Add(5 * time.Minute)), Accuracy: 5,
	}); err != nil {
		t.Fatal(err)
	}
	e.server.Route = route(p0, p1)

	res, err := e.svc.SyncRoute(context.Background())
	if err != nil {
		t.Fatalf("SyncRoute() error = %v", err)
	}
	if !res.GapExceeded || res.Clustered != 2 {
		t.Errorf("cluster = %d gap=%v, want 2 gap=true", res.Clustered, res.GapExceeded)
	}
	if res.Watermark != locs[1].TimeStamp {
		t.Errorf("Watermark = %d, want last clustered fix %d", res.Watermark, locs[1].TimeStamp)
	}
}

func TestSyncRoute_NewDriveAfterBreak(t *testing.T) {
	ctx := context.Background()
	e := newRouteEnv(t)
	now := e.clock.Now()
	driveA := e.addTrack(t, now.Add(-3*time.Hour), 22.0, 3)
	// An hour parked, then about 110 km away.
	driveB := e.addTrack(t, now.Add(-2*time.Hour), 23.0, 3)
	e.server.Route = route(p0, p1)

	res, err := e.svc.SyncRoute(ctx)
	if err != nil {
		t.Fatalf("first SyncRoute() error = %v", err)
	}
	if res.Clustered != 3 || !res.GapExceeded || res.Watermark != driveA[2].TimeStamp {
		t.Fatalf("first pass = %+v, want drive A with gap", res)
	}

	res, err = e.svc.SyncRoute(ctx)
	if err != nil {
		t.Fatalf("second SyncRoute() error = %v", err)
	}
	if res.Clustered != 3 || res.GapExceeded {
		t.Errorf("second pass cluster = %d gap=%v, want drive B without gap", res.Clustered, res.GapExceeded)
	}
	if res.Watermark != driveB[1].TimeStamp {
		t.Errorf("second pass watermark = %d, want %d", res.Watermark, driveB[1].TimeStamp)
	}

	left, err := e.svc.LocationHistory(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(driveB[1:], left); diff != "" {
		t.Errorf("locations after sync mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncRoute_FetchFailureKeepsLocations(t *testing.T) {
	e := newRouteEnv(t)
	locs := e.addTrack(t, e.clock.Now().Add(-time.Hour), 22.0, 3)
	e.server.RouteErr = errors.New("connection refused")

	if _, err := e.svc.SyncRoute(context.Background()); err != nil {
		t.Fatalf("SyncRoute() error = %v", err)
	}
	left, err := e.svc.LocationHistory(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != len(locs) {
		t.Errorf("locations after failed fetch = %d, want %d", len(left), len(locs))
	}
}

func TestSyncRoute_SkipsRepeatedLastNode(t *testing.T) {
	ctx := context.Background()
	e := newRouteEnv(t)
	e.server.Accept = false
	e.addTrack(t, e.clock.Now().Add(-time.Hour), 22.0, 3)

	e.server.Route = route(p0, p1, p2)
	if _, err := e.svc.SyncRoute(ctx); err != nil {
		t.Fatalf("first SyncRoute() error = %v", err)
	}

	e.clock.Advance(20 * time.Minute)
	e.addTrack(t, e.clock.Now().Add(-5*time.Minute), 22.003, 2)
	e.server.Route = route(p1, p2, p3)
	res, err := e.svc.SyncRoute(ctx)
	if err != nil {
		t.Fatalf("second SyncRoute() error = %v", err)
	}
	if res.SegmentsApplied != 1 {
		t.Errorf("SegmentsApplied = %d, want 1", res.SegmentsApplied)
	}

	want := map[string]int64{
		mustKey(t, p0, p1): 1,
		mustKey(t, p1, p2): 1,
		mustKey(t, p2, p3): 1,
	}
	if diff := cmp.Diff(want, segmentCounts(t, e.db)); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncRoute_RepeatedSegmentsCount(t *testing.T) {
	ctx := context.Background()
	e := newRouteEnv(t)
	e.server.Accept = false
	e.addTrack(t, e.clock.Now().Add(-time.Hour), 22.0, 3)

	// Travelling back over the same edge maps to the same key.
	e.server.Route = route(p0, p1, p0, p1)
	if _, err := e.svc.SyncRoute(ctx); err != nil {
		t.Fatalf("SyncRoute() error = %v", err)
	}
	want := map[string]int64{mustKey(t, p0, p1): 3}
	if diff := cmp.Diff(want, segmentCounts(t, e.db)); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncRoute_FetchFailure(t *testing.T) {
	e := newRouteEnv(t)
	e.addTrack(t, e.clock.Now().Add(-time.Hour), 22.0, 3)
	e.server.RouteErr = errors.New("connection refused")

	res, err := e.svc.SyncRoute(context.Background())
	if err != nil {
		t.Fatalf("SyncRoute() error = %v", err)
	}
	if res.RouteFetched || res.Watermark != 0 {
		t.Errorf("result = %+v, want no fetch and unchanged watermark", res)
	}
	if e.reporter.ExceptionCount() != 1 {
		t.Errorf("reported exceptions = %d, want 1", e.reporter.ExceptionCount())
	}
}

func TestSyncRoute_SkipsFetch(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, e *routeEnv)
	}{
		{
			name:  "empty history",
			setup: func(*testing.T, *routeEnv) {},
		},
		{
			name: "inside sync interval",
			setup: func(t *testing.T, e *routeEnv) {
				wm := drive.UnixMilli(e.clock.Now().Add(-5 * time.Minute))
				if err := e.db.SetSyncState(context.Background(), "route_watermark", strconv.FormatInt(wm, 10)); err != nil {
					t.Fatal(err)
				}
				e.addTrack(t, e.clock.Now().Add(-5*time.Minute), 22.0, 3)
			},
		},
		{
			name: "inaccurate fixes only",
			setup: func(t *testing.T, e *routeEnv) {
				for i := 0; i < 3; i++ {
					e.svc.RecordLocation(context.Background(), drive.Location{
						Latitude: 22.0, Longitude: 75.0, Accuracy: 40,
						TimeStamp: drive.UnixMilli(e.clock.Now().Add(time.Duration(-i) * time.Minute)),
					})
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newRouteEnv(t)
			tt.setup(t, e)
			res, err := e.svc.SyncRoute(context.Background())
			if err != nil {
				t.Fatalf("SyncRoute() error = %v", err)
			}
			if res.RouteFetched || len(e.server.Tracks) != 0 {
				t.Errorf("route fetched: %+v", res)
			}
			if len(e.server.SegmentPush) != 0 {
				t.Errorf("segments pushed with an empty table")
			}
		})
	}
}

func TestSyncSegments(t *testing.T) {
	tests := []struct {
		name       string
		accept     bool
		err        error
		wantPushed int
		wantLeft   int
		wantReport int
	}{
		{"accepted", true, nil, 2, 0, 0},
		{"rejected", false, nil, 0, 2, 0},
		{"transport error", true, errors.New("timeout"), 0, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newRouteEnv(t)
			e.server.Accept = tt.accept
			e.server.SegmentErr = tt.err
			for _, k := range []string{"1,1,2,2", "2,2,3,3"} {
				if _, err := e.db.UpsertSegment(ctx, k, 1); err != nil {
					t.Fatal(err)
				}
			}

			pushed, err := e.svc.SyncSegments(ctx)
			if err != nil {
				t.Fatalf("SyncSegments() error = %v", err)
			}
			if pushed != tt.wantPushed {
				t.Errorf("pushed = %d, want %d", pushed, tt.wantPushed)
			}
			if left := len(segmentCounts(t, e.db)); left != tt.wantLeft {
				t.Errorf("segments left = %d, want %d", left, tt.wantLeft)
			}
			if got := e.reporter.ExceptionCount(); got != tt.wantReport {
				t.Errorf("reported = %d, want %d", got, tt.wantReport)
			}
		})
	}
}

func TestSyncRoute_RequiresServer(t *testing.T) {
	clock := testutil.FixedClock()
	svc := drive.NewService(testutil.NewTestDatabase(t, clock), nil, nil, drive.WithClock(clock))
	if _, err := svc.SyncRoute(context.Background()); err == nil {
		t.Error("SyncRoute() without server expected error")
	}
}
