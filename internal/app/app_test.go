package app

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"nayancam/internal/config"
	"nayancam/internal/drive"
	"nayancam/internal/sensor"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig("device-1", base)
	cfg.Vaults = []config.VaultConfig{{Type: "memory", Name: "test"}}
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Server.BaseURL = ""
	if err := os.MkdirAll(cfg.Recordings.Dir, 0755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, operation string) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, Options{Operation: operation})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNew_RequiresVault(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Vaults = nil
	if _, err := New(context.Background(), cfg, Options{Operation: "Test"}); err == nil {
		t.Error("New() without vaults expected error")
	}
}

func TestApp_MutatingCommandUploadsSnapshot(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t), "RecordLocation")

	err := a.RecordLocation(ctx, drive.Location{Latitude: 22.5, Longitude: 75.7, Accuracy: 4})
	if err != nil {
		t.Fatalf("RecordLocation() error = %v", err)
	}
	if !a.op.Persisted() {
		t.Fatal("operation not persisted")
	}
	opID := a.op.ID

	v := a.vault
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	version, err := v.GetMetadataVersion(ctx, "device-1", "db")
	if err != nil {
		t.Fatal(err)
	}
	if version != opID {
		t.Errorf("snapshot version = %d, want %d", version, opID)
	}
}

func TestApp_ReadOnlyCommandSkipsSnapshot(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t), "LocationHistory")

	if _, err := a.LocationHistory(ctx, time.Time{}); err != nil {
		t.Fatalf("LocationHistory() error = %v", err)
	}
	v := a.vault
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if version, _ := v.GetMetadataVersion(ctx, "device-1", "db"); version != 0 {
		t.Errorf("snapshot version = %d, want none", version)
	}
}

func TestApp_FailedStepMarksOperation(t *testing.T) {
	a := newTestApp(t, newTestConfig(t), "RecordLocation")
	defer a.Close()

	if err := a.RecordLocation(context.Background(), drive.Location{Latitude: 95}); err == nil {
		t.Fatal("RecordLocation() expected error")
	}
	if a.op.Status != "error" {
		t.Errorf("Status = %q, want error", a.op.Status)
	}
}

func TestApp_ImportAndCluster(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t), "ImportLocations")
	defer a.Close()

	start := time.Now().Add(-time.Hour).UnixMilli()
	var b strings.Builder
	b.WriteString("timestamp_ms,lat,lon,acc\n")
	for i := 0; i < 3; i++ {
		b.WriteString(strings.Join([]string{
			strconv.FormatInt(start+int64(i)*60000, 10), "22.00" + strconv.Itoa(i), "75.0", "5",
		}, ",") + "\n")
	}

	n, err := a.ImportLocations(ctx, strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("ImportLocations() error = %v", err)
	}
	if n != 3 {
		t.Errorf("ImportLocations() = %d, want 3", n)
	}

	cluster, err := a.CurrentCluster(ctx)
	if err != nil {
		t.Fatalf("CurrentCluster() error = %v", err)
	}
	if len(cluster.Fixes) != 3 {
		t.Errorf("cluster = %d fixes, want 3", len(cluster.Fixes))
	}
}

func TestApp_EnqueueVideo(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	a := newTestApp(t, cfg, "EnqueueVideo")
	defer a.Close()

	clip := filepath.Join(cfg.Recordings.Dir, "lat-22.5lon-75.7dt-11-03-22ti-08-47-54.mp4")
	if err := os.WriteFile(clip, []byte("frames"), 0644); err != nil {
		t.Fatal(err)
	}

	v, err := a.EnqueueVideo(ctx, clip)
	if err != nil {
		t.Fatalf("EnqueueVideo() error = %v", err)
	}
	if v.UploadStatus != drive.NotUploaded {
		t.Errorf("status = %v, want NOT_UPLOADED", v.UploadStatus)
	}

	if _, err := a.EnqueueVideo(ctx, filepath.Join(cfg.Recordings.Dir, "missing.mp4")); err == nil {
		t.Error("EnqueueVideo() of a missing file expected error")
	}
}

func TestApp_UploadRequiresServer(t *testing.T) {
	a := newTestApp(t, newTestConfig(t), "UploadPending")
	defer a.Close()

	if _, err := a.UploadPending(context.Background()); err == nil {
		t.Error("UploadPending() without server expected error")
	}
	if err := a.Watch(context.Background(), time.Minute); err == nil {
		t.Error("Watch() with periodic upload and no server expected error")
	}
}

func TestApp_ReplaySensor(t *testing.T) {
	a := newTestApp(t, newTestConfig(t), "ReplaySensor")
	defer a.Close()

	input := strings.Join([]string{
		"timestamp_ns,kind,x,y,z",
		"0,accelerometer,0,0,9.81",
		"100000000,magnetic_field,0,20,-40",
		"300000000,accelerometer,0,0,9.81",
		"600000000,magnetic_field,0,20,-40",
	}, "\n")

	var got []sensor.Meta
	n, err := a.ReplaySensor(context.Background(), strings.NewReader(input), func(m sensor.Meta) {
		got = append(got, m)
	})
	if err != nil {
		t.Fatalf("ReplaySensor() error = %v", err)
	}
	if n != 2 || len(got) != 2 {
		t.Fatalf("ReplaySensor() = %d updates, want 2", n)
	}
	if got[0].Timestamp != 300000000 || got[1].Timestamp != 600000000 {
		t.Errorf("update timestamps = %d, %d", got[0].Timestamp, got[1].Timestamp)
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Clustering.DistanceThresholdM = 250
	cfg.Clustering.TimeGap = config.Duration{Duration: 0}
	cfg.Retention.MaxAge = config.Duration{Duration: 48 * time.Hour}

	got := settingsFromConfig(cfg)
	want := drive.DefaultSettings()
	want.DistanceThreshold = 250
	want.MaxAge = 48 * time.Hour
	if got != want {
		t.Errorf("settingsFromConfig() = %+v, want %+v", got, want)
	}
}

func TestApp_RemoveVideoAndValidateVault(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	a := newTestApp(t, cfg, "RemoveVideo")
	defer a.Close()

	if err := a.ValidateVault(ctx); err != nil {
		t.Fatalf("ValidateVault() error = %v", err)
	}

	clip := filepath.Join(cfg.Recordings.Dir, "clip.mp4")
	if err := os.WriteFile(clip, []byte("frames"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := a.EnqueueVideo(ctx, clip); err != nil {
		t.Fatalf("EnqueueVideo() error = %v", err)
	}
	if err := a.RemoveVideo(ctx, "clip.mp4"); err != nil {
		t.Fatalf("RemoveVideo() error = %v", err)
	}
	videos, err := a.Videos(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 0 {
		t.Errorf("Videos() = %d, want 0 after remove", len(videos))
	}
}
