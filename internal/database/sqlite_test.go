package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nayancam/internal/drive"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:", fixedClock{testTime})
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if _, err := db.db.Exec(Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func addVideo(t *testing.T, db *SQLiteDatabase, name string, status drive.UploadStatus, createdAt int64) *drive.Video {
	t.Helper()
	v, err := db.AddVideo(context.Background(), &drive.Video{
		VideoName:     name,
		LocalFilePath: "/recordings/" + name,
		UploadStatus:  status,
		CreatedAt:     createdAt,
	})
	if err != nil {
		t.Fatalf("AddVideo(%s) error = %v", name, err)
	}
	return v
}

func videoNames(vs []drive.Video) []string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.VideoName
	}
	return names
}

func TestSQLiteDatabase_Locations(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces fix with same timestamp", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.AddLocation(ctx, drive.Location{Latitude: 1, Longitude: 2, TimeStamp: 1000, Accuracy: 5}); err != nil {
			t.Fatalf("AddLocation() error = %v", err)
		}
		if err := db.AddLocation(ctx, drive.Location{Latitude: 3, Longitude: 4, TimeStamp: 1000, Accuracy: 6}); err != nil {
			t.Fatalf("AddLocation() error = %v", err)
		}

		got, err := db.LocationsSince(ctx, 0)
		if err != nil {
			t.Fatalf("LocationsSince() error = %v", err)
		}
		want := []drive.Location{{Latitude: 3, Longitude: 4, TimeStamp: 1000, Accuracy: 6}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("LocationsSince() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("since is inclusive and ordered", func(t *testing.T) {
		db := newTestDB(t)
		for _, ts := range []int64{3000, 1000, 2000} {
			if err := db.AddLocation(ctx, drive.Location{TimeStamp: ts}); err != nil {
				t.Fatalf("AddLocation() error = %v", err)
			}
		}

		got, err := db.LocationsSince(ctx, 2000)
		if err != nil {
			t.Fatalf("LocationsSince() error = %v", err)
		}
		if len(got) != 2 || got[0].TimeStamp != 2000 || got[1].TimeStamp != 3000 {
			t.Errorf("LocationsSince(2000) = %+v, want timestamps [2000 3000]", got)
		}
	})

	t.Run("previous location", func(t *testing.T) {
		db := newTestDB(t)

		prev, err := db.PreviousLocation(ctx, 5000)
		if err != nil {
			t.Fatalf("PreviousLocation() error = %v", err)
		}
		if prev != nil {
			t.Errorf("PreviousLocation() on empty table = %+v, want nil", prev)
		}

		for _, ts := range []int64{1000, 2000, 3000} {
			db.AddLocation(ctx, drive.Location{TimeStamp: ts})
		}
		prev, err = db.PreviousLocation(ctx, 3000)
		if err != nil {
			t.Fatalf("PreviousLocation() error = %v", err)
		}
		if prev == nil || prev.TimeStamp != 2000 {
			t.Errorf("PreviousLocation(3000) = %+v, want timestamp 2000", prev)
		}
	})

	t.Run("delete before is inclusive", func(t *testing.T) {
		db := newTestDB(t)
		for _, ts := range []int64{1000, 2000, 3000} {
			db.AddLocation(ctx, drive.Location{TimeStamp: ts})
		}

		n, err := db.DeleteLocationsBefore(ctx, 2000)
		if err != nil {
			t.Fatalf("DeleteLocationsBefore() error = %v", err)
		}
		if n != 2 {
			t.Errorf("deleted %d rows, want 2", n)
		}
		remaining, _ := db.LocationsSince(ctx, 0)
		if len(remaining) != 1 || remaining[0].TimeStamp != 3000 {
			t.Errorf("remaining = %+v, want only 3000", remaining)
		}
	})
}

func TestSQLiteDatabase_Segments(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert increments count", func(t *testing.T) {
		db := newTestDB(t)

		first, err := db.UpsertSegment(ctx, "1,2,3,4", 100)
		if err != nil {
			t.Fatalf("UpsertSegment() error = %v", err)
		}
		if first.Count != 1 || first.LastUpdated != 100 {
			t.Errorf("first upsert = %+v, want count 1 at 100", first)
		}

		second, err := db.UpsertSegment(ctx, "1,2,3,4", 200)
		if err != nil {
			t.Fatalf("UpsertSegment() error = %v", err)
		}
		if second.Count != 2 || second.LastUpdated != 200 {
			t.Errorf("second upsert = %+v, want count 2 at 200", second)
		}

		all, _ := db.ListSegments(ctx)
		if len(all) != 1 {
			t.Errorf("ListSegments() returned %d rows, want 1", len(all))
		}
	})

	t.Run("find missing segment", func(t *testing.T) {
		db := newTestDB(t)
		seg, err := db.FindSegment(ctx, "nope")
		if err != nil {
			t.Fatalf("FindSegment() error = %v", err)
		}
		if seg != nil {
			t.Errorf("FindSegment() = %+v, want nil", seg)
		}
	})

	t.Run("delete before and flush", func(t *testing.T) {
		db := newTestDB(t)
		db.UpsertSegment(ctx, "a", 100)
		db.UpsertSegment(ctx, "b", 200)
		db.UpsertSegment(ctx, "c", 300)

		n, err := db.DeleteSegmentsBefore(ctx, 200)
		if err != nil {
			t.Fatalf("DeleteSegmentsBefore() error = %v", err)
		}
		if n != 2 {
			t.Errorf("deleted %d segments, want 2", n)
		}

		if err := db.FlushSegments(ctx); err != nil {
			t.Fatalf("FlushSegments() error = %v", err)
		}
		all, _ := db.ListSegments(ctx)
		if len(all) != 0 {
			t.Errorf("ListSegments() after flush = %+v, want empty", all)
		}
	})
}

func TestSQLiteDatabase_SyncState(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, ok, err := db.GetSyncState(ctx, "route_watermark")
	if err != nil {
		t.Fatalf("GetSyncState() error = %v", err)
	}
	if ok {
		t.Error("GetSyncState() reported a value for an unset key")
	}

	for _, v := range []string{"100", "200"} {
		if err := db.SetSyncState(ctx, "route_watermark", v); err != nil {
			t.Fatalf("SetSyncState() error = %v", err)
		}
	}

	got, ok, err := db.GetSyncState(ctx, "route_watermark")
	if err != nil || !ok || got != "200" {
		t.Errorf("GetSyncState() = (%q, %v, %v), want (\"200\", true, nil)", got, ok, err)
	}
}

func TestSQLiteDatabase_Videos(t *testing.T) {
	ctx := context.Background()

	t.Run("add and find", func(t *testing.T) {
		db := newTestDB(t)
		added := addVideo(t, db, "a.mp4", drive.NotUploaded, 100)
		if added.ID == 0 {
			t.Error("ID is zero")
		}

		found, err := db.FindVideoByName(ctx, "a.mp4")
		if err != nil {
			t.Fatalf("FindVideoByName() error = %v", err)
		}
		if diff := cmp.Diff(added, found); diff != "" {
			t.Errorf("FindVideoByName() mismatch (-want +got):\n%s", diff)
		}

		missing, err := db.FindVideoByName(ctx, "b.mp4")
		if err != nil || missing != nil {
			t.Errorf("FindVideoByName(b.mp4) = (%v, %v), want (nil, nil)", missing, err)
		}
	})

	t.Run("rejects uploading status", func(t *testing.T) {
		db := newTestDB(t)
		_, err := db.AddVideo(ctx, &drive.Video{VideoName: "a.mp4", UploadStatus: drive.Uploading})
		if err == nil {
			t.Error("AddVideo() with UPLOADING expected error")
		}
	})

	t.Run("list filters and keeps creation order", func(t *testing.T) {
		db := newTestDB(t)
		addVideo(t, db, "c.mp4", drive.Uploaded, 300)
		addVideo(t, db, "a.mp4", drive.NotUploaded, 100)
		addVideo(t, db, "d.mp4", drive.Duplicate, 400)
		addVideo(t, db, "b.mp4", drive.NotUploaded, 200)
		addVideo(t, db, "e.mp4", drive.Failed, 500)

		tests := []struct {
			name     string
			statuses []drive.UploadStatus
			want     []string
		}{
			{"all", nil, []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4", "e.mp4"}},
			{"unsynced", []drive.UploadStatus{drive.NotUploaded}, []string{"a.mp4", "b.mp4"}},
			{"synced batch", []drive.UploadStatus{drive.Uploaded, drive.Duplicate}, []string{"c.mp4", "d.mp4"}},
			{"failed", []drive.UploadStatus{drive.Failed}, []string{"e.mp4"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := db.ListVideos(ctx, tt.statuses...)
				if err != nil {
					t.Fatalf("ListVideos() error = %v", err)
				}
				if diff := cmp.Diff(tt.want, videoNames(got)); diff != "" {
					t.Errorf("ListVideos() mismatch (-want +got):\n%s", diff)
				}
			})
		}
	})

	t.Run("update status keeps video id when zero", func(t *testing.T) {
		db := newTestDB(t)
		addVideo(t, db, "a.mp4", drive.NotUploaded, 100)

		if err := db.UpdateVideoStatus(ctx, "a.mp4", drive.Uploaded, 42, 500); err != nil {
			t.Fatalf("UpdateVideoStatus() error = %v", err)
		}
		if err := db.UpdateVideoStatus(ctx, "a.mp4", drive.Failed, 0, 600); err != nil {
			t.Fatalf("UpdateVideoStatus() error = %v", err)
		}

		v, _ := db.FindVideoByName(ctx, "a.mp4")
		if v.UploadStatus != drive.Failed || v.VideoID != 42 || v.UploadedAt != 600 {
			t.Errorf("video = %+v, want FAILED id 42 uploaded at 600", v)
		}
	})

	t.Run("update status of unknown video", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.UpdateVideoStatus(ctx, "ghost.mp4", drive.Uploaded, 1, 1); err == nil {
			t.Error("UpdateVideoStatus() on unknown video expected error")
		}
	})

	t.Run("duplicate keeps first uploaded at", func(t *testing.T) {
		db := newTestDB(t)
		addVideo(t, db, "a.mp4", drive.NotUploaded, 100)
		addVideo(t, db, "b.mp4", drive.NotUploaded, 100)

		db.UpdateVideoStatus(ctx, "a.mp4", drive.Uploaded, 7, 500)
		if err := db.MarkVideoDuplicate(ctx, "a.mp4", 900); err != nil {
			t.Fatalf("MarkVideoDuplicate() error = %v", err)
		}
		if err := db.MarkVideoDuplicate(ctx, "b.mp4", 900); err != nil {
			t.Fatalf("MarkVideoDuplicate() error = %v", err)
		}

		a, _ := db.FindVideoByName(ctx, "a.mp4")
		if a.UploadStatus != drive.Duplicate || a.UploadedAt != 500 {
			t.Errorf("a = %+v, want DUPLICATE uploaded at 500", a)
		}
		b, _ := db.FindVideoByName(ctx, "b.mp4")
		if b.UploadStatus != drive.Duplicate || b.UploadedAt != 900 {
			t.Errorf("b = %+v, want DUPLICATE uploaded at 900", b)
		}
	})

	t.Run("delete video", func(t *testing.T) {
		db := newTestDB(t)
		addVideo(t, db, "a.mp4", drive.NotUploaded, 100)
		if err := db.DeleteVideo(ctx, "a.mp4"); err != nil {
			t.Fatalf("DeleteVideo() error = %v", err)
		}
		if v, _ := db.FindVideoByName(ctx, "a.mp4"); v != nil {
			t.Error("video still exists after DeleteVideo()")
		}
	})
}

func TestSQLiteDatabase_ReconcileVideos(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes synced and resets going to delete", func(t *testing.T) {
		db := newTestDB(t)
		addVideo(t, db, "a.mp4", drive.NotUploaded, 100)
		addVideo(t, db, "b.mp4", drive.NotUploaded, 200)
		addVideo(t, db, "c.mp4", drive.NotUploaded, 300)
		db.UpdateVideoStatus(ctx, "a.mp4", drive.Uploaded, 1, 1000)
		db.UpdateVideoStatus(ctx, "b.mp4", drive.Uploaded, 2, 1000)
		db.MarkVideoDuplicate(ctx, "c.mp4", 1000)

		deleted, reset, err := db.ReconcileVideos(ctx, []string{"a.mp4", "missing.mp4"}, []string{"b.mp4", "gone.mp4"})
		if err != nil {
			t.Fatalf("ReconcileVideos() error = %v", err)
		}
		if reset != 1 {
			t.Errorf("reset = %d, want 1 (unknown names are not counted)", reset)
		}
		if diff := cmp.Diff([]string{"a.mp4"}, videoNames(deleted)); diff != "" {
			t.Errorf("deleted mismatch (-want +got):\n%s", diff)
		}
		if deleted[0].LocalFilePath != "/recordings/a.mp4" {
			t.Errorf("deleted path = %q, want /recordings/a.mp4", deleted[0].LocalFilePath)
		}

		b, _ := db.FindVideoByName(ctx, "b.mp4")
		if b.UploadStatus != drive.NotUploaded || b.VideoID != 0 || b.UploadedAt != 0 {
			t.Errorf("b = %+v, want reset to NOT_UPLOADED with zero id and time", b)
		}
		c, _ := db.FindVideoByName(ctx, "c.mp4")
		if c.UploadStatus != drive.Duplicate {
			t.Errorf("c status = %s, want DUPLICATE", c.UploadStatus)
		}
	})

	t.Run("name in both lists is deleted", func(t *testing.T) {
		db := newTestDB(t)
		addVideo(t, db, "a.mp4", drive.Uploaded, 100)

		_, reset, err := db.ReconcileVideos(ctx, []string{"a.mp4"}, []string{"a.mp4"})
		if err != nil {
			t.Fatalf("ReconcileVideos() error = %v", err)
		}
		if v, _ := db.FindVideoByName(ctx, "a.mp4"); v != nil {
			t.Error("synced name remains in queue")
		}
		if reset != 0 {
			t.Errorf("reset = %d, want 0 for a deleted name", reset)
		}
	})
}

func TestSQLiteDatabase_Operations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	maxID, err := db.MaxOperationID(ctx)
	if err != nil || maxID != 0 {
		t.Fatalf("MaxOperationID() on empty table = (%d, %v), want (0, nil)", maxID, err)
	}

	op, err := db.CreateOperation(ctx, "SyncRoute", "")
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if op.Status != "running" || op.FinishedAt != nil {
		t.Errorf("new operation = %+v, want running and unfinished", op)
	}
	if !op.StartedAt.Equal(testTime) {
		t.Errorf("StartedAt = %v, want %v", op.StartedAt, testTime)
	}

	if err := db.FinishOperation(ctx, op.ID, "success"); err != nil {
		t.Fatalf("FinishOperation() error = %v", err)
	}
	second, _ := db.CreateOperation(ctx, "UploadPending", "")

	ops, err := db.ListOperations(ctx, 10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 2 || ops[0].ID != second.ID {
		t.Fatalf("ListOperations() = %+v, want newest first", ops)
	}
	if ops[1].Status != "success" || ops[1].FinishedAt == nil {
		t.Errorf("finished operation = %+v, want success with finish time", ops[1])
	}

	maxID, _ = db.MaxOperationID(ctx)
	if maxID != second.ID {
		t.Errorf("MaxOperationID() = %d, want %d", maxID, second.ID)
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	addVideo(t, db, "a.mp4", drive.NotUploaded, 100)

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	restored, err := NewSQLiteDatabase(dest, nil)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer restored.Close()

	v, err := restored.FindVideoByName(ctx, "a.mp4")
	if err != nil || v == nil {
		t.Errorf("backup FindVideoByName(a.mp4) = (%v, %v), want a row", v, err)
	}
}
