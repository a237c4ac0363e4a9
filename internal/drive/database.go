package drive

import "context"

// Database provides the device-local store for location history, segment
// tracking, the video upload queue, sync state and operation history.
// Lookups return nil (and no error) when nothing matches.
type Database interface {
	// Location history

	// AddLocation inserts a fix, replacing any fix with the same timestamp.
	AddLocation(ctx context.Context, loc Location) error

	// LocationsSince returns fixes with timestamp >= since, oldest first.
	LocationsSince(ctx context.Context, since int64) ([]Location, error)

	// PreviousLocation returns the newest fix strictly before ts, or nil.
	PreviousLocation(ctx context.Context, ts int64) (*Location, error)

	// DeleteLocationsBefore removes fixes with timestamp <= ts.
	DeleteLocationsBefore(ctx context.Context, ts int64) (int64, error)

	// Segment tracking

	// UpsertSegment records one observation of a segment key. A new key starts
	// at count 1; an existing key has its count incremented.
	UpsertSegment(ctx context.Context, coordinates string, at int64) (*Segment, error)

	// FindSegment returns the segment with the given key.
	FindSegment(ctx context.Context, coordinates string) (*Segment, error)

	// ListSegments returns every tracked segment.
	ListSegments(ctx context.Context) ([]Segment, error)

	// DeleteSegmentsBefore removes segments last updated at or before ts.
	DeleteSegmentsBefore(ctx context.Context, ts int64) (int64, error)

	// FlushSegments removes every tracked segment.
	FlushSegments(ctx context.Context) error

	// Sync state

	// GetSyncState returns a stored value and whether it was present.
	GetSyncState(ctx context.Context, key string) (string, bool, error)

	// SetSyncState stores a value, replacing any previous one.
	SetSyncState(ctx context.Context, key, value string) error

	// Video upload queue

	// AddVideo enqueues a recording, replacing any row with the same name.
	AddVideo(ctx context.Context, v *Video) (*Video, error)

	// FindVideoByName returns the queued row with the given name.
	FindVideoByName(ctx context.Context, name string) (*Video, error)

	// UpdateVideoStatus sets status and uploaded-at. videoID replaces the
	// stored server id only when non-zero.
	UpdateVideoStatus(ctx context.Context, name string, status UploadStatus, videoID int64, at int64) error

	// MarkVideoDuplicate sets DUPLICATE, keeping an existing uploaded-at.
	MarkVideoDuplicate(ctx context.Context, name string, at int64) error

	// ListVideos returns rows in creation order. With no statuses every row
	// is returned.
	ListVideos(ctx context.Context, statuses ...UploadStatus) ([]Video, error)

	// ReconcileVideos atomically resets goingToDelete rows to NOT_UPLOADED and
	// deletes synced rows. It returns the rows that were deleted and the number
	// of queued rows left reset.
	ReconcileVideos(ctx context.Context, synced, goingToDelete []string) ([]Video, int, error)

	// DeleteVideo removes a single row.
	DeleteVideo(ctx context.Context, name string) error

	// Operation history

	CreateOperation(ctx context.Context, operation, parameters string) (*Operation, error)
	FinishOperation(ctx context.Context, id int64, status string) error
	ListOperations(ctx context.Context, limit int) ([]Operation, error)
	MaxOperationID(ctx context.Context) (int64, error)

	// CheckMigrations verifies the schema is current.
	CheckMigrations() error

	// BackupTo writes a consistent copy of the database to destPath.
	BackupTo(destPath string) error

	// Close closes the database connection.
	Close() error
}
