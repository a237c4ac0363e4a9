package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nayancam/internal/database/migrations"
	"nayancam/internal/database/sqlc"
	"nayancam/internal/drive"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the drive.Database interface using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *sqlc.Queries
	clock   drive.Clock
	path    string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
// A nil clock uses the real clock.
func NewSQLiteDatabase(path string, clock drive.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if clock == nil {
		clock = drive.RealClock{}
	}
	return &SQLiteDatabase{
		db:      db,
		queries: sqlc.New(db),
		clock:   clock,
		path:    path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock drive.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = drive.RealClock{}
	}
	return &SQLiteDatabase{
		db:      db,
		queries: sqlc.New(db),
		clock:   clock,
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serialises
	// writers on the device.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Location history

func (s *SQLiteDatabase) AddLocation(ctx context.Context, loc drive.Location) error {
	err := s.queries.UpsertLocation(ctx, sqlc.UpsertLocationParams{
		TimeStamp: loc.TimeStamp,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Accuracy:  loc.Accuracy,
	})
	if err != nil {
		return fmt.Errorf("adding location: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) LocationsSince(ctx context.Context, since int64) ([]drive.Location, error) {
	rows, err := s.queries.GetLocationsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	result := make([]drive.Location, len(rows))
	for i, r := range rows {
		result[i] = locationFromRow(r)
	}
	return result, nil
}

func (s *SQLiteDatabase) PreviousLocation(ctx context.Context, ts int64) (*drive.Location, error) {
	row, err := s.queries.GetPreviousLocation(ctx, ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding previous location: %w", err)
	}
	loc := locationFromRow(row)
	return &loc, nil
}

func (s *SQLiteDatabase) DeleteLocationsBefore(ctx context.Context, ts int64) (int64, error) {
	n, err := s.queries.DeleteLocationsBefore(ctx, ts)
	if err != nil {
		return 0, fmt.Errorf("deleting locations: %w", err)
	}
	return n, nil
}

func locationFromRow(r sqlc.LocationHistory) drive.Location {
	return drive.Location{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		TimeStamp: r.TimeStamp,
		Accuracy:  r.Accuracy,
	}
}

// Segment tracking

func (s *SQLiteDatabase) UpsertSegment(ctx context.Context, coordinates string, at int64) (*drive.Segment, error) {
	row, err := s.queries.UpsertSegment(ctx, sqlc.UpsertSegmentParams{
		SegmentCoordinates: coordinates,
		LastUpdated:        at,
	})
	if err != nil {
		return nil, fmt.Errorf("upserting segment: %w", err)
	}
	seg := segmentFromRow(row)
	return &seg, nil
}

func (s *SQLiteDatabase) FindSegment(ctx context.Context, coordinates string) (*drive.Segment, error) {
	row, err := s.queries.GetSegment(ctx, coordinates)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding segment: %w", err)
	}
	seg := segmentFromRow(row)
	return &seg, nil
}

func (s *SQLiteDatabase) ListSegments(ctx context.Context) ([]drive.Segment, error) {
	rows, err := s.queries.GetSegments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	result := make([]drive.Segment, len(rows))
	for i, r := range rows {
		result[i] = segmentFromRow(r)
	}
	return result, nil
}

func (s *SQLiteDatabase) DeleteSegmentsBefore(ctx context.Context, ts int64) (int64, error) {
	n, err := s.queries.DeleteSegmentsBefore(ctx, ts)
	if err != nil {
		return 0, fmt.Errorf("deleting segments: %w", err)
	}
	return n, nil
}

func (s *SQLiteDatabase) FlushSegments(ctx context.Context) error {
	if err := s.queries.DeleteAllSegments(ctx); err != nil {
		return fmt.Errorf("flushing segments: %w", err)
	}
	return nil
}

func segmentFromRow(r sqlc.SegmentTracking) drive.Segment {
	return drive.Segment{
		Coordinates: r.SegmentCoordinates,
		Count:       r.Count,
		LastUpdated: r.LastUpdated,
	}
}

// Sync state

func (s *SQLiteDatabase) GetSyncState(ctx context.Context, key string) (string, bool, error) {
	row, err := s.queries.GetSyncState(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading sync state %s: %w", key, err)
	}
	return row.Value, true, nil
}

func (s *SQLiteDatabase) SetSyncState(ctx context.Context, key, value string) error {
	err := s.queries.SetSyncState(ctx, sqlc.SetSyncStateParams{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("writing sync state %s: %w", key, err)
	}
	return nil
}

// Video upload queue

func (s *SQLiteDatabase) AddVideo(ctx context.Context, v *drive.Video) (*drive.Video, error) {
	if !v.UploadStatus.Persistable() {
		return nil, fmt.Errorf("status %s cannot be persisted", v.UploadStatus)
	}
	row, err := s.queries.UpsertVideo(ctx, sqlc.UpsertVideoParams{
		VideoName:           v.VideoName,
		LocalFilePath:       v.LocalFilePath,
		VideoID:             v.VideoID,
		UploadStatus:        int64(v.UploadStatus),
		CreatedAtTimestamp:  v.CreatedAt,
		UploadedAtTimestamp: v.UploadedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("adding video: %w", err)
	}
	added := videoFromRow(row)
	return &added, nil
}

func (s *SQLiteDatabase) FindVideoByName(ctx context.Context, name string) (*drive.Video, error) {
	row, err := s.queries.GetVideoByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding video %s: %w", name, err)
	}
	v := videoFromRow(row)
	return &v, nil
}

func (s *SQLiteDatabase) UpdateVideoStatus(ctx context.Context, name string, status drive.UploadStatus, videoID int64, at int64) error {
	if !status.Persistable() {
		return fmt.Errorf("status %s cannot be persisted", status)
	}
	n, err := s.queries.UpdateVideoStatus(ctx, sqlc.UpdateVideoStatusParams{
		UploadStatus:        int64(status),
		UploadedAtTimestamp: at,
		VideoID:             videoID,
		VideoName:           name,
	})
	if err != nil {
		return fmt.Errorf("updating video status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("video not queued: %s", name)
	}
	return nil
}

func (s *SQLiteDatabase) MarkVideoDuplicate(ctx context.Context, name string, at int64) error {
	n, err := s.queries.MarkVideoDuplicate(ctx, sqlc.MarkVideoDuplicateParams{
		UploadedAtTimestamp: at,
		VideoName:           name,
	})
	if err != nil {
		return fmt.Errorf("marking video duplicate: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("video not queued: %s", name)
	}
	return nil
}

func (s *SQLiteDatabase) ListVideos(ctx context.Context, statuses ...drive.UploadStatus) ([]drive.Video, error) {
	rows, err := s.queries.GetVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}

	want := make(map[drive.UploadStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	result := make([]drive.Video, 0, len(rows))
	for _, r := range rows {
		v := videoFromRow(r)
		if len(want) > 0 && !want[v.UploadStatus] {
			continue
		}
		result = append(result, v)
	}
	return result, nil
}

// ReconcileVideos applies a server reconciliation in one transaction.
// Resets run before deletes so a name in both lists ends up deleted and is
// not counted as reset.
func (s *SQLiteDatabase) ReconcileVideos(ctx context.Context, synced, goingToDelete []string) ([]drive.Video, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	reset := make(map[string]bool, len(goingToDelete))
	for _, name := range goingToDelete {
		n, err := qtx.ResetVideoForRetry(ctx, name)
		if err != nil {
			return nil, 0, fmt.Errorf("resetting video %s: %w", name, err)
		}
		if n > 0 {
			reset[name] = true
		}
	}

	var deleted []drive.Video
	for _, name := range synced {
		row, err := qtx.GetVideoByName(ctx, name)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		} else if err != nil {
			return nil, 0, fmt.Errorf("finding video %s: %w", name, err)
		}
		if err := qtx.DeleteVideoByName(ctx, name); err != nil {
			return nil, 0, fmt.Errorf("deleting video %s: %w", name, err)
		}
		delete(reset, name)
		deleted = append(deleted, videoFromRow(row))
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("committing transaction: %w", err)
	}
	return deleted, len(reset), nil
}

func (s *SQLiteDatabase) DeleteVideo(ctx context.Context, name string) error {
	if err := s.queries.DeleteVideoByName(ctx, name); err != nil {
		return fmt.Errorf("deleting video %s: %w", name, err)
	}
	return nil
}

func videoFromRow(r sqlc.VideoUploader) drive.Video {
	return drive.Video{
		ID:            r.ID,
		VideoName:     r.VideoName,
		LocalFilePath: r.LocalFilePath,
		VideoID:       r.VideoID,
		UploadStatus:  drive.UploadStatus(r.UploadStatus),
		CreatedAt:     r.CreatedAtTimestamp,
		UploadedAt:    r.UploadedAtTimestamp,
	}
}

// Operation tracking

func (s *SQLiteDatabase) CreateOperation(ctx context.Context, operation string, parameters string) (*drive.Operation, error) {
	row, err := s.queries.InsertOperation(ctx, sqlc.InsertOperationParams{
		StartedAt:  s.clock.Now().UTC(),
		Operation:  operation,
		Parameters: parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	op := operationFromRow(row)
	return &op, nil
}

func (s *SQLiteDatabase) FinishOperation(ctx context.Context, id int64, status string) error {
	err := s.queries.UpdateOperationFinished(ctx, sqlc.UpdateOperationFinishedParams{
		FinishedAt: sql.NullTime{Time: s.clock.Now().UTC(), Valid: true},
		Status:     status,
		ID:         id,
	})
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(ctx context.Context, limit int) ([]drive.Operation, error) {
	rows, err := s.queries.GetOperations(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	result := make([]drive.Operation, len(rows))
	for i, r := range rows {
		result[i] = operationFromRow(r)
	}
	return result, nil
}

func (s *SQLiteDatabase) MaxOperationID(ctx context.Context) (int64, error) {
	id, err := s.queries.GetMaxOperationID(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting max operation ID: %w", err)
	}
	return id, nil
}

func operationFromRow(r sqlc.Operation) drive.Operation {
	op := drive.Operation{
		ID:         r.ID,
		Operation:  r.Operation,
		Parameters: r.Parameters,
		StartedAt:  r.StartedAt,
		Status:     r.Status,
	}
	if r.FinishedAt.Valid {
		t := r.FinishedAt.Time
		op.FinishedAt = &t
	}
	return op
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Migrate applies pending migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements drive.Database interface
var _ drive.Database = (*SQLiteDatabase)(nil)
