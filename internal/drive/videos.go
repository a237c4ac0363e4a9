package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// EnqueueVideo adds a finished recording to the upload queue as NOT_UPLOADED.
// Re-enqueueing a queued name is a no-op and returns the existing row.
func (s *Service) EnqueueVideo(ctx context.Context, path string) (*Video, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat recording: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("recording is a directory: %s", abs)
	}

	name := filepath.Base(abs)
	existing, err := s.database.FindVideoByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking queue: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	v, err := s.database.AddVideo(ctx, &Video{
		VideoName:     name,
		LocalFilePath: abs,
		UploadStatus:  NotUploaded,
		CreatedAt:     UnixMilli(s.clock.Now()),
	})
	if err != nil {
		return nil, fmt.Errorf("enqueueing video: %w", err)
	}

	s.logger.Info("video enqueued", "name", name)
	return v, nil
}

// UpdateVideoStatus records the outcome of an upload attempt.
// DUPLICATE keeps the first uploaded-at time; every other status overwrites it.
func (s *Service) UpdateVideoStatus(ctx context.Context, name string, status UploadStatus, videoID int64) error {
	if !status.Persistable() {
		return fmt.Errorf("status %s cannot be persisted", status)
	}
	now := UnixMilli(s.clock.Now())
	var err error
	if status == Duplicate {
		err = s.database.MarkVideoDuplicate(ctx, name, now)
	} else {
		err = s.database.UpdateVideoStatus(ctx, name, status, videoID, now)
	}
	if err != nil {
		return fmt.Errorf("updating status of %s: %w", name, err)
	}
	return nil
}

// Videos returns queued rows in creation order, optionally filtered by status.
func (s *Service) Videos(ctx context.Context, statuses ...UploadStatus) ([]Video, error) {
	vs, err := s.database.ListVideos(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	return vs, nil
}

// OfflineVideos returns the names of rows still waiting for upload.
func (s *Service) OfflineVideos(ctx context.Context) ([]string, error) {
	return s.videoNames(ctx, NotUploaded)
}

// SyncedVideos returns the names of rows the server has acknowledged.
func (s *Service) SyncedVideos(ctx context.Context) ([]string, error) {
	return s.videoNames(ctx, Uploaded, Duplicate)
}

func (s *Service) videoNames(ctx context.Context, statuses ...UploadStatus) ([]string, error) {
	vs, err := s.Videos(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.VideoName
	}
	return names, nil
}

// ReconcileResult summarises a reconciliation against the server.
type ReconcileResult struct {
	Checked int
	Purged  int
	Reset   int
}

// ReconcileVideos asks the server which acknowledged uploads it has
// persisted. Synced rows are removed from the queue and their local files
// deleted; going-to-delete rows return to NOT_UPLOADED.
func (s *Service) ReconcileVideos(ctx context.Context) (*ReconcileResult, error) {
	if err := s.requireServer(); err != nil {
		return nil, err
	}

	names, err := s.SyncedVideos(ctx)
	if err != nil {
		return nil, err
	}
	result := &ReconcileResult{Checked: len(names)}
	if len(names) == 0 {
		return result, nil
	}

	status, err := s.server.CheckVideoFiles(ctx, names)
	if err != nil {
		return result, fmt.Errorf("checking uploaded videos: %w", err)
	}

	return s.applyVideoStatus(ctx, result, status)
}

// ApplyVideoFilesStatus applies a server reconciliation answer to the queue.
func (s *Service) ApplyVideoFilesStatus(ctx context.Context, status *VideoFilesStatus) (*ReconcileResult, error) {
	return s.applyVideoStatus(ctx, &ReconcileResult{}, status)
}

func (s *Service) applyVideoStatus(ctx context.Context, result *ReconcileResult, status *VideoFilesStatus) (*ReconcileResult, error) {
	if status == nil {
		return result, nil
	}
	purged, reset, err := s.database.ReconcileVideos(ctx, status.Synced, status.GoingToDelete)
	if err != nil {
		return result, fmt.Errorf("reconciling queue: %w", err)
	}
	result.Purged = len(purged)
	result.Reset = reset

	for _, v := range purged {
		if err := os.Remove(v.LocalFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.report("deleting synced recording", fmt.Errorf("removing %s: %w", v.LocalFilePath, err))
		}
	}

	s.logger.Info("videos reconciled", "purged", result.Purged, "reset", result.Reset)
	return result, nil
}

// UploadResult summarises an UploadPending pass.
type UploadResult struct {
	Reconcile       *ReconcileResult
	ReconcileFailed bool
	Attempted       int
	Uploaded        int
	Duplicates      int
	Failed          int
}

// UploadPending reconciles acknowledged uploads, then uploads every
// NOT_UPLOADED or FAILED recording in creation order. A failed reconciliation
// is reported and skips the cycle. A failed upload marks that row FAILED and
// moves on to the next one; the next pass retries it.
func (s *Service) UploadPending(ctx context.Context) (*UploadResult, error) {
	if err := s.requireServer(); err != nil {
		return nil, err
	}

	result := &UploadResult{}
	rec, err := s.ReconcileVideos(ctx)
	if err != nil {
		s.report("video reconciliation failed", err)
		result.ReconcileFailed = true
		return result, nil
	}
	result.Reconcile = rec

	pending, err := s.Videos(ctx, NotUploaded, Failed)
	if err != nil {
		return result, err
	}

	for i := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		v := &pending[i]
		result.Attempted++

		status, videoID, err := s.uploadOne(ctx, v, len(pending)-i)
		if err != nil {
			s.report("video upload failed", fmt.Errorf("uploading %s: %w", v.VideoName, err))
		}
		if err := s.UpdateVideoStatus(ctx, v.VideoName, status, videoID); err != nil {
			return result, err
		}

		switch status {
		case Uploaded:
			result.Uploaded++
		case Duplicate:
			result.Duplicates++
		default:
			result.Failed++
		}
	}

	s.logger.Info("upload pass complete", "attempted", result.Attempted,
		"uploaded", result.Uploaded, "duplicates", result.Duplicates, "failed", result.Failed)
	return result, nil
}

// uploadOne archives and uploads a single recording. It always returns the
// status to persist; err explains a FAILED status.
func (s *Service) uploadOne(ctx context.Context, v *Video, offline int) (UploadStatus, int64, error) {
	s.logger.Debug("uploading video", "name", v.VideoName, "status", Uploading)

	f, err := os.Open(v.LocalFilePath)
	if err != nil {
		return Failed, 0, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Failed, 0, fmt.Errorf("stat recording: %w", err)
	}

	if s.vault != nil {
		if err := s.archive(ctx, v, f, info.Size()); err != nil {
			return Failed, 0, err
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return Failed, 0, fmt.Errorf("rewinding recording: %w", err)
		}
	}

	meta := ParseRecordingName(v.VideoName)
	recordedOn := meta.RecordedOn
	if recordedOn.IsZero() {
		recordedOn = info.ModTime().UTC()
	}
	lat, lon := s.recordingLocation(ctx, meta, recordedOn)

	res, err := s.server.UploadVideo(ctx, &VideoUpload{
		Name:              v.VideoName,
		Latitude:          lat,
		Longitude:         lon,
		RecordedOn:        recordedOn,
		OfflineVideoCount: offline,
		Content:           f,
		Size:              info.Size(),
	})
	if errors.Is(err, ErrDuplicateVideo) {
		s.logger.Info("video already on server", "name", v.VideoName)
		return Duplicate, 0, nil
	}
	if err != nil {
		return Failed, 0, err
	}

	s.logger.Info("video uploaded", "name", v.VideoName, "video_id", res.VideoID)
	return Uploaded, res.VideoID, nil
}

// recordingLocation returns the coordinates encoded in the file name, or the
// newest recorded fix at or before recordedOn when the name carries none.
func (s *Service) recordingLocation(ctx context.Context, meta RecordingInfo, recordedOn time.Time) (string, string) {
	if meta.Latitude != "" && meta.Longitude != "" {
		return meta.Latitude, meta.Longitude
	}
	loc, err := s.database.PreviousLocation(ctx, UnixMilli(recordedOn)+1)
	if err != nil {
		s.report("locating recording", fmt.Errorf("finding fix before %s: %w", recordedOn, err))
		return meta.Latitude, meta.Longitude
	}
	if loc == nil {
		return meta.Latitude, meta.Longitude
	}
	return strconv.FormatFloat(loc.Latitude, 'f', -1, 64), strconv.FormatFloat(loc.Longitude, 'f', -1, 64)
}

// ArchiveKey is the vault key of a recording.
func ArchiveKey(name string, encrypted bool) string {
	key := "videos/" + name
	if encrypted {
		key += ".age"
	}
	return key
}

// archive stores the recording in the vault, encrypting it first when an
// encryptor is configured.
func (s *Service) archive(ctx context.Context, v *Video, r io.Reader, size int64) error {
	if s.encryptor == nil {
		if err := s.vault.PutContent(ctx, ArchiveKey(v.VideoName, false), r, size); err != nil {
			return fmt.Errorf("archiving recording: %w", err)
		}
		return nil
	}

	tmp, err := os.CreateTemp("", "nayancam-enc-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := s.encryptor.Encrypt(r, tmp); err != nil {
		return fmt.Errorf("encrypting recording: %w", err)
	}
	encSize, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("measuring ciphertext: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding ciphertext: %w", err)
	}

	if err := s.vault.PutContent(ctx, ArchiveKey(v.VideoName, true), tmp, encSize); err != nil {
		return fmt.Errorf("archiving encrypted recording: %w", err)
	}
	return nil
}

// FetchArchive writes an archived recording to w. dc decrypts recordings that
// were archived encrypted; nil fetches the plaintext copy.
func (s *Service) FetchArchive(ctx context.Context, name string, dc DecryptionContext, w io.Writer) error {
	if s.vault == nil {
		return fmt.Errorf("no vault configured")
	}
	if dc == nil {
		if err := s.vault.GetContent(ctx, ArchiveKey(name, false), w); err != nil {
			return fmt.Errorf("fetching %s: %w", name, err)
		}
		return nil
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	go func() {
		pw.CloseWithError(s.vault.GetContent(ctx, ArchiveKey(name, true), pw))
	}()
	if err := dc.Decrypt(pr, w); err != nil {
		return fmt.Errorf("decrypting %s: %w", name, err)
	}
	return nil
}

// RemoveVideo drops a row from the queue without touching the file.
func (s *Service) RemoveVideo(ctx context.Context, name string) error {
	if err := s.database.DeleteVideo(ctx, name); err != nil {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	return nil
}
