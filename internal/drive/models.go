package drive

import (
	"fmt"
	"strings"
	"time"

	"nayancam/internal/geo"
)

// UploadStatus is the persisted state of a queued video.
// Uploading is held in memory only and never written to the database.
type UploadStatus int64

const (
	NotUploaded UploadStatus = 0
	Uploaded    UploadStatus = 1
	Duplicate   UploadStatus = 2
	Failed      UploadStatus = 3

	// Uploading marks a row that is currently being sent.
	Uploading UploadStatus = -1
)

func (s UploadStatus) String() string {
	switch s {
	case NotUploaded:
		return "NOT_UPLOADED"
	case Uploaded:
		return "UPLOADED"
	case Duplicate:
		return "DUPLICATE"
	case Failed:
		return "FAILED"
	case Uploading:
		return "UPLOADING"
	default:
		return fmt.Sprintf("UploadStatus(%d)", int64(s))
	}
}

// ParseUploadStatus parses a persisted status name such as "FAILED".
func ParseUploadStatus(name string) (UploadStatus, error) {
	for _, s := range []UploadStatus{NotUploaded, Uploaded, Duplicate, Failed} {
		if strings.EqualFold(name, s.String()) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown upload status %q", name)
}

// Persistable reports whether s may be stored in the upload queue.
func (s UploadStatus) Persistable() bool {
	return s >= NotUploaded && s <= Failed
}

// Location is a single GPS fix. TimeStamp is unix milliseconds and unique.
type Location = geo.Fix

// Segment is an observed travel edge keyed by its coordinate string.
type Segment struct {
	Coordinates string
	Count       int64
	LastUpdated int64
}

// Video is one row of the upload queue.
type Video struct {
	ID            int64
	VideoName     string
	LocalFilePath string
	VideoID       int64
	UploadStatus  UploadStatus
	CreatedAt     int64
	UploadedAt    int64
}

// Operation records one mutating CLI run.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
}
