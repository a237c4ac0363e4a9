package drive

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrDuplicateVideo is returned by Server.UploadVideo when the server already
// holds the recording.
var ErrDuplicateVideo = errors.New("video already uploaded")

// Server is the remote Nayan API used by the sync passes.
type Server interface {
	// FetchRoute posts a GPX track and returns the snapped route.
	FetchRoute(ctx context.Context, gpx []byte) (*RouteResponse, error)

	// PostSegments uploads segment weights. It reports whether the server
	// accepted them.
	PostSegments(ctx context.Context, segments []Segment) (bool, error)

	// CheckVideoFiles asks which of the named uploads the server has persisted.
	CheckVideoFiles(ctx context.Context, names []string) (*VideoFilesStatus, error)

	// UploadVideo sends one recording.
	UploadVideo(ctx context.Context, upload *VideoUpload) (*VideoUploadResult, error)
}

// RouteResponse is the routing engine answer to a GPX track.
type RouteResponse struct {
	Hints *RouteHints `json:"hints,omitempty"`
	Paths []RoutePath `json:"paths"`
}

type RouteHints struct {
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

type RoutePath struct {
	Points RoutePoints `json:"points"`
}

// RoutePoints holds coordinates as [lon, lat] pairs.
type RoutePoints struct {
	Type        string      `json:"type,omitempty"`
	Coordinates [][]float64 `json:"coordinates"`
}

// VideoFilesStatus is the server's authoritative view of earlier uploads.
type VideoFilesStatus struct {
	Synced        []string `json:"synced_data"`
	GoingToDelete []string `json:"going_to_delete"`
}

// VideoUpload describes one multipart upload.
type VideoUpload struct {
	Name              string
	Latitude          string
	Longitude         string
	RecordedOn        time.Time
	OfflineVideoCount int
	Content           io.Reader
	Size              int64
}

// VideoUploadResult is the server acknowledgement of an upload.
type VideoUploadResult struct {
	VideoID int64  `json:"id"`
	Message string `json:"message,omitempty"`
}
