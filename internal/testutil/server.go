package testutil

import (
	"context"
	"io"
	"sync"

	"nayancam/internal/drive"
)

// FakeServer is an in-memory drive.Server. Responses are configured through
// the exported fields; every call is recorded.
type FakeServer struct {
	mu sync.Mutex

	Route      *drive.RouteResponse
	RouteErr   error
	Accept     bool
	SegmentErr error

	// Synced and GoingToDelete answer CheckVideoFiles. Names not listed are
	// simply absent from the answer.
	Synced        []string
	GoingToDelete []string
	CheckErr      error

	// UploadErrs maps a video name to the error its upload returns.
	UploadErrs map[string]error
	nextID     int64

	Tracks      [][]byte
	SegmentPush [][]drive.Segment
	Checked     [][]string
	Uploads     []RecordedUpload
}

// RecordedUpload is one UploadVideo call with the streamed content.
type RecordedUpload struct {
	Upload  drive.VideoUpload
	Content []byte
}

// NewFakeServer creates a server that accepts segment pushes and assigns
// video ids starting at 100.
func NewFakeServer() *FakeServer {
	return &FakeServer{Accept: true, UploadErrs: map[string]error{}, nextID: 100}
}

func (s *FakeServer) FetchRoute(_ context.Context, gpx []byte) (*drive.RouteResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tracks = append(s.Tracks, append([]byte(nil), gpx...))
	if s.RouteErr != nil {
		return nil, s.RouteErr
	}
	if s.Route == nil {
		return &drive.RouteResponse{}, nil
	}
	return s.Route, nil
}

func (s *FakeServer) PostSegments(_ context.Context, segments []drive.Segment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SegmentPush = append(s.SegmentPush, append([]drive.Segment(nil), segments...))
	if s.SegmentErr != nil {
		return false, s.SegmentErr
	}
	return s.Accept, nil
}

func (s *FakeServer) CheckVideoFiles(_ context.Context, names []string) (*drive.VideoFilesStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Checked = append(s.Checked, append([]string(nil), names...))
	if s.CheckErr != nil {
		return nil, s.CheckErr
	}
	return &drive.VideoFilesStatus{
		Synced:        append([]string(nil), s.Synced...),
		GoingToDelete: append([]string(nil), s.GoingToDelete...),
	}, nil
}

func (s *FakeServer) UploadVideo(_ context.Context, upload *drive.VideoUpload) (*drive.VideoUploadResult, error) {
	content, err := io.ReadAll(upload.Content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := RecordedUpload{Upload: *upload, Content: content}
	rec.Upload.Content = nil
	s.Uploads = append(s.Uploads, rec)

	if err := s.UploadErrs[upload.Name]; err != nil {
		return nil, err
	}
	s.nextID++
	return &drive.VideoUploadResult{VideoID: s.nextID}, nil
}

var _ drive.Server = (*FakeServer)(nil)
